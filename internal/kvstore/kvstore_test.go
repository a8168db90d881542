package kvstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/database"
	"github.com/rzpsarthak13/recordshift/internal/registry"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store core.AttributeStore) {
	t.Helper()
	ctx := context.Background()

	attrs, err := store.GetAll(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, attrs)

	require.NoError(t, store.Set(ctx, 42, "_status", "wc-pending"))
	require.NoError(t, store.Set(ctx, 42, "_order_total", "12.50"))
	require.NoError(t, store.Set(ctx, 42, "_status", "wc-completed"))
	require.NoError(t, store.Set(ctx, 43, "_status", "wc-refunded"))

	attrs, err = store.GetAll(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"_status": "wc-completed", "_order_total": "12.50"}, attrs)

	v, ok, err := store.Get(ctx, 42, "_order_total")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "12.50", v)

	_, ok, err = store.Get(ctx, 42, "_missing")
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := store.Delete(ctx, 42, "_status")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = store.Delete(ctx, 42, "_status")
	require.NoError(t, err)
	assert.False(t, deleted)

	attrs, err = store.GetAll(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"_order_total": "12.50"}, attrs)

	attrs, err = store.GetAll(ctx, 43)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"_status": "wc-refunded"}, attrs)
}

func TestMemoryAttributeStore(t *testing.T) {
	store := NewMemoryAttributeStore()
	exerciseStore(t, store)

	require.NoError(t, store.Close())
	_, err := store.GetAll(context.Background(), 1)
	assert.Error(t, err)
}

func TestMemoryGetAllReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAttributeStore()
	require.NoError(t, store.Set(ctx, 1, "k", "v"))

	attrs, err := store.GetAll(ctx, 1)
	require.NoError(t, err)
	attrs["k"] = "changed"

	v, _, err := store.Get(ctx, 1, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestSQLAttributeStoreOnSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewSQLiteDatabase(":memory:", zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(ctx, `CREATE TABLE record_attributes (
		record_id INTEGER NOT NULL,
		attr_key TEXT NOT NULL,
		attr_value TEXT,
		PRIMARY KEY (record_id, attr_key)
	)`)
	require.NoError(t, err)

	store, err := NewSQLAttributeStore(db, "record_attributes", zerolog.Nop())
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestSQLAttributeStoreEmitsExpectedStatements(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := database.NewFromDB(sqlDB, "mysql", zerolog.Nop())
	require.NoError(t, err)
	store, err := NewSQLAttributeStore(db, "record_attributes", zerolog.Nop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM record_attributes WHERE record_id = ? AND attr_key = ?").
		WithArgs(int64(5), "_status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO record_attributes (record_id, attr_key, attr_value) VALUES (?, ?, ?)").
		WithArgs(int64(5), "_status", "wc-processing").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Set(context.Background(), 5, "_status", "wc-processing"))

	mock.ExpectQuery("SELECT attr_key, attr_value FROM record_attributes WHERE record_id = ?").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"attr_key", "attr_value"}).
			AddRow("_status", "wc-processing").
			AddRow("_customer_note", nil))

	attrs, err := store.GetAll(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"_status": "wc-processing", "_customer_note": ""}, attrs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLAttributeStoreRollsBackFailedSet(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := database.NewFromDB(sqlDB, "mysql", zerolog.Nop())
	require.NoError(t, err)
	store, err := NewSQLAttributeStore(db, "record_attributes", zerolog.Nop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM record_attributes WHERE record_id = ? AND attr_key = ?").
		WithArgs(int64(5), "_status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO record_attributes (record_id, attr_key, attr_value) VALUES (?, ?, ?)").
		WithArgs(int64(5), "_status", "x").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = store.Set(context.Background(), 5, "_status", "x")
	assert.ErrorContains(t, err, "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSQLAttributeStoreRejectsBadTable(t *testing.T) {
	db, err := database.NewSQLiteDatabase(":memory:", zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLAttributeStore(db, "attrs; DROP TABLE x", zerolog.Nop())
	assert.Error(t, err)
	_, err = NewSQLAttributeStore(nil, "record_attributes", zerolog.Nop())
	assert.Error(t, err)
}

func TestRedisAttributeStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisAttributeStore(client, "test", zerolog.Nop())
	defer store.Close()

	exerciseStore(t, store)

	assert.True(t, mr.Exists("test:record:42"))
	assert.Equal(t, "12.50", mr.HGet("test:record:42", "_order_total"))
}

func TestRedisListOperations(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := NewRedisAttributeStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", zerolog.Nop())
	defer store.Close()

	val, err := store.ListPop(ctx, "journal")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, store.ListPush(ctx, "journal", []byte("a")))
	require.NoError(t, store.ListPush(ctx, "journal", []byte("b")))

	n, err := store.ListLength(ctx, "journal")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	val, err = store.ListPop(ctx, "journal")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), val)
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := DialRedis(registry.InternalRedisConfig{Endpoints: []string{mr.Addr()}, PoolSize: 2}, time.Second, time.Second, time.Second)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = DialRedis(registry.InternalRedisConfig{}, time.Second, time.Second, time.Second)
	assert.Error(t, err)
}

// fakeDynamo stores items keyed by record and attribute key.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]map[string]types.AttributeValue
	// pageSize splits Query results to exercise pagination.
	pageSize int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]map[string]types.AttributeValue), pageSize: 1}
}

func keyParts(key map[string]types.AttributeValue) (string, string) {
	return key["record_id"].(*types.AttributeValueMemberN).Value, key["attr_key"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rid, k := keyParts(in.Key)
	return &dynamodb.GetItemOutput{Item: f.items[rid][k]}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rid, k := keyParts(in.Item)
	if f.items[rid] == nil {
		f.items[rid] = make(map[string]map[string]types.AttributeValue)
	}
	f.items[rid][k] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rid, k := keyParts(in.Key)
	old, ok := f.items[rid][k]
	if !ok {
		return &dynamodb.DeleteItemOutput{}, nil
	}
	delete(f.items[rid], k)
	return &dynamodb.DeleteItemOutput{Attributes: old}, nil
}

func (f *fakeDynamo) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rid := in.ExpressionAttributeValues[":rid"].(*types.AttributeValueMemberN).Value

	keys := make([]string, 0, len(f.items[rid]))
	for k := range f.items[rid] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if in.ExclusiveStartKey != nil {
		_, last := keyParts(in.ExclusiveStartKey)
		start = sort.SearchStrings(keys, last) + 1
	}
	end := start + f.pageSize
	if end > len(keys) {
		end = len(keys)
	}

	out := &dynamodb.QueryOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, f.items[rid][k])
	}
	if end < len(keys) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"record_id": &types.AttributeValueMemberN{Value: rid},
			"attr_key":  &types.AttributeValueMemberS{Value: keys[end-1]},
		}
	}
	return out, nil
}

func TestDynamoDBAttributeStore(t *testing.T) {
	store := newDynamoDBAttributeStore(newFakeDynamo(), "record_attributes", zerolog.Nop())
	exerciseStore(t, store)
}

func TestFactoryRegistry(t *testing.T) {
	assert.Equal(t, []string{"dynamodb", "memory", "redis", "sql"}, GetRegisteredTypes())
	assert.True(t, IsTypeRegistered("sql"))
	assert.False(t, IsTypeRegistered("cassandra"))

	_, err := Create(registry.InternalAttributeStoreConfig{}, Dependencies{})
	assert.Error(t, err)
	_, err = Create(registry.InternalAttributeStoreConfig{Type: "cassandra"}, Dependencies{})
	assert.Error(t, err)

	store, err := Create(registry.InternalAttributeStoreConfig{Type: "memory"}, Dependencies{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryAttributeStore{}, store)

	_, err = Create(registry.InternalAttributeStoreConfig{Type: "sql"}, Dependencies{})
	assert.Error(t, err, "table name is required")
}

func TestValidatorsAreRegistered(t *testing.T) {
	for _, typ := range []string{"sql", "redis", "dynamodb", "memory"} {
		v, ok := registry.GetValidator(typ)
		require.True(t, ok, typ)
		assert.Equal(t, typ, v.Type())
	}

	v, _ := registry.GetValidator("redis")
	cfg := &registry.InternalConfig{AttributeStore: registry.InternalAttributeStoreConfig{Type: "redis"}}
	assert.Error(t, v.Validate(cfg))

	cfg.AttributeStore.RedisConfig = registry.InternalRedisConfig{Endpoints: []string{"localhost:6379"}, PoolSize: 1}
	cfg.AttributeStore.DialTimeout = time.Second
	cfg.AttributeStore.ReadTimeout = time.Second
	cfg.AttributeStore.WriteTimeout = time.Second
	assert.NoError(t, v.Validate(cfg))

	cfg.AttributeStore.Type = "sql"
	assert.Error(t, v.Validate(cfg))
}
