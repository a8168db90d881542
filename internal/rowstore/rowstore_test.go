package rowstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/database"
)

const ordersDDL = `CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	status TEXT,
	total_amount DECIMAL(26,8),
	customer_id BIGINT,
	date_created_gmt DATETIME
)`

const recordsDDL = `CREATE TABLE records (
	id INTEGER PRIMARY KEY,
	kind TEXT NOT NULL,
	created_at DATETIME NOT NULL
)`

func openSQLite(t *testing.T, ddl ...string) *database.SQLDatabase {
	t.Helper()
	db, err := database.NewSQLiteDatabase(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, stmt := range ddl {
		_, err := db.Exec(context.Background(), stmt)
		require.NoError(t, err)
	}
	return db
}

func orderRow(id int64, status string) *core.Row {
	row := core.NewRow()
	row.Set("id", id)
	row.Set("status", status)
	row.Set("total_amount", "12.5")
	row.Set("customer_id", int64(7))
	row.Set("date_created_gmt", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC))
	return row
}

func TestStoreCRUDOnSQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t, ordersDDL)

	store, err := Open(ctx, db, "orders", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "orders", store.Table())

	_, found, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Insert(ctx, orderRow(1, "wc-pending")))
	assert.Error(t, store.Insert(ctx, orderRow(1, "wc-pending")), "duplicate primary key")

	row, found, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"id", "status", "total_amount", "customer_id", "date_created_gmt"}, row.Columns())
	status, _ := row.Get("status")
	assert.Equal(t, "wc-pending", status)
	total, _ := row.Get("total_amount")
	assert.Equal(t, "12.5", total)
	created, _ := row.Get("date_created_gmt")
	assert.True(t, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC).Equal(created.(time.Time)))

	changed := core.NewRow()
	changed.Set("status", "wc-completed")
	ok, err := store.Update(ctx, 1, changed)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Update(ctx, 99, changed)
	require.NoError(t, err)
	assert.False(t, ok)

	row, _, err = store.Get(ctx, 1)
	require.NoError(t, err)
	status, _ = row.Get("status")
	assert.Equal(t, "wc-completed", status)

	deleted, err := store.Delete(ctx, 1)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = store.Delete(ctx, 1)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestStoreQueries(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t, ordersDDL)
	store, err := Open(ctx, db, "orders", zerolog.Nop())
	require.NoError(t, err)

	for _, id := range []int64{3, 1, 2} {
		require.NoError(t, store.Insert(ctx, orderRow(id, "wc-pending")))
	}

	n, err := store.QueryCount(ctx, "SELECT COUNT(*) FROM orders WHERE status = ?", "wc-pending")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	rows, err := store.QueryRows(ctx, "SELECT id FROM orders ORDER BY id ASC LIMIT 2 OFFSET 1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	id0, _ := rows[0].Get("id")
	id1, _ := rows[1].Get("id")
	assert.Equal(t, int64(2), id0)
	assert.Equal(t, int64(3), id1)

	_, err = store.QueryRows(ctx, "SELECT nope FROM orders")
	assert.Error(t, err)
}

func TestStoreInsertRejectsUnknownColumn(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t, ordersDDL)
	store, err := Open(ctx, db, "orders", zerolog.Nop())
	require.NoError(t, err)

	row := orderRow(1, "wc-pending")
	row.Set("legacy_flag", "x")
	assert.Error(t, store.Insert(ctx, row))
}

func TestNewStoreValidatesSchema(t *testing.T) {
	db := openSQLite(t)
	_, err := NewStore(db, nil, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewStore(db, &core.Schema{TableName: "orders", Columns: []core.Column{{Name: "id"}}}, zerolog.Nop())
	assert.Error(t, err, "missing primary key")
	_, err = NewStore(db, &core.Schema{TableName: "orders", PrimaryKey: "id", Columns: []core.Column{{Name: "id"}, {Name: "a b"}}}, zerolog.Nop())
	assert.Error(t, err)
}

func TestStoreGetEmitsColumnList(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := database.NewFromDB(sqlDB, "postgres", zerolog.Nop())
	require.NoError(t, err)

	store, err := NewStore(db, &core.Schema{
		TableName:  "refunds",
		PrimaryKey: "id",
		Columns:    []core.Column{{Name: "id", Type: "bigint"}, {Name: "refund_amount", Type: "numeric"}},
	}, zerolog.Nop())
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, refund_amount FROM refunds WHERE id = $1").
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "refund_amount"}).AddRow(int64(4), []byte("3.20")))

	row, found, err := store.Get(context.Background(), 4)
	require.NoError(t, err)
	require.True(t, found)
	amount, _ := row.Get("refund_amount")
	assert.Equal(t, "3.20", amount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t, recordsDDL)
	_, err := db.Exec(ctx, "INSERT INTO records (id, kind, created_at) VALUES (?, ?, ?)", 10, "refund", "2024-05-01 08:00:00")
	require.NoError(t, err)

	loader, err := NewLoader(db, "records")
	require.NoError(t, err)

	record, err := loader.Load(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, core.KindRefund, record.Kind)
	assert.Equal(t, int64(10), record.ID)
	assert.Equal(t, 2024, record.CreatedAt.Year())

	_, err = loader.Load(ctx, 11)
	assert.True(t, errors.Is(err, core.ErrRecordNotFound))

	_, err = NewLoader(db, "records where 1=1")
	assert.Error(t, err)
}

func TestCandidatesSQL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := database.NewFromDB(sqlDB, "mysql", zerolog.Nop())
	require.NoError(t, err)

	c, err := NewCandidates(db, "records", map[core.Kind]string{core.KindOrder: "orders"})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT COUNT(*) FROM records r LEFT JOIN orders t ON t.id = r.id WHERE r.kind = ? AND t.id IS NULL").
		WithArgs("order").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5)))
	mock.ExpectQuery("SELECT r.id FROM records r LEFT JOIN orders t ON t.id = r.id WHERE r.kind = ? AND t.id IS NULL AND r.id NOT IN (?, ?) ORDER BY r.created_at DESC, r.id DESC LIMIT 2").
		WithArgs("order", int64(9), int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)).AddRow(int64(6)))

	n, err := c.CountPending(context.Background(), core.KindOrder)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	ids, err := c.PendingIDs(context.Background(), core.KindOrder, 2, []int64{9, 8})
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 6}, ids)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = c.CountPending(context.Background(), core.KindRefund)
	assert.Error(t, err, "refund table not configured")
	_, err = c.PendingIDs(context.Background(), core.KindOrder, 0, nil)
	assert.Error(t, err)
}

func TestPendingIDsBoundsExcludeBinds(t *testing.T) {
	previous := maxExcludeBinds
	maxExcludeBinds = 2
	t.Cleanup(func() { maxExcludeBinds = previous })

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := database.NewFromDB(sqlDB, "mysql", zerolog.Nop())
	require.NoError(t, err)

	c, err := NewCandidates(db, "records", map[core.Kind]string{core.KindOrder: "orders"})
	require.NoError(t, err)

	// Two IDs are bound, the other three widen the limit and are filtered.
	mock.ExpectQuery("SELECT r.id FROM records r LEFT JOIN orders t ON t.id = r.id WHERE r.kind = ? AND t.id IS NULL AND r.id NOT IN (?, ?) ORDER BY r.created_at DESC, r.id DESC LIMIT 5").
		WithArgs("order", int64(20), int64(19)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).
			AddRow(int64(18)).AddRow(int64(17)).AddRow(int64(16)).AddRow(int64(15)).AddRow(int64(14)))

	ids, err := c.PendingIDs(context.Background(), core.KindOrder, 2, []int64{20, 19, 18, 16, 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{17, 15}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingIDsManyExclusionsOnSQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t, recordsDDL, ordersDDL)
	const total = 1200
	for i := 1; i <= total; i++ {
		_, err := db.Exec(ctx, "INSERT INTO records (id, kind, created_at) VALUES (?, ?, ?)",
			i, "order", time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC))
		require.NoError(t, err)
	}
	c, err := NewCandidates(db, "records", map[core.Kind]string{core.KindOrder: "orders"})
	require.NoError(t, err)

	// Exclude every record but the oldest two.
	exclude := make([]int64, 0, total-2)
	for i := int64(total); i > 2; i-- {
		exclude = append(exclude, i)
	}
	ids, err := c.PendingIDs(ctx, core.KindOrder, 10, exclude)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, ids)
}

func TestCandidatesOnSQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t, recordsDDL, ordersDDL)
	for i, kind := range []string{"order", "order", "refund", "order"} {
		_, err := db.Exec(ctx, "INSERT INTO records (id, kind, created_at) VALUES (?, ?, ?)",
			i+1, kind, time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
	}
	_, err := db.Exec(ctx, "INSERT INTO orders (id, status) VALUES (2, 'wc-completed')")
	require.NoError(t, err)

	c, err := NewCandidates(db, "records", map[core.Kind]string{core.KindOrder: "orders"})
	require.NoError(t, err)

	n, err := c.CountPending(ctx, core.KindOrder)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ids, err := c.PendingIDs(ctx, core.KindOrder, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 1}, ids, "newest first")

	ids, err = c.PendingIDs(ctx, core.KindOrder, 10, []int64{4})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
}
