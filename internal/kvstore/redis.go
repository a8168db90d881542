package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/logger"
	"github.com/rzpsarthak13/recordshift/internal/registry"
)

// RedisAttributeStore keeps each record's attributes in one Redis hash,
// "{namespace}:record:{id}", with one field per attribute key.
type RedisAttributeStore struct {
	client    *redis.Client
	namespace string
	log       zerolog.Logger
	closed    bool
}

// NewRedisAttributeStore wraps an existing client.
func NewRedisAttributeStore(client *redis.Client, namespace string, log zerolog.Logger) *RedisAttributeStore {
	if namespace == "" {
		namespace = "recordshift"
	}
	return &RedisAttributeStore{
		client:    client,
		namespace: namespace,
		log:       logger.Component(log, "redis"),
	}
}

// DialRedis connects to the first endpoint and verifies the connection.
func DialRedis(cfg registry.InternalRedisConfig, dialTimeout, readTimeout, writeTimeout time.Duration) (*redis.Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Endpoints[0],
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (r *RedisAttributeStore) recordKey(recordID int64) string {
	return r.namespace + ":record:" + strconv.FormatInt(recordID, 10)
}

// GetAll returns every attribute of the record.
func (r *RedisAttributeStore) GetAll(ctx context.Context, recordID int64) (map[string]string, error) {
	if r.closed {
		return nil, fmt.Errorf("attribute store is closed")
	}
	attrs, err := r.client.HGetAll(ctx, r.recordKey(recordID)).Result()
	if err != nil {
		r.log.Error().Err(err).Int64("record_id", recordID).Msg("HGETALL failed")
		return nil, fmt.Errorf("failed to load attributes of record %d: %w", recordID, err)
	}
	r.log.Debug().Int64("record_id", recordID).Int("attributes", len(attrs)).Msg("loaded attributes")
	return attrs, nil
}

// Get returns one attribute.
func (r *RedisAttributeStore) Get(ctx context.Context, recordID int64, key string) (string, bool, error) {
	if r.closed {
		return "", false, fmt.Errorf("attribute store is closed")
	}
	val, err := r.client.HGet(ctx, r.recordKey(recordID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get attribute %s of record %d: %w", key, recordID, err)
	}
	return val, true, nil
}

// Set creates or replaces an attribute.
func (r *RedisAttributeStore) Set(ctx context.Context, recordID int64, key, value string) error {
	if r.closed {
		return fmt.Errorf("attribute store is closed")
	}
	if err := r.client.HSet(ctx, r.recordKey(recordID), key, value).Err(); err != nil {
		r.log.Error().Err(err).Int64("record_id", recordID).Str("key", key).Msg("HSET failed")
		return fmt.Errorf("failed to set attribute %s of record %d: %w", key, recordID, err)
	}
	return nil
}

// Delete removes an attribute.
func (r *RedisAttributeStore) Delete(ctx context.Context, recordID int64, key string) (bool, error) {
	if r.closed {
		return false, fmt.Errorf("attribute store is closed")
	}
	n, err := r.client.HDel(ctx, r.recordKey(recordID), key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete attribute %s of record %d: %w", key, recordID, err)
	}
	return n > 0, nil
}

// Close closes the connection to Redis.
func (r *RedisAttributeStore) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

// Client returns the underlying Redis client.
func (r *RedisAttributeStore) Client() *redis.Client {
	return r.client
}

// ListPush adds a value to the end of a list (RPUSH).
func (r *RedisAttributeStore) ListPush(ctx context.Context, key string, value []byte) error {
	if r.closed {
		return fmt.Errorf("attribute store is closed")
	}
	return r.client.RPush(ctx, key, value).Err()
}

// ListPop removes and returns the first element of a list (LPOP).
// It returns nil when the list is empty.
func (r *RedisAttributeStore) ListPop(ctx context.Context, key string) ([]byte, error) {
	if r.closed {
		return nil, fmt.Errorf("attribute store is closed")
	}
	val, err := r.client.LPop(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// ListLength returns the length of a list (LLEN).
func (r *RedisAttributeStore) ListLength(ctx context.Context, key string) (int64, error) {
	if r.closed {
		return 0, fmt.Errorf("attribute store is closed")
	}
	return r.client.LLen(ctx, key).Result()
}

// RedisAttributeStoreFactory implements AttributeStoreFactory for Redis.
type RedisAttributeStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *RedisAttributeStoreFactory) Type() string {
	return "redis"
}

// Validate validates the Redis-specific configuration.
func (f *RedisAttributeStoreFactory) Validate(config registry.InternalAttributeStoreConfig) error {
	redisConfig := config.RedisConfig
	if len(redisConfig.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if redisConfig.DB < 0 || redisConfig.DB > 15 {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", redisConfig.DB)
	}
	if redisConfig.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", redisConfig.PoolSize)
	}
	if redisConfig.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns must be non-negative, got: %d", redisConfig.MinIdleConns)
	}
	return validateTimeouts(config)
}

// Create connects to Redis and returns a hash-per-record store.
func (f *RedisAttributeStoreFactory) Create(config registry.InternalAttributeStoreConfig, deps Dependencies) (core.AttributeStore, error) {
	client, err := DialRedis(config.RedisConfig, config.DialTimeout, config.ReadTimeout, config.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis attribute store: %w", err)
	}
	return NewRedisAttributeStore(client, config.Namespace, deps.Logger), nil
}

func init() {
	register(&RedisAttributeStoreFactory{})
}
