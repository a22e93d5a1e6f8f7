package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig contains Redis-specific configuration.
type RedisConfig struct {
	// Addr is the Redis server address, host:port.
	Addr string `json:"addr" yaml:"addr"`

	// Password is the Redis password (optional).
	Password string `json:"password" yaml:"password"`

	// DB is the Redis database number.
	DB int `json:"db" yaml:"db"`

	// PoolSize is the connection pool size.
	PoolSize int `json:"pool_size" yaml:"pool_size"`

	// KeyPrefix is the prefix for all Redis keys.
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// RedisStorage is a Redis-based implementation of Storage.
// Suitable for distributed deployments. Items are stored as JSON strings.
type RedisStorage struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisStorage connects to Redis and returns a store.
func NewRedisStorage(cfg RedisConfig, logger *zap.Logger) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "convoflow:"
	}

	return &RedisStorage{
		client:    client,
		keyPrefix: keyPrefix + "state:",
		logger:    logger.With(zap.String("component", "redis_storage")),
	}, nil
}

// NewRedisStorageFromClient wraps an existing client, used by tests.
func NewRedisStorageFromClient(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStorage{client: client, keyPrefix: keyPrefix, logger: logger}
}

func (s *RedisStorage) key(key string) string {
	return s.keyPrefix + key
}

// Read loads the requested items with a single MGET.
func (s *RedisStorage) Read(ctx context.Context, keys []string) (map[string]map[string]any, error) {
	if len(keys) == 0 {
		return map[string]map[string]any{}, nil
	}

	redisKeys := make([]string, len(keys))
	for i, key := range keys {
		redisKeys[i] = s.key(key)
	}

	values, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	result := make(map[string]map[string]any, len(keys))
	for i, v := range values {
		if v == nil {
			continue
		}
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var item map[string]any
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", keys[i], err)
		}
		result[keys[i]] = item
	}
	return result, nil
}

// Write persists the given items in one pipeline.
func (s *RedisStorage) Write(ctx context.Context, changes map[string]map[string]any) error {
	if len(changes) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for key, item := range changes {
		if key == "" {
			return ErrInvalidInput
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode item %s: %w", key, err)
		}
		pipe.Set(ctx, s.key(key), data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis write: %w", err)
	}
	return nil
}

// Delete removes the given items.
func (s *RedisStorage) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	redisKeys := make([]string, len(keys))
	for i, key := range keys {
		redisKeys[i] = s.key(key)
	}
	if err := s.client.Del(ctx, redisKeys...).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
