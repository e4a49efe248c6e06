// Package cache implements ports.CacheStore over Redis and process memory,
// and an embedding cache on top of either.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/logger"
	"github.com/ahrav/go-qgen/internal/ports"
)

// NewRedisClient parses url, connects and pings.
func NewRedisClient(ctx context.Context, url string, log *zap.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.OrNop(log).Info("redis connected", zap.String("addr", opt.Addr), zap.Int("db", opt.DB))
	return rdb, nil
}

// RedisStore is a ports.CacheStore backed by Redis. Keys are namespaced by
// prefix.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps client.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Get implements ports.CacheStore.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ports.NewCacheError(key, "Get", err)
	}
	return val, true, nil
}

// Set implements ports.CacheStore. A zero expiration keeps the key forever.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, expiration).Err(); err != nil {
		return ports.NewCacheError(key, "Set", err)
	}
	return nil
}

// Delete implements ports.CacheStore.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return ports.NewCacheError(key, "Delete", err)
	}
	return nil
}

var _ ports.CacheStore = (*RedisStore)(nil)
