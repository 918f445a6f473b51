package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of a shared Redis instance.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore creates a Redis-backed store. The prefix namespaces all
// keys so several services can share one Redis.
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "appgen:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *RedisStore) buildKey(key string) string {
	return s.keyPrefix + key
}

// GetInt64 returns the integer value for key.
func (s *RedisStore) GetInt64(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, s.buildKey(key)).Result()
	if err == redis.Nil {
		return 0, ErrKeyNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis get failed: %w", err)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse count failed: %w", err)
	}
	return count, nil
}

// Incr atomically increments key.
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, s.buildKey(key)).Result()
}

// Expire sets the TTL for key.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, s.buildKey(key), ttl).Err()
}

// TTL returns the remaining TTL for key.
// Redis returns -2 for a missing key and -1 for no expiry; both map to 0.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, s.buildKey(key)).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Del removes keys.
func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = s.buildKey(key)
	}
	return s.client.Del(ctx, fullKeys...).Err()
}

// ZAdd adds a member to a sorted set.
func (s *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return s.client.ZAdd(ctx, s.buildKey(key), redis.Z{
		Score:  score,
		Member: member,
	}).Err()
}

// ZRem removes a member from a sorted set.
func (s *RedisStore) ZRem(ctx context.Context, key string, member string) error {
	return s.client.ZRem(ctx, s.buildKey(key), member).Err()
}

// ZCard returns the sorted set cardinality.
func (s *RedisStore) ZCard(ctx context.Context, key string) (int64, error) {
	return s.client.ZCard(ctx, s.buildKey(key)).Result()
}

// ZRemRangeByScore removes members within a score range.
func (s *RedisStore) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	minStr := strconv.FormatFloat(min, 'f', -1, 64)
	maxStr := strconv.FormatFloat(max, 'f', -1, 64)
	return s.client.ZRemRangeByScore(ctx, s.buildKey(key), minStr, maxStr).Err()
}

// Eval executes a Lua script against the prefixed keys.
func (s *RedisStore) Eval(ctx context.Context, script string, keys []string, args []interface{}) (interface{}, error) {
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = s.buildKey(key)
	}
	return s.client.Eval(ctx, script, fullKeys, args...).Result()
}

// Close is a no-op; the Redis client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
