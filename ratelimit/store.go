// Package ratelimit implements the two admission limiters of the
// generation service: a per-tenant daily quota (SystemRateLimiter) and a
// per-app in-flight ceiling (ConcurrencyGovernor).
//
// Both limiters mutate shared state only through the Store interface so
// that the limits hold across every server process sharing one Redis,
// not just within one process's memory.
package ratelimit

import (
	"context"
	"time"
)

// Store is the shared counter store used by both limiters.
// Counters back the daily quota; sorted sets back the active-ticket
// registry (member = ticket token, score = admit timestamp).
type Store interface {
	// GetInt64 returns the integer value for key, or ErrKeyNotFound.
	GetInt64(ctx context.Context, key string) (int64, error)

	// Incr atomically increments key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets the TTL for key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL returns the remaining TTL; 0 if the key does not exist or
	// has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Del removes keys.
	Del(ctx context.Context, keys ...string) error

	// ZAdd adds a member with score to a sorted set.
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZRem removes a member from a sorted set. Removing an absent
	// member is a no-op.
	ZRem(ctx context.Context, key string, member string) error

	// ZCard returns the number of members in a sorted set.
	ZCard(ctx context.Context, key string) (int64, error)

	// ZRemRangeByScore removes members whose score is within [min, max].
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error

	// Eval executes a Lua script (Redis only; the in-memory store
	// returns ErrStoreNotSupported).
	Eval(ctx context.Context, script string, keys []string, args []interface{}) (interface{}, error)

	// Close releases store resources.
	Close() error
}

// StoreType selects the store backend.
type StoreType string

const (
	// StoreTypeMemory keeps all state in process memory. Limits then
	// only hold within a single process; meant for tests and dev.
	StoreTypeMemory StoreType = "memory"

	// StoreTypeRedis keeps all state in Redis, shared by all processes.
	StoreTypeRedis StoreType = "redis"
)
