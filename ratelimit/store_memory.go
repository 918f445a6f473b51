package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

// memoryStore is an in-process Store for tests and single-node setups.
type memoryStore struct {
	mu     sync.Mutex
	data   map[string]*memoryValue
	zsets  map[string]*memoryZSet
	stopCh chan struct{}
	closed bool
}

type memoryValue struct {
	data     string
	expireAt time.Time
}

type memoryZSet struct {
	members map[string]float64 // member -> score
}

// NewMemoryStore creates an in-memory store with a background cleanup
// loop for expired counters.
func NewMemoryStore() Store {
	store := &memoryStore{
		data:   make(map[string]*memoryValue),
		zsets:  make(map[string]*memoryZSet),
		stopCh: make(chan struct{}),
	}

	go store.cleanupLoop(1 * time.Minute)

	return store
}

// GetInt64 returns the integer value for key.
func (s *memoryStore) GetInt64(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.New("store is closed")
	}

	val, exists := s.data[key]
	if !exists || s.expired(val) {
		return 0, ErrKeyNotFound
	}

	n, err := strconv.ParseInt(val.data, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Incr atomically increments key; an absent or expired key starts at 0.
func (s *memoryStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.New("store is closed")
	}

	var current int64
	var expireAt time.Time
	if val, exists := s.data[key]; exists && !s.expired(val) {
		n, err := strconv.ParseInt(val.data, 10, 64)
		if err != nil {
			return 0, err
		}
		current = n
		expireAt = val.expireAt
	}

	current++
	s.data[key] = &memoryValue{
		data:     strconv.FormatInt(current, 10),
		expireAt: expireAt,
	}
	return current, nil
}

// Expire sets the TTL for key.
func (s *memoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, exists := s.data[key]
	if !exists || s.expired(val) {
		return nil
	}
	if ttl > 0 {
		val.expireAt = time.Now().Add(ttl)
	} else {
		val.expireAt = time.Time{}
	}
	return nil
}

// TTL returns the remaining TTL for key.
func (s *memoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, exists := s.data[key]
	if !exists || s.expired(val) || val.expireAt.IsZero() {
		return 0, nil
	}
	return time.Until(val.expireAt), nil
}

// Del removes keys (counters and sorted sets).
func (s *memoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.data, key)
		delete(s.zsets, key)
	}
	return nil
}

// ZAdd adds a member to a sorted set.
func (s *memoryStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	zset, exists := s.zsets[key]
	if !exists {
		zset = &memoryZSet{members: make(map[string]float64)}
		s.zsets[key] = zset
	}
	zset.members[member] = score
	return nil
}

// ZRem removes a member from a sorted set.
func (s *memoryStore) ZRem(ctx context.Context, key string, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if zset, exists := s.zsets[key]; exists {
		delete(zset.members, member)
		if len(zset.members) == 0 {
			delete(s.zsets, key)
		}
	}
	return nil
}

// ZCard returns the sorted set cardinality.
func (s *memoryStore) ZCard(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	zset, exists := s.zsets[key]
	if !exists {
		return 0, nil
	}
	return int64(len(zset.members)), nil
}

// ZRemRangeByScore removes members with score in [min, max].
func (s *memoryStore) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	zset, exists := s.zsets[key]
	if !exists {
		return nil
	}
	for member, score := range zset.members {
		if score >= min && score <= max {
			delete(zset.members, member)
		}
	}
	if len(zset.members) == 0 {
		delete(s.zsets, key)
	}
	return nil
}

// Eval is not supported in memory; callers fall back to discrete ops.
func (s *memoryStore) Eval(ctx context.Context, script string, keys []string, args []interface{}) (interface{}, error) {
	return nil, ErrStoreNotSupported
}

// Close stops the cleanup loop.
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.stopCh)
	}
	return nil
}

func (s *memoryStore) expired(val *memoryValue) bool {
	return !val.expireAt.IsZero() && time.Now().After(val.expireAt)
}

func (s *memoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			for key, val := range s.data {
				if s.expired(val) {
					delete(s.data, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
