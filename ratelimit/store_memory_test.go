package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_IncrAndGetInt64(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	_, err := store.GetInt64(ctx, "counter")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	n, err := store.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMemoryStore_ExpireResetsCounter(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	_, err := store.Incr(ctx, "counter")
	require.NoError(t, err)
	require.NoError(t, store.Expire(ctx, "counter", 30*time.Millisecond))

	val, err := store.GetInt64(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)

	time.Sleep(50 * time.Millisecond)

	_, err = store.GetInt64(ctx, "counter")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// a fresh increment starts a new window at 1
	n, err := store.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStore_ZSetOps(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.ZAdd(ctx, "active", 100, "t1"))
	require.NoError(t, store.ZAdd(ctx, "active", 200, "t2"))

	card, err := store.ZCard(ctx, "active")
	require.NoError(t, err)
	assert.Equal(t, int64(2), card)

	require.NoError(t, store.ZRemRangeByScore(ctx, "active", 0, 150))
	card, err = store.ZCard(ctx, "active")
	require.NoError(t, err)
	assert.Equal(t, int64(1), card)

	require.NoError(t, store.ZRem(ctx, "active", "t2"))
	require.NoError(t, store.ZRem(ctx, "active", "t2")) // no-op

	card, err = store.ZCard(ctx, "active")
	require.NoError(t, err)
	assert.Equal(t, int64(0), card)
}

func TestMemoryStore_EvalNotSupported(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	_, err := store.Eval(context.Background(), "return 1", nil, nil)
	assert.ErrorIs(t, err, ErrStoreNotSupported)
}
