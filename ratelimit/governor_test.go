package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// governorStores runs a subtest against both store backends.
func governorStores(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) {
		store := NewMemoryStore()
		defer store.Close()
		fn(t, store)
	})
	t.Run("redis", func(t *testing.T) {
		_, store := setupMiniRedis(t)
		fn(t, store)
	})
}

func TestGovernor_NeverExceedsCeiling(t *testing.T) {
	governorStores(t, func(t *testing.T, store Store) {
		g := NewConcurrencyGovernor(store, 10*time.Minute, nil)
		ctx := context.Background()

		const limit = 5
		const requests = 50

		var wg sync.WaitGroup
		results := make([]error, requests)

		for i := 0; i < requests; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = g.Enter(ctx, "app-1", g.GenToken(), limit)
			}(i)
		}
		wg.Wait()

		admitted := 0
		rejected := 0
		for _, err := range results {
			if err == nil {
				admitted++
				continue
			}
			var cle *ConcurrencyLimitError
			require.ErrorAs(t, err, &cle)
			rejected++
		}

		assert.Equal(t, limit, admitted)
		assert.Equal(t, requests-limit, rejected)

		active, err := g.Active(ctx, "app-1")
		require.NoError(t, err)
		assert.Equal(t, int64(limit), active)
	})
}

func TestGovernor_ZeroLimitAdmitsUnboundedly(t *testing.T) {
	governorStores(t, func(t *testing.T, store Store) {
		g := NewConcurrencyGovernor(store, 10*time.Minute, nil)
		ctx := context.Background()

		for i := 0; i < 100; i++ {
			_, err := g.Enter(ctx, "app-1", g.GenToken(), 0)
			require.NoError(t, err)
		}

		active, err := g.Active(ctx, "app-1")
		require.NoError(t, err)
		assert.Equal(t, int64(100), active)
	})
}

func TestGovernor_ExitIsIdempotent(t *testing.T) {
	governorStores(t, func(t *testing.T, store Store) {
		g := NewConcurrencyGovernor(store, 10*time.Minute, nil)
		ctx := context.Background()

		t1, err := g.Enter(ctx, "app-1", "", 2)
		require.NoError(t, err)
		t2, err := g.Enter(ctx, "app-1", "", 2)
		require.NoError(t, err)

		// double release of t1 must not release t2
		require.NoError(t, g.Exit(ctx, "app-1", t1))
		require.NoError(t, g.Exit(ctx, "app-1", t1))
		// releasing a never-admitted token is a no-op too
		require.NoError(t, g.Exit(ctx, "app-1", "unknown-token"))

		active, err := g.Active(ctx, "app-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), active)

		require.NoError(t, g.Exit(ctx, "app-1", t2))
	})
}

func TestGovernor_ThreeEntersAtCeilingTwo(t *testing.T) {
	governorStores(t, func(t *testing.T, store Store) {
		g := NewConcurrencyGovernor(store, 10*time.Minute, nil)
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make([]error, 3)
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = g.Enter(ctx, "app-1", g.GenToken(), 2)
			}(i)
		}
		wg.Wait()

		failures := 0
		for _, err := range errs {
			if err != nil {
				var cle *ConcurrencyLimitError
				require.ErrorAs(t, err, &cle)
				assert.Equal(t, "app-1", cle.AppID)
				assert.Equal(t, int64(2), cle.Limit)
				failures++
			}
		}
		assert.Equal(t, 1, failures)
	})
}

func TestGovernor_ReleaseFreesSlotForNextEnter(t *testing.T) {
	governorStores(t, func(t *testing.T, store Store) {
		g := NewConcurrencyGovernor(store, 10*time.Minute, nil)
		ctx := context.Background()

		token, err := g.Enter(ctx, "app-1", "", 1)
		require.NoError(t, err)

		_, err = g.Enter(ctx, "app-1", "", 1)
		var cle *ConcurrencyLimitError
		require.ErrorAs(t, err, &cle)

		require.NoError(t, g.Exit(ctx, "app-1", token))

		_, err = g.Enter(ctx, "app-1", "", 1)
		require.NoError(t, err)
	})
}

func TestGovernor_StaleTicketsArePruned(t *testing.T) {
	governorStores(t, func(t *testing.T, store Store) {
		g := NewConcurrencyGovernor(store, 50*time.Millisecond, nil)
		ctx := context.Background()

		_, err := g.Enter(ctx, "app-1", "", 1)
		require.NoError(t, err)

		// ticket still fresh: at capacity
		_, err = g.Enter(ctx, "app-1", "", 1)
		var cle *ConcurrencyLimitError
		require.ErrorAs(t, err, &cle)

		// after the max ticket age the leaked ticket no longer counts
		time.Sleep(80 * time.Millisecond)

		_, err = g.Enter(ctx, "app-1", "", 1)
		require.NoError(t, err)
	})
}

func TestGovernor_AppsAreIsolated(t *testing.T) {
	governorStores(t, func(t *testing.T, store Store) {
		g := NewConcurrencyGovernor(store, 10*time.Minute, nil)
		ctx := context.Background()

		_, err := g.Enter(ctx, "app-1", "", 1)
		require.NoError(t, err)

		// app-2 has its own active set
		_, err = g.Enter(ctx, "app-2", "", 1)
		require.NoError(t, err)

		apps := g.TrackedApps()
		assert.ElementsMatch(t, []string{"app-1", "app-2"}, apps)
	})
}

func TestGovernor_GenTokenIsUnique(t *testing.T) {
	g := NewConcurrencyGovernor(NewMemoryStore(), time.Minute, nil)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		token := g.GenToken()
		require.False(t, seen[token], "token collision: %s", token)
		seen[token] = true
	}
}

func TestJanitor_SweepsLeakedTickets(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	g := NewConcurrencyGovernor(store, 30*time.Millisecond, nil)
	ctx := context.Background()

	_, err := g.Enter(ctx, "app-1", "", 0)
	require.NoError(t, err)

	j, err := NewJanitor(g, 20*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, j.Start())
	defer j.Stop()

	assert.Eventually(t, func() bool {
		active, err := store.ZCard(ctx, "concurrency:app-1:active")
		return err == nil && active == 0
	}, time.Second, 10*time.Millisecond)
}

func TestGovernor_ExitWithEmptyTokenIsNoop(t *testing.T) {
	g := NewConcurrencyGovernor(NewMemoryStore(), time.Minute, nil)
	assert.NoError(t, g.Exit(context.Background(), "app-1", ""))
}
