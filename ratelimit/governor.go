package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KOMKZ/go-appgen/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// admitScript prunes stale tickets, checks the ceiling and admits the
// token in one atomic step, so the ceiling holds across all server
// processes sharing the store.
//
// KEYS[1] = active ticket set
// ARGV[1] = token, ARGV[2] = now (unix nanos), ARGV[3] = limit,
// ARGV[4] = stale-before (unix nanos), ARGV[5] = key ttl (seconds)
// Returns 1 when admitted, 0 when at capacity.
const admitScript = `
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[4])
local limit = tonumber(ARGV[3])
if limit > 0 and redis.call('ZCARD', KEYS[1]) >= limit then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
redis.call('EXPIRE', KEYS[1], ARGV[5])
return 1
`

// ConcurrencyGovernor enforces a per-application ceiling on in-flight
// requests. Admission is accept-or-reject: a request over the ceiling
// fails immediately with *ConcurrencyLimitError, it is never queued.
//
// Each admitted request holds an AdmissionTicket (an opaque token) in
// the app's active set until Exit releases it. Tickets older than
// maxTicketAge are treated as leaked and pruned, so a crashed process
// cannot pin an app at capacity forever.
type ConcurrencyGovernor struct {
	store        Store
	maxTicketAge time.Duration
	logger       *logger.CtxZapLogger
	metrics      *OTelMetrics

	// mu serializes the check-and-admit fallback used when the store
	// cannot run scripts (memory store). The Redis path is atomic via
	// Lua and does not take this lock.
	mu sync.Mutex

	// apps tracks every app id seen, for the janitor sweep.
	apps sync.Map // appID -> struct{}
}

// NewConcurrencyGovernor creates a governor over the given store.
func NewConcurrencyGovernor(store Store, maxTicketAge time.Duration, log *logger.CtxZapLogger) *ConcurrencyGovernor {
	if log == nil {
		log = logger.GetLogger("ratelimit")
	}
	if maxTicketAge <= 0 {
		maxTicketAge = 10 * time.Minute
	}
	return &ConcurrencyGovernor{
		store:        store,
		maxTicketAge: maxTicketAge,
		logger:       log,
	}
}

// SetMetrics attaches an optional metrics provider.
func (g *ConcurrencyGovernor) SetMetrics(m *OTelMetrics) {
	g.metrics = m
}

// GenToken returns a fresh ticket token. UUIDv4 gives enough entropy
// that two concurrent requests cannot collide within the retention
// window and conflate their lifecycles.
func (g *ConcurrencyGovernor) GenToken() string {
	return uuid.NewString()
}

// Enter claims a concurrency slot for appID and returns the admission
// ticket token. limit 0 admits unconditionally. An empty token is
// replaced by a generated one. At capacity it fails with
// *ConcurrencyLimitError carrying the app id and ceiling.
func (g *ConcurrencyGovernor) Enter(ctx context.Context, appID, token string, limit int64) (string, error) {
	if token == "" {
		token = g.GenToken()
	}

	now := time.Now()
	admitted, err := g.admit(ctx, appID, token, limit, now)
	if err != nil {
		return "", fmt.Errorf("concurrency admit failed: %w", err)
	}

	g.apps.Store(appID, struct{}{})

	if !admitted {
		g.metrics.RecordReject(ctx, appID)
		g.logger.DebugCtx(ctx, "request rejected at concurrency ceiling",
			zap.String("app_id", appID),
			zap.Int64("limit", limit))
		return "", &ConcurrencyLimitError{AppID: appID, Limit: limit}
	}

	g.metrics.RecordAdmit(ctx, appID)
	return token, nil
}

// Exit releases the ticket. Releasing an already-released or unknown
// ticket is a safe no-op: multiple exit paths (success, failure,
// explicit cleanup) may race to release the same ticket.
func (g *ConcurrencyGovernor) Exit(ctx context.Context, appID, token string) error {
	if token == "" {
		return nil
	}
	if err := g.store.ZRem(ctx, g.key(appID), token); err != nil {
		return fmt.Errorf("concurrency release failed: %w", err)
	}
	g.metrics.RecordRelease(ctx, appID)
	return nil
}

// Active returns the number of live tickets for appID after pruning
// stale ones.
func (g *ConcurrencyGovernor) Active(ctx context.Context, appID string) (int64, error) {
	if err := g.Recalc(ctx, appID); err != nil {
		return 0, err
	}
	return g.store.ZCard(ctx, g.key(appID))
}

// Recalc prunes tickets older than maxTicketAge for appID.
func (g *ConcurrencyGovernor) Recalc(ctx context.Context, appID string) error {
	staleBefore := float64(time.Now().Add(-g.maxTicketAge).UnixNano())
	return g.store.ZRemRangeByScore(ctx, g.key(appID), 0, staleBefore)
}

// TrackedApps returns the app ids this process has admitted for.
func (g *ConcurrencyGovernor) TrackedApps() []string {
	var apps []string
	g.apps.Range(func(key, _ interface{}) bool {
		apps = append(apps, key.(string))
		return true
	})
	return apps
}

func (g *ConcurrencyGovernor) admit(ctx context.Context, appID, token string, limit int64, now time.Time) (bool, error) {
	key := g.key(appID)
	score := float64(now.UnixNano())
	staleBefore := float64(now.Add(-g.maxTicketAge).UnixNano())
	keyTTL := int64((2 * g.maxTicketAge).Seconds())

	res, err := g.store.Eval(ctx, admitScript,
		[]string{key},
		[]interface{}{token, score, limit, staleBefore, keyTTL})
	if err == nil {
		n, ok := res.(int64)
		if !ok {
			return false, fmt.Errorf("unexpected admit script result %T", res)
		}
		return n == 1, nil
	}
	if !errors.Is(err, ErrStoreNotSupported) {
		return false, err
	}

	// Script-less fallback: same steps under a process-local lock.
	// Only correct for single-process stores (memory).
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.ZRemRangeByScore(ctx, key, 0, staleBefore); err != nil {
		return false, err
	}
	if limit > 0 {
		active, err := g.store.ZCard(ctx, key)
		if err != nil {
			return false, err
		}
		if active >= limit {
			return false, nil
		}
	}
	if err := g.store.ZAdd(ctx, key, score, token); err != nil {
		return false, err
	}
	return true, nil
}

func (g *ConcurrencyGovernor) key(appID string) string {
	return "concurrency:" + appID + ":active"
}
