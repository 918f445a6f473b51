package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/KOMKZ/go-appgen/logger"
	"go.uber.org/zap"
)

// SystemRateLimiter enforces a per-tenant request ceiling within a fixed
// window (by default one day). It is a soft quota: the check and the
// increment are two separate store calls, so a narrow race exists for
// the same tenant under high concurrency. That margin is accepted; the
// hard bound is the ConcurrencyGovernor.
//
// The limiter never fails open loudly: a store error is logged and the
// request is treated as not limited, since admission must not depend on
// quota bookkeeping being available.
type SystemRateLimiter struct {
	store   Store
	limit   int64
	window  time.Duration
	logger  *logger.CtxZapLogger
	metrics *OTelMetrics
}

// NewSystemRateLimiter creates a tenant quota limiter.
// limit 0 disables it: IsRateLimited always returns false.
func NewSystemRateLimiter(store Store, limit int64, window time.Duration, log *logger.CtxZapLogger) *SystemRateLimiter {
	if log == nil {
		log = logger.GetLogger("ratelimit")
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &SystemRateLimiter{
		store:  store,
		limit:  limit,
		window: window,
		logger: log,
	}
}

// SetMetrics attaches an optional metrics provider.
func (l *SystemRateLimiter) SetMetrics(m *OTelMetrics) {
	l.metrics = m
}

// Limit returns the configured per-window ceiling.
func (l *SystemRateLimiter) Limit() int64 {
	return l.limit
}

// IsRateLimited reports whether the tenant has used up its window quota.
// An absent counter counts as zero.
func (l *SystemRateLimiter) IsRateLimited(ctx context.Context, tenantID string) bool {
	if l.limit <= 0 {
		return false
	}

	count, err := l.store.GetInt64(ctx, l.key(tenantID))
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			l.logger.WarnCtx(ctx, "rate limit read failed, treating tenant as not limited",
				zap.String("tenant_id", tenantID),
				zap.Error(err))
		}
		return false
	}

	limited := count >= l.limit
	if limited {
		l.metrics.RecordRateLimited(ctx, tenantID)
	}
	return limited
}

// Increment counts one request against the tenant's window. The first
// increment of a window arms the expiry, after which the counter resets
// implicitly via store TTL.
func (l *SystemRateLimiter) Increment(ctx context.Context, tenantID string) {
	if l.limit <= 0 {
		return
	}

	key := l.key(tenantID)
	count, err := l.store.Incr(ctx, key)
	if err != nil {
		l.logger.WarnCtx(ctx, "rate limit increment failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return
	}

	if count == 1 {
		if err := l.store.Expire(ctx, key, l.window); err != nil {
			l.logger.WarnCtx(ctx, "rate limit expire failed",
				zap.String("tenant_id", tenantID),
				zap.Error(err))
		}
	}
}

func (l *SystemRateLimiter) key(tenantID string) string {
	return "rate_limit:day:" + tenantID
}
