package ratelimit

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics instruments both limiters with OpenTelemetry counters.
// All record methods are safe on a nil receiver so the limiters can run
// without metrics wired.
type OTelMetrics struct {
	mu         sync.RWMutex
	registered bool

	admittedTotal    metric.Int64Counter
	rejectedTotal    metric.Int64Counter
	releasedTotal    metric.Int64Counter
	rateLimitedTotal metric.Int64Counter
}

// NewOTelMetrics creates an unregistered metrics provider.
func NewOTelMetrics() *OTelMetrics {
	return &OTelMetrics{}
}

// Register creates the instruments on the given meter. Idempotent.
func (m *OTelMetrics) Register(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	var err error
	m.admittedTotal, err = meter.Int64Counter(
		"appgen_admissions_total",
		metric.WithDescription("Requests admitted by the concurrency governor"))
	if err != nil {
		return err
	}

	m.rejectedTotal, err = meter.Int64Counter(
		"appgen_admission_rejects_total",
		metric.WithDescription("Requests rejected at the concurrency ceiling"))
	if err != nil {
		return err
	}

	m.releasedTotal, err = meter.Int64Counter(
		"appgen_ticket_releases_total",
		metric.WithDescription("Admission tickets released"))
	if err != nil {
		return err
	}

	m.rateLimitedTotal, err = meter.Int64Counter(
		"appgen_rate_limited_total",
		metric.WithDescription("Requests rejected by the tenant daily quota"))
	if err != nil {
		return err
	}

	m.registered = true
	return nil
}

// RecordAdmit counts an admission for appID.
func (m *OTelMetrics) RecordAdmit(ctx context.Context, appID string) {
	if c := m.counter(func() metric.Int64Counter { return m.admittedTotal }); c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("app_id", appID)))
	}
}

// RecordReject counts a concurrency rejection for appID.
func (m *OTelMetrics) RecordReject(ctx context.Context, appID string) {
	if c := m.counter(func() metric.Int64Counter { return m.rejectedTotal }); c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("app_id", appID)))
	}
}

// RecordRelease counts a ticket release for appID.
func (m *OTelMetrics) RecordRelease(ctx context.Context, appID string) {
	if c := m.counter(func() metric.Int64Counter { return m.releasedTotal }); c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("app_id", appID)))
	}
}

// RecordRateLimited counts a tenant quota rejection.
func (m *OTelMetrics) RecordRateLimited(ctx context.Context, tenantID string) {
	if c := m.counter(func() metric.Int64Counter { return m.rateLimitedTotal }); c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("tenant_id", tenantID)))
	}
}

func (m *OTelMetrics) counter(get func() metric.Int64Counter) metric.Int64Counter {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.registered {
		return nil
	}
	return get()
}
