// Package health aggregates dependency health checks behind one
// endpoint.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Status is the outcome of a check.
type Status string

const (
	// StatusHealthy means every check passed.
	StatusHealthy Status = "healthy"
	// StatusDegraded means some checks failed.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy means every check failed.
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Response is the aggregated health report.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// IsHealthy reports whether all checks passed.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// Aggregator runs registered checks and folds them into one status.
type Aggregator struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// NewAggregator creates an aggregator; timeout bounds each check
// (default 5s).
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Aggregator{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
	}
}

// Register adds a named check. Re-registering a name replaces it.
func (a *Aggregator) Register(name string, check CheckFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checks[name] = check
}

// Check runs all checks. With no checks registered the service is
// healthy by definition.
func (a *Aggregator) Check(ctx context.Context) *Response {
	a.mu.RLock()
	checks := make(map[string]CheckFunc, len(a.checks))
	for name, fn := range a.checks {
		checks[name] = fn
	}
	a.mu.RUnlock()

	start := time.Now()
	resp := &Response{
		Timestamp: start,
		Checks:    make(map[string]CheckResult, len(checks)),
	}

	failed := 0
	for name, fn := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, a.timeout)
		checkStart := time.Now()
		err := fn(checkCtx)
		cancel()

		result := CheckResult{
			Name:     name,
			Status:   StatusHealthy,
			Duration: time.Since(checkStart),
		}
		if err != nil {
			failed++
			result.Status = StatusUnhealthy
			result.Error = err.Error()
		}
		resp.Checks[name] = result
	}

	resp.Duration = time.Since(start)
	switch {
	case failed == 0:
		resp.Status = StatusHealthy
	case failed == len(checks):
		resp.Status = StatusUnhealthy
	default:
		resp.Status = StatusDegraded
	}
	return resp
}

// Handler serves the health report. Healthy and degraded return 200 so
// partial outages do not pull the whole instance out of rotation;
// unhealthy returns 503.
func (a *Aggregator) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := a.Check(c.Request.Context())
		status := http.StatusOK
		if resp.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}
