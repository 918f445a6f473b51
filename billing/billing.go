// Package billing looks up a tenant's subscription plan. The system
// rate limiter only applies to tenants on the constrained sandbox tier.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Plan is a subscription tier.
type Plan string

const (
	PlanSandbox      Plan = "sandbox"
	PlanProfessional Plan = "professional"
	PlanTeam         Plan = "team"
)

// Service resolves the subscription plan for a tenant.
type Service interface {
	GetPlan(ctx context.Context, tenantID string) (Plan, error)
}

// Config configures the billing lookup.
type Config struct {
	// Enabled toggles the billing-gated rate limiting altogether.
	Enabled bool `mapstructure:"enabled"`

	// Endpoint is the billing API base URL. Empty means every tenant
	// is treated as sandbox (useful in dev with enabled=true).
	Endpoint string `mapstructure:"endpoint"`

	Timeout time.Duration `mapstructure:"timeout"`
}

// ApplyDefaults fills zero-value fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
}

// HTTPService queries a billing API over HTTP.
type HTTPService struct {
	baseURL string
	client  *http.Client
}

// NewHTTPService creates a billing client for the given base URL.
func NewHTTPService(baseURL string, timeout time.Duration) *HTTPService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type subscriptionResponse struct {
	Subscription struct {
		Plan Plan `json:"plan"`
	} `json:"subscription"`
}

// GetPlan fetches the tenant's subscription plan.
func (s *HTTPService) GetPlan(ctx context.Context, tenantID string) (Plan, error) {
	endpoint := fmt.Sprintf("%s/subscription/info?tenant_id=%s", s.baseURL, url.QueryEscape(tenantID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build billing request failed: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("billing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("billing request failed: unexpected status %d", resp.StatusCode)
	}

	var body subscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode billing response failed: %w", err)
	}
	if body.Subscription.Plan == "" {
		return "", fmt.Errorf("billing response missing plan")
	}
	return body.Subscription.Plan, nil
}

// StaticService serves plans from a fixed map; tenants not listed get
// the fallback plan. Used in dev setups and tests.
type StaticService struct {
	plans    map[string]Plan
	fallback Plan
}

// NewStaticService creates a static plan lookup.
func NewStaticService(plans map[string]Plan, fallback Plan) *StaticService {
	if fallback == "" {
		fallback = PlanSandbox
	}
	return &StaticService{plans: plans, fallback: fallback}
}

// GetPlan returns the configured plan for the tenant.
func (s *StaticService) GetPlan(ctx context.Context, tenantID string) (Plan, error) {
	if plan, ok := s.plans[tenantID]; ok {
		return plan, nil
	}
	return s.fallback, nil
}
