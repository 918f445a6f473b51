package appgen

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-appgen/billing"
	"github.com/KOMKZ/go-appgen/logger"
	"github.com/KOMKZ/go-appgen/ratelimit"
)

// Service is the generation entry point. Every request passes the same
// admission pipeline before any strategy runs: the tenant's daily quota
// first, then the app's concurrency ceiling. Admission failures
// short-circuit; once a ticket is held its release is bound to the full
// lifetime of the response.
type Service struct {
	registry   *Registry
	sysLimiter *ratelimit.SystemRateLimiter
	governor   *ratelimit.ConcurrencyGovernor
	billing    billing.Service

	defaultMaxActive int64
	logger           *logger.CtxZapLogger
}

// NewService wires the admission pipeline. sysLimiter and billingSvc
// may be nil: a nil limiter disables the daily quota, a nil billing
// service applies the quota to every tenant instead of gating it on the
// sandbox plan. defaultMaxActive is the system-wide concurrency ceiling
// applied to apps without their own; 0 means no system default.
func NewService(
	registry *Registry,
	sysLimiter *ratelimit.SystemRateLimiter,
	governor *ratelimit.ConcurrencyGovernor,
	billingSvc billing.Service,
	defaultMaxActive int64,
) *Service {
	return &Service{
		registry:         registry,
		sysLimiter:       sysLimiter,
		governor:         governor,
		billing:          billingSvc,
		defaultMaxActive: defaultMaxActive,
		logger:           logger.GetLogger("appgen"),
	}
}

// Generate runs one generation for app in the mode the app is
// configured with. Chat apps driven by an agent dispatch to the
// agent-chat strategy.
func (s *Service) Generate(ctx context.Context, app *App, user User, args map[string]any, invokeFrom InvokeFrom, streaming bool) (*Output, error) {
	mode, err := s.generationMode(app)
	if err != nil {
		return nil, err
	}
	gctx := &GenerationContext{
		App:        app,
		User:       user,
		Args:       args,
		InvokeFrom: invokeFrom,
		Streaming:  streaming,
	}
	return s.generate(ctx, mode, gctx)
}

// GenerateSingleIteration re-runs a single iteration node of the draft
// workflow. Debugger-only; workflow-backed apps only.
func (s *Service) GenerateSingleIteration(ctx context.Context, app *App, user User, nodeID string, args map[string]any, streaming bool) (*Output, error) {
	return s.generateSingleStep(ctx, GenSingleIteration, app, user, nodeID, args, streaming)
}

// GenerateSingleLoop re-runs a single loop node of the draft workflow.
// Debugger-only; workflow-backed apps only.
func (s *Service) GenerateSingleLoop(ctx context.Context, app *App, user User, nodeID string, args map[string]any, streaming bool) (*Output, error) {
	return s.generateSingleStep(ctx, GenSingleLoop, app, user, nodeID, args, streaming)
}

// GenerateMoreLikeThis regenerates a variation of an earlier completion
// message. Completion-mode apps only.
func (s *Service) GenerateMoreLikeThis(ctx context.Context, app *App, user User, messageID string, invokeFrom InvokeFrom, streaming bool) (*Output, error) {
	if app.Mode != ModeCompletion {
		return nil, ErrUnsupportedMode.
			WithMsgf("more-like-this requires a completion app, got mode %q", app.Mode).
			WithData("app_id", app.ID)
	}
	gctx := &GenerationContext{
		App:        app,
		User:       user,
		InvokeFrom: invokeFrom,
		Streaming:  streaming,
		MessageID:  messageID,
	}
	return s.generate(ctx, GenMoreLikeThis, gctx)
}

func (s *Service) generateSingleStep(ctx context.Context, mode GenerationMode, app *App, user User, nodeID string, args map[string]any, streaming bool) (*Output, error) {
	if app.Mode != ModeAdvancedChat && app.Mode != ModeWorkflow {
		return nil, ErrUnsupportedMode.
			WithMsgf("single-step runs require a workflow-backed app, got mode %q", app.Mode).
			WithData("app_id", app.ID)
	}
	gctx := &GenerationContext{
		App:        app,
		User:       user,
		Args:       args,
		InvokeFrom: InvokeFromDebugger,
		Streaming:  streaming,
		NodeID:     nodeID,
	}
	return s.generate(ctx, mode, gctx)
}

// generate is the shared admission pipeline: daily quota, then
// concurrency ticket, then dispatch with the release bound to the
// outcome.
func (s *Service) generate(ctx context.Context, mode GenerationMode, gctx *GenerationContext) (*Output, error) {
	app := gctx.App

	if err := s.checkQuota(ctx, app.TenantID); err != nil {
		return nil, err
	}

	token, err := s.governor.Enter(ctx, app.ID, s.governor.GenToken(), s.maxActiveRequests(app))
	if err != nil {
		var limitErr *ratelimit.ConcurrencyLimitError
		if errors.As(err, &limitErr) {
			return nil, ErrConcurrencyLimitExceeded.
				WithData("app_id", limitErr.AppID).
				WithData("limit", limitErr.Limit)
		}
		return nil, err
	}

	// The release must reach the store even when the request context
	// is already canceled, e.g. the client disconnected mid-stream.
	exitCtx := context.WithoutCancel(ctx)
	rel := newReleaser(func() {
		if exitErr := s.governor.Exit(exitCtx, app.ID, token); exitErr != nil {
			s.logger.WarnCtx(exitCtx, "failed to release concurrency ticket",
				zap.String("app_id", app.ID),
				zap.Error(exitErr))
		}
	})

	out, err := s.registry.Dispatch(ctx, mode, gctx)
	out, err = bindRelease(out, err, rel)
	if err != nil || gctx.Streaming || !out.Streaming() {
		return out, err
	}
	// Blocking-mode call against a strategy that produced a stream:
	// drain it here so the ticket is released before the caller sees
	// the result.
	return drainToBlocking(ctx, out.Stream())
}

func drainToBlocking(ctx context.Context, stream *EventStream) (*Output, error) {
	defer stream.Close()

	var events []Event
	for {
		ev, err := stream.Next(ctx)
		if err == io.EOF {
			return NewBlockingOutput(map[string]any{"events": events}), nil
		}
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
}

// checkQuota enforces the tenant's daily generation quota. The quota
// only binds tenants on the sandbox plan; billing lookup failures and
// store failures fail open.
func (s *Service) checkQuota(ctx context.Context, tenantID string) error {
	if s.sysLimiter == nil || s.sysLimiter.Limit() <= 0 {
		return nil
	}
	if s.billing != nil {
		plan, err := s.billing.GetPlan(ctx, tenantID)
		if err != nil {
			s.logger.WarnCtx(ctx, "billing plan lookup failed, skipping rate limit",
				zap.String("tenant_id", tenantID),
				zap.Error(err))
			return nil
		}
		if plan != billing.PlanSandbox {
			return nil
		}
	}
	if s.sysLimiter.IsRateLimited(ctx, tenantID) {
		return ErrRateLimitExceeded.WithData("tenant_id", tenantID)
	}
	s.sysLimiter.Increment(ctx, tenantID)
	return nil
}

// maxActiveRequests resolves the effective concurrency ceiling for app:
// the smaller of the non-zero app and system-wide limits, 0 when
// neither applies.
func (s *Service) maxActiveRequests(app *App) int64 {
	appLimit := app.MaxActiveRequests
	switch {
	case appLimit > 0 && s.defaultMaxActive > 0:
		return min(appLimit, s.defaultMaxActive)
	case appLimit > 0:
		return appLimit
	default:
		return s.defaultMaxActive
	}
}

// generationMode maps the app's configured mode to its dispatch target.
func (s *Service) generationMode(app *App) (GenerationMode, error) {
	switch app.Mode {
	case ModeCompletion:
		return GenCompletion, nil
	case ModeChat:
		if app.IsAgent {
			return GenAgentChat, nil
		}
		return GenChat, nil
	case ModeAgentChat:
		return GenAgentChat, nil
	case ModeAdvancedChat:
		return GenAdvancedChat, nil
	case ModeWorkflow:
		return GenWorkflow, nil
	default:
		return "", ErrUnsupportedMode.
			WithMsgf("invalid app mode %q", app.Mode).
			WithData("app_id", app.ID)
	}
}
