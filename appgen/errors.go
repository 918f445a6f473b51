package appgen

import (
	"errors"
	"net/http"

	"github.com/KOMKZ/go-appgen/errcode"
)

// Error codes of the appgen module (module code 20).
var (
	// ErrRateLimitExceeded rejects a tenant over its daily quota.
	ErrRateLimitExceeded = errcode.Register(errcode.New(
		20, 1001, "appgen", "error.appgen.rate_limit_exceeded",
		"rate limit exceeded, please upgrade your plan",
		http.StatusTooManyRequests))

	// ErrConcurrencyLimitExceeded rejects a request against an app at
	// its active-request ceiling. Never queued, retryable by the caller.
	ErrConcurrencyLimitExceeded = errcode.Register(errcode.New(
		20, 1002, "appgen", "error.appgen.concurrency_limit_exceeded",
		"too many active requests for this app, please try again later",
		http.StatusTooManyRequests))

	// ErrUpstreamRateLimitExceeded translates a model provider's
	// throttling signal into a uniform kind.
	ErrUpstreamRateLimitExceeded = errcode.Register(errcode.New(
		20, 1003, "appgen", "error.appgen.upstream_rate_limit_exceeded",
		"the model provider rate limited the request",
		http.StatusTooManyRequests))

	// ErrUnsupportedMode rejects an unknown or unsupported mode.
	// Fatal caller error, not retryable.
	ErrUnsupportedMode = errcode.Register(errcode.New(
		20, 1004, "appgen", "error.appgen.unsupported_mode",
		"unsupported app mode",
		http.StatusBadRequest))

	// ErrWorkflowNotFound means a debugger invocation has no draft
	// workflow to run against.
	ErrWorkflowNotFound = errcode.Register(errcode.New(
		20, 1005, "appgen", "error.appgen.workflow_not_found",
		"workflow not initialized",
		http.StatusNotFound))

	// ErrWorkflowNotPublished means a normal invocation has no
	// published workflow to run against.
	ErrWorkflowNotPublished = errcode.Register(errcode.New(
		20, 1006, "appgen", "error.appgen.workflow_not_published",
		"workflow not published",
		http.StatusBadRequest))
)

// ErrProviderThrottled is the sentinel a strategy wraps when the
// underlying model provider throttles the request. The dispatch wrapper
// translates it into ErrUpstreamRateLimitExceeded after releasing the
// admission ticket.
var ErrProviderThrottled = errors.New("model provider throttled the request")
