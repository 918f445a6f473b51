package ratelimit

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is returned by stores for absent keys.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStoreNotSupported is returned for operations a store backend
	// cannot perform (e.g. Lua scripts on the in-memory store).
	ErrStoreNotSupported = errors.New("store operation not supported")

	// ErrInvalidConfig marks an invalid limiter configuration.
	ErrInvalidConfig = errors.New("invalid config")
)

// ConcurrencyLimitError is returned by ConcurrencyGovernor.Enter when an
// application is at capacity. It carries the app id and the configured
// ceiling so callers can render an actionable rejection.
type ConcurrencyLimitError struct {
	AppID string
	Limit int64
}

func (e *ConcurrencyLimitError) Error() string {
	return fmt.Sprintf("app %s has reached the maximum of %d active requests", e.AppID, e.Limit)
}
