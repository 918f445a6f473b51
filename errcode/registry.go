package errcode

import (
	"fmt"
	"sync"
)

// Registry keeps track of registered error codes and detects conflicts.
type Registry struct {
	mu    sync.RWMutex
	codes map[int]string // code -> module:msgKey
}

var globalRegistry = &Registry{
	codes: make(map[int]string),
}

// Register registers an error code in the global registry.
// Registering the same code with a different msgKey panics at init time,
// which surfaces code collisions before the process serves traffic.
func Register(err *LayeredError) *LayeredError {
	return globalRegistry.Register(err)
}

// Register registers an error code. Re-registering the identical
// code/msgKey pair is an idempotent no-op.
func (r *Registry) Register(err *LayeredError) *LayeredError {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := err.Code()
	key := fmt.Sprintf("%s:%s", err.Module(), err.MsgKey())

	if existingKey, exists := r.codes[code]; exists {
		if existingKey != key {
			panic(fmt.Sprintf(
				"error code conflict: code %d is already registered as %s, cannot register as %s",
				code, existingKey, key,
			))
		}
		return err
	}

	r.codes[code] = key
	return err
}

// Registered returns all registered codes keyed by code value.
func (r *Registry) Registered() map[int]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int]string, len(r.codes))
	for code, key := range r.codes {
		out[code] = key
	}
	return out
}
