package appgen

import (
	"context"
	"errors"
	"sync"
)

// releaser runs its release function exactly once no matter how many of
// the lifecycle paths (exhaustion, error, abandonment, blocking
// completion) reach it.
type releaser struct {
	once sync.Once
	fn   func()
}

func newReleaser(fn func()) *releaser {
	return &releaser{fn: fn}
}

func (r *releaser) Release() {
	if r == nil || r.fn == nil {
		return
	}
	r.once.Do(r.fn)
}

// bindRelease ties rel to the lifetime of a generation outcome.
//
// For errors and blocking outputs the ticket is released before the
// caller sees the result. For streaming outputs the release is deferred
// onto the stream itself: it fires when the stream is exhausted, fails,
// or is closed without being fully consumed.
//
// Provider throttling surfaces here in a uniform shape: a dispatch
// error or a mid-stream error carrying ErrProviderThrottled is
// translated to ErrUpstreamRateLimitExceeded after the ticket is
// released.
func bindRelease(out *Output, err error, rel *releaser) (*Output, error) {
	if err != nil {
		rel.Release()
		return nil, translateThrottle(err)
	}
	if !out.Streaming() {
		rel.Release()
		return out, nil
	}

	inner := out.Stream()
	wrapped := NewEventStream(func(ctx context.Context) (Event, error) {
		ev, nextErr := inner.Next(ctx)
		if nextErr != nil {
			return Event{}, translateThrottle(nextErr)
		}
		return ev, nil
	})
	wrapped.OnClose(func() {
		inner.Close()
		rel.Release()
	})
	return NewStreamingOutput(wrapped), nil
}

func translateThrottle(err error) error {
	if errors.Is(err, ErrProviderThrottled) {
		return ErrUpstreamRateLimitExceeded.WithCause(err)
	}
	return err
}
