package appgen

import (
	"context"
	"io"
	"iter"
	"sync"
)

// Event is one element of a generation event stream. The payload is
// opaque to this layer; only strategies interpret it.
type Event struct {
	Name string         `json:"event"`
	Data map[string]any `json:"data,omitempty"`
}

// NextFunc produces the next event of a lazy sequence. It returns
// io.EOF on natural exhaustion.
type NextFunc func(ctx context.Context) (Event, error)

// EventStream is a pull-based, non-restartable lazy event sequence with
// an explicit finalization hook. Finalizers run exactly once, on
// whichever comes first: natural exhaustion, a mid-stream error, or
// Close (early abandonment). This is what lets the dispatch wrapper tie
// an admission ticket to the stream's lifetime rather than only to its
// natural end.
type EventStream struct {
	next NextFunc

	mu         sync.Mutex
	finalized  bool
	finalizers []func()
}

// NewEventStream creates a stream over next.
func NewEventStream(next NextFunc) *EventStream {
	return &EventStream{next: next}
}

// FromChannel creates a stream fed by ch; the stream ends when ch is
// closed.
func FromChannel(ch <-chan Event) *EventStream {
	return NewEventStream(func(ctx context.Context) (Event, error) {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return Event{}, io.EOF
			}
			return ev, nil
		}
	})
}

// FromEvents creates a stream over a fixed event slice.
func FromEvents(events ...Event) *EventStream {
	i := 0
	return NewEventStream(func(ctx context.Context) (Event, error) {
		if i >= len(events) {
			return Event{}, io.EOF
		}
		ev := events[i]
		i++
		return ev, nil
	})
}

// OnClose registers a finalizer. If the stream is already finalized the
// hook runs immediately, so late registration cannot leak a resource.
func (s *EventStream) OnClose(fn func()) {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		fn()
		return
	}
	s.finalizers = append(s.finalizers, fn)
	s.mu.Unlock()
}

// Next pulls the next event. Any non-nil error (including io.EOF)
// finalizes the stream before it is returned, so resources are released
// before the caller observes the failure. A finalized stream keeps
// returning io.EOF.
func (s *EventStream) Next(ctx context.Context) (Event, error) {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return Event{}, io.EOF
	}
	s.mu.Unlock()

	ev, err := s.next(ctx)
	if err != nil {
		s.finalize()
		return Event{}, err
	}
	return ev, nil
}

// Close finalizes the stream. Safe to call any number of times, at any
// point of consumption; the caller abandoning the stream early must
// still see the finalizers run.
func (s *EventStream) Close() error {
	s.finalize()
	return nil
}

// All returns an iterator over the remaining events. The stream is
// finalized when iteration stops for any reason, including an early
// break by the caller.
func (s *EventStream) All(ctx context.Context) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		defer s.finalize()
		for {
			ev, err := s.Next(ctx)
			if err == io.EOF {
				return
			}
			if !yield(ev, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

func (s *EventStream) finalize() {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return
	}
	s.finalized = true
	finalizers := s.finalizers
	s.finalizers = nil
	s.mu.Unlock()

	for _, fn := range finalizers {
		fn()
	}
}
