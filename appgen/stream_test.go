package appgen

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStreamConsumeToEnd(t *testing.T) {
	stream := FromEvents(
		Event{Name: "message", Data: map[string]any{"chunk": "a"}},
		Event{Name: "message", Data: map[string]any{"chunk": "b"}},
		Event{Name: "message_end"},
	)

	closed := 0
	stream.OnClose(func() { closed++ })

	ctx := context.Background()
	var names []string
	for {
		ev, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, ev.Name)
	}

	assert.Equal(t, []string{"message", "message", "message_end"}, names)
	assert.Equal(t, 1, closed, "finalizer must fire exactly once on exhaustion")

	// A finished stream stays finished.
	_, err := stream.Next(ctx)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 1, closed)
}

func TestEventStreamEarlyClose(t *testing.T) {
	stream := FromEvents(
		Event{Name: "message"},
		Event{Name: "message"},
		Event{Name: "message_end"},
	)

	closed := 0
	stream.OnClose(func() { closed++ })

	ctx := context.Background()
	_, err := stream.Next(ctx)
	require.NoError(t, err)

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())
	assert.Equal(t, 1, closed, "abandoning the stream must finalize exactly once")

	_, err = stream.Next(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestEventStreamFinalizesOnError(t *testing.T) {
	boom := errors.New("provider failure")
	calls := 0
	stream := NewEventStream(func(ctx context.Context) (Event, error) {
		calls++
		if calls == 1 {
			return Event{Name: "message"}, nil
		}
		return Event{}, boom
	})

	closed := 0
	stream.OnClose(func() { closed++ })

	ctx := context.Background()
	_, err := stream.Next(ctx)
	require.NoError(t, err)

	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, closed, "a mid-stream error must finalize before returning")

	_, err = stream.Next(ctx)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 1, closed)
}

func TestEventStreamOnCloseAfterFinalized(t *testing.T) {
	stream := FromEvents()
	_, err := stream.Next(context.Background())
	require.Equal(t, io.EOF, err)

	fired := false
	stream.OnClose(func() { fired = true })
	assert.True(t, fired, "a hook registered after finalization runs immediately")
}

func TestEventStreamAllEarlyBreak(t *testing.T) {
	stream := FromEvents(
		Event{Name: "message"},
		Event{Name: "message"},
		Event{Name: "message_end"},
	)

	closed := 0
	stream.OnClose(func() { closed++ })

	seen := 0
	for _, err := range stream.All(context.Background()) {
		require.NoError(t, err)
		seen++
		if seen == 1 {
			break
		}
	}

	assert.Equal(t, 1, seen)
	assert.Equal(t, 1, closed, "breaking out of All must finalize the stream")
}

func TestEventStreamFromChannel(t *testing.T) {
	ch := make(chan Event, 2)
	ch <- Event{Name: "message"}
	ch <- Event{Name: "message_end"}
	close(ch)

	stream := FromChannel(ch)
	ctx := context.Background()

	ev, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "message", ev.Name)

	ev, err = stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "message_end", ev.Name)

	_, err = stream.Next(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestEventStreamFromChannelContextCanceled(t *testing.T) {
	ch := make(chan Event)
	stream := FromChannel(ch)

	closed := 0
	stream.OnClose(func() { closed++ })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := stream.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, closed, "a canceled pull must finalize the stream")
}
