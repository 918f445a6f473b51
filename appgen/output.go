package appgen

// Output is the result of one generation: either a complete blocking
// result or an event stream, never both.
type Output struct {
	result map[string]any
	stream *EventStream
}

// NewBlockingOutput wraps a complete result payload.
func NewBlockingOutput(result map[string]any) *Output {
	return &Output{result: result}
}

// NewStreamingOutput wraps an event stream.
func NewStreamingOutput(stream *EventStream) *Output {
	return &Output{stream: stream}
}

// Streaming reports whether the output carries a stream.
func (o *Output) Streaming() bool {
	return o.stream != nil
}

// Result returns the blocking payload; nil for streaming outputs.
func (o *Output) Result() map[string]any {
	return o.result
}

// Stream returns the event stream; nil for blocking outputs.
func (o *Output) Stream() *EventStream {
	return o.stream
}
