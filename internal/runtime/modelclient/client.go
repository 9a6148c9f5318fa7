package modelclient

import "context"

// StreamRequest bundles everything a backend needs for one model call.
type StreamRequest struct {
	Messages []Message
	Tools    []ToolDef
}

// Client is the abstract streaming LLM contract every provider backend
// implements. Stream returns a channel of Chunk that is closed when the
// stream ends, successfully or not; a failure discovered mid-stream is sent
// on the returned error channel.
// Retryable failures (connection, timeout, rate limit, 5xx) are retried
// transparently inside the backend per the normalisation rules; only
// non-retryable failures are returned from Stream itself.
type Client interface {
	// Stream starts a streaming completion. The returned channel is closed
	// when the model finishes or ctx is cancelled. A non-nil error is
	// returned only for failures discovered before the stream begins, or
	// carried on the errCh for failures discovered mid-stream.
	Stream(ctx context.Context, req StreamRequest) (<-chan Chunk, <-chan error, error)

	// Name identifies the backend ("vertex-gemini", "anthropic", ...) for
	// Step.Metrics.Provider/Model bookkeeping.
	Name() string
	Model() string
}
