// Package llm provides the model client used for narrative generation.
// The conversation window and splitter never touch this package; only the
// session orchestrator crosses the generation boundary.
package llm

import (
	"context"
	"time"
)

// Message represents a chat message for the model.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Options are per-request generation parameters.
type Options struct {
	// Temperature controls sampling randomness.
	Temperature float64 `json:"temperature,omitempty"`
	// NumPredict caps the length of the generated response in tokens.
	NumPredict int `json:"num_predict,omitempty"`
}

// Response is the provider-neutral result of a chat request.
type Response struct {
	Model     string
	CreatedAt time.Time
	Content   string

	// Token usage, when the provider reports it.
	InputTokens  int
	OutputTokens int

	TotalDuration time.Duration
}

// Client is the interface the session depends on. Implementations must
// honor context cancellation; the session discards its pending proposal
// whenever Chat returns an error, cancellation included.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	Chat(ctx context.Context, model string, messages []Message, opts *Options) (*Response, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
