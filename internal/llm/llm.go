package llm

import (
	"context"
	"errors"
)

// ErrNoAPIKey signals that no credential was configured for the provider.
// Handlers map it to a configuration-error response rather than a crash.
var ErrNoAPIKey = errors.New("llm: api key not configured")

// Message is one turn of a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest carries everything a single completion call needs.
// Zero MaxTokens/Temperature fall back to the provider defaults.
type CompletionRequest struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
}

// Provider is the narrow contract against the hosted completion API.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
