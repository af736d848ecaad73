package llm

import (
	"context"
	"time"
)

// Client defines the interface for text-completion providers. The
// provider is a black box: its reply is expected to follow the compact
// grammar but never assumed to.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// CompletionRequest is a single text-completion call.
type CompletionRequest struct {
	System    string
	User      string
	MaxTokens int
}

// Completion is the provider's reply plus usage accounting.
type Completion struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Config holds configuration for LLM clients.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}
