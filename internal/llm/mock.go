package llm

import (
	"context"
	"sync"

	"github.com/finsift/finsift/internal/common"
)

// MockClient is a configurable Client for tests.
type MockClient struct {
	// CompleteFunc, when set, handles every call.
	CompleteFunc func(ctx context.Context, req CompletionRequest) (Completion, error)
	// Responses are returned in order when CompleteFunc is nil; once
	// exhausted the last response repeats.
	Responses []Completion
	// Err, when set, is returned for every call (CompleteFunc wins).
	Err error

	mu    sync.Mutex
	calls []CompletionRequest
}

// Complete records the request and replies per configuration.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	n := len(m.calls)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	if m.Err != nil {
		return Completion{}, m.Err
	}
	if len(m.Responses) == 0 {
		return Completion{}, common.ErrEmptyContent
	}
	idx := n - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

// Calls returns a copy of every request received.
func (m *MockClient) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many calls were made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
