package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Pacer gates successive batch dispatches so external rate limits are
// respected. It is decoupled from the orchestration logic so the
// pacing policy can be swapped or tested independently.
type Pacer interface {
	// Wait blocks until the next dispatch may proceed or the context
	// is canceled.
	Wait(ctx context.Context) error
}

// FixedDelayPacer enforces a minimum interval between dispatches.
// The first call passes immediately.
type FixedDelayPacer struct {
	last     time.Time
	interval time.Duration
	mu       sync.Mutex
}

// NewFixedDelayPacer creates a pacer with the given inter-dispatch
// delay. A non-positive interval defaults to one second.
func NewFixedDelayPacer(interval time.Duration) *FixedDelayPacer {
	if interval <= 0 {
		interval = time.Second
	}
	return &FixedDelayPacer{interval: interval}
}

// Wait blocks until the interval since the previous dispatch has
// elapsed or the context is canceled.
func (p *FixedDelayPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	var sleep time.Duration
	if !p.last.IsZero() {
		sleep = p.interval - time.Since(p.last)
	}
	// Reserve the slot before sleeping so concurrent callers queue up
	// rather than dispatching together.
	if sleep > 0 {
		p.last = p.last.Add(p.interval)
	} else {
		p.last = time.Now()
	}
	p.mu.Unlock()

	if sleep <= 0 {
		return nil
	}

	timer := time.NewTimer(sleep)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("pacer canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// NopPacer never waits. Used in tests and when pacing is disabled.
type NopPacer struct{}

// Wait returns immediately.
func (NopPacer) Wait(_ context.Context) error { return nil }
