package engine

import (
	"sync"
	"time"

	"github.com/finsift/finsift/internal/model"
	"github.com/shopspring/decimal"
)

// CostStatsTracker holds process-wide running counters for call volume,
// cost, and coverage. It is explicitly constructed and injected rather
// than held as module-level singleton state, so tests get isolation and
// concurrent requests share one consistent view. All counters are
// monotonically non-decreasing until an explicit Reset.
type CostStatsTracker struct {
	totalCost      decimal.Decimal
	processingTime time.Duration
	totalProcessed int64
	cacheHits      int64
	referenceHits  int64
	aiResolved     int64
	fallbacks      int64
	aiCallsMade    int64
	aiFailures     int64
	inputTokens    int64
	outputTokens   int64
	mu             sync.Mutex
}

// NewCostStatsTracker creates an empty tracker.
func NewCostStatsTracker() *CostStatsTracker {
	return &CostStatsTracker{totalCost: decimal.Zero}
}

// RecordAICall accounts one successful external call.
func (t *CostStatsTracker) RecordAICall(inputTokens, outputTokens int, cost decimal.Decimal, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aiCallsMade++
	t.inputTokens += int64(inputTokens)
	t.outputTokens += int64(outputTokens)
	t.totalCost = t.totalCost.Add(cost)
	t.processingTime += latency
}

// RecordAIFailure accounts one failed external call.
func (t *CostStatsTracker) RecordAIFailure(latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aiCallsMade++
	t.aiFailures++
	t.processingTime += latency
}

// RecordResolution accounts one classified transaction by the phase
// that resolved it.
func (t *CostStatsTracker) RecordResolution(src model.Source) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalProcessed++
	switch src {
	case model.SourceCache:
		t.cacheHits++
	case model.SourceReference:
		t.referenceHits++
	case model.SourceAI:
		t.aiResolved++
	case model.SourceFallback:
		t.fallbacks++
	}
}

// AddProcessingTime accounts pipeline time outside external calls.
func (t *CostStatsTracker) AddProcessingTime(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processingTime += d
}

// Reset zeroes every counter. This is the only way counters decrease.
func (t *CostStatsTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalCost = decimal.Zero
	t.processingTime = 0
	t.totalProcessed = 0
	t.cacheHits = 0
	t.referenceHits = 0
	t.aiResolved = 0
	t.fallbacks = 0
	t.aiCallsMade = 0
	t.aiFailures = 0
	t.inputTokens = 0
	t.outputTokens = 0
}

// CostStats is an immutable snapshot of the tracker.
type CostStats struct {
	TotalCost      decimal.Decimal
	ProcessingTime time.Duration
	TotalProcessed int64
	CacheHits      int64
	ReferenceHits  int64
	AIResolved     int64
	Fallbacks      int64
	AICallsMade    int64
	AIFailures     int64
	InputTokens    int64
	OutputTokens   int64
}

// Snapshot returns a point-in-time copy of all counters.
func (t *CostStatsTracker) Snapshot() CostStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return CostStats{
		TotalCost:      t.totalCost,
		ProcessingTime: t.processingTime,
		TotalProcessed: t.totalProcessed,
		CacheHits:      t.cacheHits,
		ReferenceHits:  t.referenceHits,
		AIResolved:     t.aiResolved,
		Fallbacks:      t.fallbacks,
		AICallsMade:    t.aiCallsMade,
		AIFailures:     t.aiFailures,
		InputTokens:    t.inputTokens,
		OutputTokens:   t.outputTokens,
	}
}

// CacheHitRate returns the fraction of processed transactions resolved
// from the cache.
func (s CostStats) CacheHitRate() float64 {
	if s.TotalProcessed == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.TotalProcessed)
}

// ReferenceCoverage returns the fraction resolved by reference rules.
func (s CostStats) ReferenceCoverage() float64 {
	if s.TotalProcessed == 0 {
		return 0
	}
	return float64(s.ReferenceHits) / float64(s.TotalProcessed)
}
