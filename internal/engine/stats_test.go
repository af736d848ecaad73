package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/finsift/finsift/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCostStatsTrackerResolutionIdentity(t *testing.T) {
	tracker := NewCostStatsTracker()

	for i := 0; i < 5; i++ {
		tracker.RecordResolution(model.SourceCache)
	}
	for i := 0; i < 3; i++ {
		tracker.RecordResolution(model.SourceReference)
	}
	for i := 0; i < 2; i++ {
		tracker.RecordResolution(model.SourceAI)
	}
	tracker.RecordResolution(model.SourceFallback)

	stats := tracker.Snapshot()
	assert.Equal(t, int64(11), stats.TotalProcessed)
	assert.Equal(t, stats.TotalProcessed,
		stats.CacheHits+stats.ReferenceHits+stats.AIResolved+stats.Fallbacks)
	assert.InDelta(t, 5.0/11.0, stats.CacheHitRate(), 0.001)
	assert.InDelta(t, 3.0/11.0, stats.ReferenceCoverage(), 0.001)
}

func TestCostStatsTrackerCallAccounting(t *testing.T) {
	tracker := NewCostStatsTracker()

	tracker.RecordAICall(100, 20, decimal.NewFromFloat(0.001), 200*time.Millisecond)
	tracker.RecordAICall(300, 60, decimal.NewFromFloat(0.003), 300*time.Millisecond)
	tracker.RecordAIFailure(50 * time.Millisecond)

	stats := tracker.Snapshot()
	assert.Equal(t, int64(3), stats.AICallsMade)
	assert.Equal(t, int64(1), stats.AIFailures)
	assert.Equal(t, int64(400), stats.InputTokens)
	assert.Equal(t, int64(80), stats.OutputTokens)
	assert.True(t, stats.TotalCost.Equal(decimal.NewFromFloat(0.004)), "got %s", stats.TotalCost)
	assert.Equal(t, 550*time.Millisecond, stats.ProcessingTime)
}

func TestCostStatsTrackerReset(t *testing.T) {
	tracker := NewCostStatsTracker()
	tracker.RecordAICall(100, 20, decimal.NewFromFloat(0.001), time.Second)
	tracker.RecordResolution(model.SourceAI)

	tracker.Reset()

	stats := tracker.Snapshot()
	assert.Equal(t, int64(0), stats.TotalProcessed)
	assert.Equal(t, int64(0), stats.AICallsMade)
	assert.True(t, stats.TotalCost.IsZero())

	// The tracker must stay usable after a reset.
	tracker.RecordResolution(model.SourceCache)
	assert.Equal(t, int64(1), tracker.Snapshot().CacheHits)
}

func TestCostStatsTrackerConcurrentUse(t *testing.T) {
	tracker := NewCostStatsTracker()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tracker.RecordResolution(model.SourceAI)
				tracker.RecordAICall(10, 2, decimal.NewFromFloat(0.0001), time.Millisecond)
			}
		}()
	}
	wg.Wait()

	stats := tracker.Snapshot()
	assert.Equal(t, int64(1000), stats.TotalProcessed)
	assert.Equal(t, int64(1000), stats.AICallsMade)
	assert.Equal(t, int64(10000), stats.InputTokens)
}

func TestCostStatsEmptyRates(t *testing.T) {
	stats := NewCostStatsTracker().Snapshot()
	assert.Zero(t, stats.CacheHitRate())
	assert.Zero(t, stats.ReferenceCoverage())
}
