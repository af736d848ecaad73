package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/finsift/finsift/internal/cache"
	"github.com/finsift/finsift/internal/llm"
	"github.com/finsift/finsift/internal/model"
	"github.com/finsift/finsift/internal/reference"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAI resolves every transaction deterministically and records the
// batches it receives.
type stubAI struct {
	resolve func(txn model.Transaction) model.ClassificationResult
	mu      sync.Mutex
	batches [][]model.Transaction
}

func (s *stubAI) ClassifyBatch(_ context.Context, txns []model.Transaction, _ model.UserProfile) ([]model.ClassificationResult, llm.Usage) {
	s.mu.Lock()
	batch := make([]model.Transaction, len(txns))
	copy(batch, txns)
	s.batches = append(s.batches, batch)
	s.mu.Unlock()

	results := make([]model.ClassificationResult, len(txns))
	for i, txn := range txns {
		if s.resolve != nil {
			results[i] = s.resolve(txn)
			continue
		}
		results[i] = model.ClassificationResult{
			Category:   "General",
			Confidence: 0.85,
			Reasoning:  "resolved by model",
			Source:     model.SourceAI,
		}
	}
	return results, llm.Usage{
		Cost:         decimal.NewFromFloat(0.001),
		Calls:        1,
		InputTokens:  100,
		OutputTokens: 20,
	}
}

func (s *stubAI) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(store cache.Store, ai AIClassifier) *Orchestrator {
	orch := New(store, reference.NewMatcher(reference.DefaultRules()), ai, NewCostStatsTracker(), testLogger())
	orch.SetPacer(llm.NopPacer{})
	return orch
}

func debit(id, description string, amount float64) model.Transaction {
	return model.Transaction{
		ID:          id,
		Date:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Description: description,
		Amount:      amount,
	}
}

func TestProcessBatchCompleteness(t *testing.T) {
	ai := &stubAI{}
	orch := newTestOrchestrator(cache.NewMemoryStore(0), ai)

	txns := []model.Transaction{
		debit("t1", "WILSON PARKING SYDNEY", -25.00),
		debit("t2", "MYSTERY MERCHANT 42", -13.37),
		debit("t3", "WOOLWORTHS METRO", -86.20),
		debit("t4", "ANOTHER MYSTERY 77", -9.99),
	}

	resp, err := orch.ProcessBatch(context.Background(), txns, Options{})
	require.NoError(t, err)
	require.Len(t, resp.Results, len(txns), "every transaction gets exactly one result")

	// Results stay in input order.
	assert.Equal(t, "Car & Travel", resp.Results[0].Category)
	assert.Equal(t, model.SourceReference, resp.Results[0].Source)
	assert.Equal(t, model.SourceAI, resp.Results[1].Source)
	assert.Equal(t, "Groceries", resp.Results[2].Category)
	assert.Equal(t, model.SourceAI, resp.Results[3].Source)

	assert.Equal(t, 0, resp.ProcessedWithCache)
	assert.Equal(t, 2, resp.ProcessedWithReferenceData)
	assert.Equal(t, 2, resp.ProcessedWithAI)
	assert.Equal(t, 0, resp.Fallbacks)
	assert.Equal(t, len(txns),
		resp.ProcessedWithCache+resp.ProcessedWithReferenceData+resp.ProcessedWithAI+resp.Fallbacks)
}

func TestProcessBatchCacheShortCircuit(t *testing.T) {
	ai := &stubAI{}
	store := cache.NewMemoryStore(0)
	orch := newTestOrchestrator(store, ai)

	txns := []model.Transaction{debit("t1", "MYSTERY MERCHANT 42", -13.37)}

	first, err := orch.ProcessBatch(context.Background(), txns, Options{})
	require.NoError(t, err)
	assert.Equal(t, model.SourceAI, first.Results[0].Source)
	assert.Equal(t, 1, ai.batchCount())

	second, err := orch.ProcessBatch(context.Background(), txns, Options{})
	require.NoError(t, err)
	assert.Equal(t, model.SourceCache, second.Results[0].Source)
	assert.Equal(t, 1, second.ProcessedWithCache)
	assert.Equal(t, 1, ai.batchCount(), "a cache hit must not trigger another external call")
	assert.True(t, second.TotalCost.IsZero())
}

func TestProcessBatchReferenceSkipsAI(t *testing.T) {
	ai := &stubAI{}
	orch := newTestOrchestrator(cache.NewMemoryStore(0), ai)

	resp, err := orch.ProcessBatch(context.Background(),
		[]model.Transaction{debit("t1", "WILSON PARKING SYDNEY CBD", -25.00)}, Options{})
	require.NoError(t, err)

	assert.Equal(t, model.SourceReference, resp.Results[0].Source)
	assert.True(t, resp.Results[0].IsTaxDeductible)
	assert.Equal(t, 100, resp.Results[0].BusinessUsePercent)
	assert.Equal(t, 0, ai.batchCount())
	assert.True(t, resp.TotalCost.IsZero())
}

func TestProcessBatchLowConfidenceReferenceGoesToAI(t *testing.T) {
	ai := &stubAI{}
	orch := newTestOrchestrator(cache.NewMemoryStore(0), ai)

	// "FUEL" alone matches the fuel rule at 0.8 * 1/2 = 0.4, below the
	// acceptance threshold.
	resp, err := orch.ProcessBatch(context.Background(),
		[]model.Transaction{debit("t1", "FUEL STOP 991", -60.00)}, Options{})
	require.NoError(t, err)

	assert.Equal(t, model.SourceAI, resp.Results[0].Source)
	assert.Equal(t, 1, ai.batchCount())
}

func TestProcessBatchLowConfidenceAIResultNotCached(t *testing.T) {
	ai := &stubAI{resolve: func(_ model.Transaction) model.ClassificationResult {
		return model.ClassificationResult{
			Category:   "Uncertain",
			Confidence: 0.2,
			Source:     model.SourceAI,
		}
	}}
	store := cache.NewMemoryStore(0)
	orch := newTestOrchestrator(store, ai)

	txns := []model.Transaction{debit("t1", "MYSTERY MERCHANT 42", -13.37)}

	_, err := orch.ProcessBatch(context.Background(), txns, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, store.Size(), "low-confidence answers must not poison the cache")

	resp, err := orch.ProcessBatch(context.Background(), txns, Options{})
	require.NoError(t, err)
	assert.Equal(t, model.SourceAI, resp.Results[0].Source)
	assert.Equal(t, 2, ai.batchCount())
}

func TestProcessBatchValidation(t *testing.T) {
	orch := newTestOrchestrator(cache.NewMemoryStore(0), &stubAI{})

	tests := []struct {
		name string
		txn  model.Transaction
	}{
		{"missing ID", model.Transaction{Description: "SOMETHING"}},
		{"empty description", debit("t1", "   ", -5.00)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orch.ProcessBatch(context.Background(), []model.Transaction{tt.txn}, Options{})
			assert.ErrorIs(t, err, model.ErrInvalidTransaction)
		})
	}
}

func TestProcessBatchEmptyInput(t *testing.T) {
	orch := newTestOrchestrator(cache.NewMemoryStore(0), &stubAI{})

	resp, err := orch.ProcessBatch(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.True(t, resp.TotalCost.IsZero())
}

func TestProcessBatchCancellation(t *testing.T) {
	ai := &stubAI{}
	orch := newTestOrchestrator(cache.NewMemoryStore(0), ai)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	txns := []model.Transaction{
		debit("t1", "WILSON PARKING SYDNEY", -25.00),
		debit("t2", "MYSTERY MERCHANT 42", -13.37),
	}

	resp, err := orch.ProcessBatch(ctx, txns, Options{})
	require.NoError(t, err, "cancellation degrades results, it does not fail the batch")
	require.Len(t, resp.Results, 2)

	// Zero-cost phases still resolve; only the AI-bound remainder
	// falls back.
	assert.Equal(t, model.SourceReference, resp.Results[0].Source)
	assert.Equal(t, model.SourceFallback, resp.Results[1].Source)
	assert.Equal(t, 0, ai.batchCount())
}

func TestProcessBatchDisableAI(t *testing.T) {
	ai := &stubAI{}
	orch := newTestOrchestrator(cache.NewMemoryStore(0), ai)

	resp, err := orch.ProcessBatch(context.Background(),
		[]model.Transaction{debit("t1", "MYSTERY MERCHANT 42", -13.37)},
		Options{DisableAI: true})
	require.NoError(t, err)

	assert.Equal(t, model.SourceFallback, resp.Results[0].Source)
	assert.InDelta(t, model.FallbackConfidence, resp.Results[0].Confidence, 0.001)
	assert.Equal(t, 0, ai.batchCount())
}

func TestProcessBatchChunksAIDispatches(t *testing.T) {
	ai := &stubAI{}
	orch := newTestOrchestrator(cache.NewMemoryStore(0), ai)

	txns := make([]model.Transaction, 5)
	for i := range txns {
		txns[i] = debit(fmt.Sprintf("t%d", i+1), fmt.Sprintf("MYSTERY MERCHANT %d", i+1), -float64(i+1))
	}

	resp, err := orch.ProcessBatch(context.Background(), txns, Options{BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 5, resp.ProcessedWithAI)
	assert.Equal(t, 3, ai.batchCount(), "5 transactions at batch size 2 means 3 dispatches")
}

func TestProcessBatchNilStore(t *testing.T) {
	ai := &stubAI{}
	orch := New(nil, reference.NewMatcher(reference.DefaultRules()), ai, NewCostStatsTracker(), testLogger())
	orch.SetPacer(llm.NopPacer{})

	resp, err := orch.ProcessBatch(context.Background(),
		[]model.Transaction{debit("t1", "MYSTERY MERCHANT 42", -13.37)}, Options{})
	require.NoError(t, err)
	assert.Equal(t, model.SourceAI, resp.Results[0].Source)
}

func TestProcessBatchRecordsStats(t *testing.T) {
	ai := &stubAI{}
	orch := newTestOrchestrator(cache.NewMemoryStore(0), ai)

	txns := []model.Transaction{
		debit("t1", "WILSON PARKING SYDNEY", -25.00),
		debit("t2", "MYSTERY MERCHANT 42", -13.37),
	}
	_, err := orch.ProcessBatch(context.Background(), txns, Options{})
	require.NoError(t, err)

	stats := orch.Stats()
	assert.Equal(t, int64(2), stats.TotalProcessed)
	assert.Equal(t, int64(1), stats.ReferenceHits)
	assert.Equal(t, int64(1), stats.AIResolved)
	assert.Equal(t, stats.TotalProcessed,
		stats.CacheHits+stats.ReferenceHits+stats.AIResolved+stats.Fallbacks)
}

func TestProcessBatchCostBreakdown(t *testing.T) {
	ai := &stubAI{}
	orch := newTestOrchestrator(cache.NewMemoryStore(0), ai)

	resp, err := orch.ProcessBatch(context.Background(),
		[]model.Transaction{debit("t1", "MYSTERY MERCHANT 42", -13.37)}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.CostBreakdown.AICalls)
	assert.Equal(t, 100, resp.CostBreakdown.InputTokens)
	assert.Equal(t, 20, resp.CostBreakdown.OutputTokens)
	assert.True(t, resp.TotalCost.Equal(decimal.NewFromFloat(0.001)))
	assert.True(t, resp.CostBreakdown.CostUSD.Equal(resp.TotalCost))
	assert.InDelta(t, 1.0, resp.Insights.AIShare, 0.001)
}
