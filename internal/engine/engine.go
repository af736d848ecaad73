// Package engine implements the three-phase hybrid classification
// pipeline: cache lookup, reference matching, then bounded batched AI
// calls for whatever remains.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finsift/finsift/internal/cache"
	"github.com/finsift/finsift/internal/common"
	"github.com/finsift/finsift/internal/llm"
	"github.com/finsift/finsift/internal/model"
	"github.com/shopspring/decimal"
)

// AIClassifier resolves a batch of transactions through the external
// model, always returning one result per input in order.
type AIClassifier interface {
	ClassifyBatch(ctx context.Context, txns []model.Transaction, profile model.UserProfile) ([]model.ClassificationResult, llm.Usage)
}

// ReferenceClassifier is the deterministic zero-cost matcher.
type ReferenceClassifier interface {
	Classify(description string, amount float64, merchant string) (model.ClassificationResult, bool)
}

// Config holds orchestrator defaults.
type Config struct {
	Buckets cache.BucketConfig
	// BatchSize groups AI-bound transactions per dispatch.
	BatchSize int
	// ReferenceMinConfidence is the acceptance threshold above which a
	// reference match short-circuits the AI phase. Independent of the
	// cache-admission threshold.
	ReferenceMinConfidence float64
	// PacingDelay is the blocking wait between batch dispatches.
	PacingDelay time.Duration
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:              50,
		ReferenceMinConfidence: 0.8,
		PacingDelay:            time.Second,
		Buckets:                cache.DefaultBucketConfig(),
	}
}

// Options carries per-request processing options.
type Options struct {
	Profile model.UserProfile
	// BatchSize overrides the configured AI batch size when positive.
	BatchSize int
	// ReferenceMinConfidence overrides the acceptance threshold when
	// positive.
	ReferenceMinConfidence float64
	// DisableAI skips the AI phase entirely; unresolved transactions
	// become fallbacks. This is the cost-optimization hard stop.
	DisableAI bool
}

// Orchestrator composes the cache, the reference matcher, and the AI
// batch classifier into the per-request pipeline.
type Orchestrator struct {
	store   cache.Store
	matcher ReferenceClassifier
	ai      AIClassifier
	pacer   llm.Pacer
	stats   *CostStatsTracker
	logger  *slog.Logger
	config  Config
}

// New creates an orchestrator with default configuration. store may be
// nil, in which case every lookup is a miss and nothing is persisted.
func New(store cache.Store, matcher ReferenceClassifier, ai AIClassifier, stats *CostStatsTracker, logger *slog.Logger) *Orchestrator {
	return NewWithConfig(store, matcher, ai, stats, logger, DefaultConfig())
}

// NewWithConfig creates an orchestrator with custom configuration.
func NewWithConfig(store cache.Store, matcher ReferenceClassifier, ai AIClassifier, stats *CostStatsTracker, logger *slog.Logger, config Config) *Orchestrator {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.ReferenceMinConfidence <= 0 {
		config.ReferenceMinConfidence = 0.8
	}
	if stats == nil {
		stats = NewCostStatsTracker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:   store,
		matcher: matcher,
		ai:      ai,
		pacer:   llm.NewFixedDelayPacer(config.PacingDelay),
		stats:   stats,
		logger:  logger,
		config:  config,
	}
}

// SetPacer replaces the pacing policy between batch dispatches.
func (o *Orchestrator) SetPacer(p llm.Pacer) {
	if p != nil {
		o.pacer = p
	}
}

// Stats returns a snapshot of the shared counters.
func (o *Orchestrator) Stats() CostStats {
	return o.stats.Snapshot()
}

// EvictCache removes cached classifications older than maxAge.
func (o *Orchestrator) EvictCache(ctx context.Context, maxAge time.Duration) (int, error) {
	if o.store == nil {
		return 0, nil
	}
	return o.store.EvictOlderThan(ctx, maxAge)
}

// CostBreakdown details the external spend of one request.
type CostBreakdown struct {
	CostUSD      decimal.Decimal `json:"cost_usd"`
	AICalls      int             `json:"ai_calls"`
	AIFailures   int             `json:"ai_failures"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
}

// Insights summarizes coverage for one request.
type Insights struct {
	Summary           string  `json:"summary"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
	ReferenceCoverage float64 `json:"reference_coverage"`
	AIShare           float64 `json:"ai_share"`
	FallbackRate      float64 `json:"fallback_rate"`
}

// BatchResponse is the complete outcome of one ProcessBatch call.
type BatchResponse struct {
	Results                    []model.ClassificationResult
	CostBreakdown              CostBreakdown
	Insights                   Insights
	TotalCost                  decimal.Decimal
	ProcessingTimeMs           int64
	ProcessedWithCache         int
	ProcessedWithReferenceData int
	ProcessedWithAI            int
	Fallbacks                  int
}

// ProcessBatch classifies transactions through the three phases in
// strict order. It returns exactly one result per input, in input
// order; after validation no error can escape — the worst case for any
// transaction is a fallback result.
func (o *Orchestrator) ProcessBatch(ctx context.Context, txns []model.Transaction, opts Options) (*BatchResponse, error) {
	for _, txn := range txns {
		if err := txn.Validate(); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	n := len(txns)
	results := make([]model.ClassificationResult, n)
	resolved := make([]bool, n)
	signatures := make([]string, n)
	for i, txn := range txns {
		signatures[i] = cache.Signature(txn.Description, txn.Amount, txn.MerchantName, o.config.Buckets)
	}

	cacheHits := o.phaseCache(ctx, txns, signatures, results, resolved)
	referenceHits := o.phaseReference(txns, results, resolved, opts)
	usage := o.phaseAI(ctx, txns, signatures, results, resolved, opts)

	aiResolved, fallbacks := 0, 0
	for i := range results {
		switch results[i].Source {
		case model.SourceAI:
			aiResolved++
		case model.SourceFallback:
			fallbacks++
		}
		o.stats.RecordResolution(results[i].Source)
	}

	elapsed := time.Since(start)
	if overhead := elapsed - usage.Latency; overhead > 0 {
		// External call latency is already accounted by the classifier.
		o.stats.AddProcessingTime(overhead)
	}

	resp := &BatchResponse{
		Results:                    results,
		TotalCost:                  usage.Cost,
		ProcessingTimeMs:           elapsed.Milliseconds(),
		ProcessedWithCache:         cacheHits,
		ProcessedWithReferenceData: referenceHits,
		ProcessedWithAI:            aiResolved,
		Fallbacks:                  fallbacks,
		CostBreakdown: CostBreakdown{
			CostUSD:      usage.Cost,
			AICalls:      usage.Calls,
			AIFailures:   usage.Failures,
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
		},
		Insights: buildInsights(n, cacheHits, referenceHits, aiResolved, fallbacks),
	}

	o.logger.Info("batch processed",
		"total", n,
		"cache_hits", cacheHits,
		"reference_hits", referenceHits,
		"ai_resolved", aiResolved,
		"fallbacks", fallbacks,
		"ai_calls", usage.Calls,
		"cost_usd", usage.Cost.StringFixed(6),
		"elapsed", elapsed)

	return resp, nil
}

// phaseCache resolves transactions whose signature is already known.
// A missing or failing store degrades to always-miss.
func (o *Orchestrator) phaseCache(ctx context.Context, txns []model.Transaction, signatures []string, results []model.ClassificationResult, resolved []bool) int {
	if o.store == nil {
		return 0
	}

	hits := 0
	storeWarned := false
	for i := range txns {
		entry, err := o.store.Get(ctx, signatures[i])
		if err != nil {
			if !errors.Is(err, common.ErrNotFound) && !storeWarned {
				o.logger.Warn("cache store unavailable, treating lookups as misses", "error", err)
				storeWarned = true
			}
			continue
		}
		results[i] = entry.Result.WithSource(model.SourceCache)
		resolved[i] = true
		hits++
	}
	return hits
}

// phaseReference runs the deterministic matcher over cache misses,
// accepting matches at or above the acceptance threshold.
func (o *Orchestrator) phaseReference(txns []model.Transaction, results []model.ClassificationResult, resolved []bool, opts Options) int {
	if o.matcher == nil {
		return 0
	}

	threshold := opts.ReferenceMinConfidence
	if threshold <= 0 {
		threshold = o.config.ReferenceMinConfidence
	}

	hits := 0
	for i, txn := range txns {
		if resolved[i] {
			continue
		}
		result, ok := o.matcher.Classify(txn.Description, txn.Amount, txn.MerchantName)
		if !ok || result.Confidence < threshold {
			continue
		}
		results[i] = result.WithSource(model.SourceReference)
		resolved[i] = true
		hits++
	}
	return hits
}

// phaseAI groups the unresolved remainder into fixed-size batches and
// dispatches them sequentially with pacing in between. Cancellation is
// honored between batches; an in-flight call runs to completion.
func (o *Orchestrator) phaseAI(ctx context.Context, txns []model.Transaction, signatures []string, results []model.ClassificationResult, resolved []bool, opts Options) llm.Usage {
	usage := llm.Usage{Cost: decimal.Zero}

	var pending []int
	for i := range txns {
		if !resolved[i] {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return usage
	}

	if opts.DisableAI || o.ai == nil {
		for _, i := range pending {
			results[i] = model.FallbackResult("AI classification disabled")
			resolved[i] = true
		}
		return usage
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = o.config.BatchSize
	}

	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		indices := pending[start:end]

		if err := o.waitForDispatch(ctx); err != nil {
			o.logger.Warn("request canceled between batches, remaining transactions fall back",
				"remaining", len(pending)-start, "error", err)
			for _, i := range pending[start:] {
				results[i] = model.FallbackResult("request canceled before classification")
				resolved[i] = true
			}
			return usage
		}

		batch := make([]model.Transaction, len(indices))
		for j, i := range indices {
			batch[j] = txns[i]
		}

		batchResults, batchUsage := o.ai.ClassifyBatch(ctx, batch, opts.Profile)
		usage = usage.Add(batchUsage)

		for j, i := range indices {
			result := model.FallbackResult("classifier returned no result")
			if j < len(batchResults) {
				result = batchResults[j].Normalized()
			}
			results[i] = result
			resolved[i] = true

			if o.store != nil && result.Source == model.SourceAI {
				if err := o.store.Put(ctx, signatures[i], result); err != nil {
					o.logger.Warn("failed to cache classification", "transaction_id", txns[i].ID, "error", err)
				}
			}
		}
	}

	return usage
}

// waitForDispatch checks cancellation, then applies the pacing gate.
func (o *Orchestrator) waitForDispatch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.pacer == nil {
		return nil
	}
	return o.pacer.Wait(ctx)
}

func buildInsights(total, cacheHits, referenceHits, aiResolved, fallbacks int) Insights {
	if total == 0 {
		return Insights{Summary: "no transactions processed"}
	}
	frac := func(n int) float64 { return float64(n) / float64(total) }
	zeroCost := cacheHits + referenceHits
	return Insights{
		CacheHitRate:      frac(cacheHits),
		ReferenceCoverage: frac(referenceHits),
		AIShare:           frac(aiResolved),
		FallbackRate:      frac(fallbacks),
		Summary: fmt.Sprintf("%d of %d transactions resolved at zero cost (%d cache, %d reference); %d via AI, %d fallbacks",
			zeroCost, total, cacheHits, referenceHits, aiResolved, fallbacks),
	}
}
