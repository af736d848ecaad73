package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/finsift/finsift/internal/common"
	"github.com/finsift/finsift/internal/model"
	"github.com/shopspring/decimal"
)

// StatsRecorder receives cost and latency accounting from the batch
// classifier. Implemented by engine.CostStatsTracker.
type StatsRecorder interface {
	RecordAICall(inputTokens, outputTokens int, cost decimal.Decimal, latency time.Duration)
	RecordAIFailure(latency time.Duration)
}

// BatchConfig bounds batch size and the token budget of a call.
type BatchConfig struct {
	// MaxBatchSize caps transactions per external call.
	MaxBatchSize int
	// PerItemTokenEstimate sizes the reply budget per transaction.
	PerItemTokenEstimate int
	// MaxTokenCap is the hard ceiling on the reply budget.
	MaxTokenCap int
	// Retry bounds attempts per external call. A chunk degrades to
	// fallback results only once the attempts are exhausted.
	Retry common.RetryOptions
}

// DefaultBatchConfig returns the default bounds.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxBatchSize:         50,
		PerItemTokenEstimate: 60,
		MaxTokenCap:          4096,
		Retry: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
		},
	}
}

func (c BatchConfig) withDefaults() BatchConfig {
	def := DefaultBatchConfig()
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = def.MaxBatchSize
	}
	if c.PerItemTokenEstimate <= 0 {
		c.PerItemTokenEstimate = def.PerItemTokenEstimate
	}
	if c.MaxTokenCap <= 0 {
		c.MaxTokenCap = def.MaxTokenCap
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = def.Retry.InitialDelay
	}
	return c
}

// BatchClassifier issues bounded batched calls to the external LLM and
// decodes the compact replies. Any transport-level failure degrades the
// affected batch to fallback results; callers always receive a
// complete, same-length, same-order slice.
type BatchClassifier struct {
	client  Client
	stats   StatsRecorder
	logger  *slog.Logger
	pricing Pricing
	codec   Codec
	config  BatchConfig
}

// NewBatchClassifier creates a batch classifier. stats may be nil.
func NewBatchClassifier(client Client, stats StatsRecorder, pricing Pricing, cfg BatchConfig, logger *slog.Logger) *BatchClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchClassifier{
		client:  client,
		stats:   stats,
		logger:  logger,
		pricing: pricing,
		config:  cfg.withDefaults(),
	}
}

// Usage summarizes the external calls made for one ClassifyBatch.
type Usage struct {
	Cost         decimal.Decimal
	Latency      time.Duration
	Calls        int
	Failures     int
	InputTokens  int
	OutputTokens int
}

func (u Usage) Add(other Usage) Usage {
	u.Cost = u.Cost.Add(other.Cost)
	u.Latency += other.Latency
	u.Calls += other.Calls
	u.Failures += other.Failures
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	return u
}

// ClassifyBatch classifies transactions, returning one result per
// input in the same order plus the usage incurred. Inputs beyond the
// configured batch size are chunked into additional calls.
func (b *BatchClassifier) ClassifyBatch(ctx context.Context, txns []model.Transaction, profile model.UserProfile) ([]model.ClassificationResult, Usage) {
	results := make([]model.ClassificationResult, 0, len(txns))
	usage := Usage{Cost: decimal.Zero}
	for start := 0; start < len(txns); start += b.config.MaxBatchSize {
		end := start + b.config.MaxBatchSize
		if end > len(txns) {
			end = len(txns)
		}
		chunkResults, chunkUsage := b.classifyChunk(ctx, txns[start:end], profile)
		results = append(results, chunkResults...)
		usage = usage.Add(chunkUsage)
	}
	return results, usage
}

// classifyChunk issues one external call for up to MaxBatchSize
// transactions, retrying transient provider failures before degrading
// the whole chunk to fallback results.
func (b *BatchClassifier) classifyChunk(ctx context.Context, txns []model.Transaction, profile model.UserProfile) ([]model.ClassificationResult, Usage) {
	budget := b.config.PerItemTokenEstimate * len(txns)
	if budget > b.config.MaxTokenCap {
		budget = b.config.MaxTokenCap
	}

	req := CompletionRequest{
		System:    b.codec.EncodeSystemPrompt(profile),
		User:      b.codec.EncodeTransactions(txns),
		MaxTokens: budget,
	}

	start := time.Now()
	var completion Completion
	err := common.WithRetry(ctx, func() error {
		var callErr error
		completion, callErr = b.client.Complete(ctx, req)
		if callErr != nil {
			return &common.RetryableError{Err: callErr, Retryable: common.IsRetryable(callErr)}
		}
		return nil
	}, b.config.Retry)
	latency := time.Since(start)

	if err != nil {
		b.logger.Warn("batch classification call failed, falling back",
			"batch_size", len(txns),
			"latency", latency,
			"error", err)
		if b.stats != nil {
			b.stats.RecordAIFailure(latency)
		}
		fallbacks := make([]model.ClassificationResult, len(txns))
		for i := range fallbacks {
			fallbacks[i] = model.FallbackResult("classification service unavailable")
		}
		return fallbacks, Usage{Cost: decimal.Zero, Latency: latency, Calls: 1, Failures: 1}
	}

	cost := b.pricing.Cost(completion.InputTokens, completion.OutputTokens)
	if b.stats != nil {
		b.stats.RecordAICall(completion.InputTokens, completion.OutputTokens, cost, latency)
	}

	b.logger.Debug("batch classification call completed",
		"batch_size", len(txns),
		"input_tokens", completion.InputTokens,
		"output_tokens", completion.OutputTokens,
		"cost_usd", cost.StringFixed(6),
		"latency", latency)

	results := b.codec.DecodeResponse(completion.Content, len(txns))
	for i := range results {
		if results[i].Source != model.SourceAI {
			continue
		}
		// The compact grammar carries deductibility, not category;
		// fill category from the transaction's own hint.
		if results[i].Category == "" {
			if txns[i].CategoryHint != "" {
				results[i].Category = txns[i].CategoryHint
			} else {
				results[i].Category = "General"
			}
		}
		if results[i].IsTaxDeductible && results[i].TaxCategory == "" {
			results[i].TaxCategory = "general_deduction"
		}
	}
	return results, Usage{
		Cost:         cost,
		Latency:      latency,
		Calls:        1,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
	}
}
