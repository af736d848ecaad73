// Package model defines the core domain models used throughout the application.
package model

import (
	"errors"
	"time"
)

// ErrInvalidTransaction indicates a transaction failed pre-pipeline validation.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Source indicates which pipeline phase produced a classification.
type Source string

// Classification source constants.
const (
	SourceCache     Source = "CACHE"
	SourceReference Source = "REFERENCE"
	SourceAI        Source = "AI"
	SourceFallback  Source = "FALLBACK"
)

// FallbackConfidence is the confidence assigned whenever classification
// cannot be completed.
const FallbackConfidence = 0.3

// maxReasoningLength bounds the reasoning text carried on a result.
const maxReasoningLength = 500

// ClassificationResult is the structured outcome for one transaction.
// Immutable after creation; confidence and business-use percentage are
// always clamped into their valid ranges.
type ClassificationResult struct {
	Category           string  `json:"category"`
	TaxCategory        string  `json:"tax_category,omitempty"`
	Reasoning          string  `json:"reasoning,omitempty"`
	Source             Source  `json:"source"`
	Confidence         float64 `json:"confidence"`
	BusinessUsePercent int     `json:"business_use_percent"`
	IsTaxDeductible    bool    `json:"is_tax_deductible"`
}

// Normalized returns a copy with confidence clamped to [0,1],
// business-use clamped to [0,100], and reasoning bounded.
func (r ClassificationResult) Normalized() ClassificationResult {
	r.Confidence = ClampConfidence(r.Confidence)
	r.BusinessUsePercent = ClampBusinessUse(r.BusinessUsePercent)
	if len(r.Reasoning) > maxReasoningLength {
		r.Reasoning = r.Reasoning[:maxReasoningLength]
	}
	return r
}

// WithSource returns a copy tagged with the given source.
func (r ClassificationResult) WithSource(src Source) ClassificationResult {
	r.Source = src
	return r
}

// FallbackResult returns the conservative default used whenever
// classification cannot be completed.
func FallbackResult(reason string) ClassificationResult {
	if reason == "" {
		reason = "could not determine classification"
	}
	return ClassificationResult{
		Category:           "Uncategorized",
		IsTaxDeductible:    false,
		BusinessUsePercent: 0,
		Confidence:         FallbackConfidence,
		Reasoning:          reason,
		Source:             SourceFallback,
	}
}

// ClampConfidence clamps a confidence score into [0.0, 1.0].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// ClampBusinessUse clamps a business-use percentage into [0, 100].
func ClampBusinessUse(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// CacheEntry is a persisted classification keyed by a normalized
// transaction signature.
type CacheEntry struct {
	LastUpdated time.Time
	Result      ClassificationResult
	UsageCount  int
}
