// Package cache provides the classification memo keyed by normalized
// transaction signatures, with a pluggable backing store.
package cache

import (
	"crypto/sha256"
	"fmt"
	"math"
	"strings"
)

// BucketConfig controls how amounts are coarsened when deriving a
// signature. Bucketing absorbs cent-level noise so near-identical
// transactions share a cache entry, while materially different amounts
// stay apart.
type BucketConfig struct {
	// SmallWidth is the bucket width for amounts below Boundary.
	SmallWidth float64
	// LargeWidth is the bucket width for amounts at or above Boundary.
	LargeWidth float64
	// Boundary is the absolute amount at which LargeWidth takes over.
	Boundary float64
}

// DefaultBucketConfig buckets to the nearest whole currency unit below
// 100 and to the nearest 10 units above.
func DefaultBucketConfig() BucketConfig {
	return BucketConfig{
		SmallWidth: 1,
		LargeWidth: 10,
		Boundary:   100,
	}
}

// Signature derives the normalized cache key for a transaction.
// Case is folded, whitespace collapsed, and the amount bucketed per cfg.
func Signature(description string, amount float64, merchant string, cfg BucketConfig) string {
	desc := normalizeText(description)
	merch := normalizeText(merchant)
	bucket := bucketAmount(amount, cfg)

	data := fmt.Sprintf("%s|%d|%s", desc, bucket, merch)
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// bucketAmount rounds the amount to the nearest bucket boundary,
// preserving sign so debits and credits never collide.
func bucketAmount(amount float64, cfg BucketConfig) int64 {
	if cfg.SmallWidth <= 0 {
		cfg.SmallWidth = 1
	}
	if cfg.LargeWidth <= 0 {
		cfg.LargeWidth = cfg.SmallWidth
	}
	if cfg.Boundary <= 0 {
		cfg.Boundary = 100
	}

	width := cfg.SmallWidth
	if math.Abs(amount) >= cfg.Boundary {
		width = cfg.LargeWidth
	}

	return int64(math.Round(amount/width) * width)
}
