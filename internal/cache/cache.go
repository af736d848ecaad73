package cache

import (
	"context"
	"sync"
	"time"

	"github.com/finsift/finsift/internal/common"
	"github.com/finsift/finsift/internal/model"
)

// DefaultMinConfidence is the cache-admission threshold: results below
// it are never persisted, so low-confidence answers cannot poison
// future lookups.
const DefaultMinConfidence = 0.3

// Store is the key-value contract for classification memos. A durable
// implementation lives in internal/storage; the pipeline must function
// (degraded to always-miss) when the store is empty or unavailable.
type Store interface {
	// Get returns the entry for a signature, or common.ErrNotFound.
	Get(ctx context.Context, signature string) (model.CacheEntry, error)
	// Put stores a result. It is a no-op when the result's confidence
	// is below the admission threshold.
	Put(ctx context.Context, signature string, result model.ClassificationResult) error
	// EvictOlderThan removes entries not updated within maxAge and
	// returns how many were removed. Eviction is always explicit,
	// never implicit-on-read.
	EvictOlderThan(ctx context.Context, maxAge time.Duration) (int, error)
	Close() error
}

// MemoryStore is the in-process Store. Additive-only during a run
// except for explicit eviction; safe for concurrent use.
type MemoryStore struct {
	entries       map[string]model.CacheEntry
	minConfidence float64
	mu            sync.Mutex
}

// NewMemoryStore creates a memory store with the given admission
// threshold. A non-positive threshold falls back to the default.
func NewMemoryStore(minConfidence float64) *MemoryStore {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &MemoryStore{
		entries:       make(map[string]model.CacheEntry),
		minConfidence: minConfidence,
	}
}

// Get looks up a signature and bumps its usage count.
func (s *MemoryStore) Get(_ context.Context, signature string) (model.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[signature]
	if !ok {
		return model.CacheEntry{}, common.ErrNotFound
	}

	entry.UsageCount++
	s.entries[signature] = entry
	return entry, nil
}

// Put stores a result unless its confidence is below the admission
// threshold. An existing entry's usage count carries over.
func (s *MemoryStore) Put(_ context.Context, signature string, result model.ClassificationResult) error {
	result = result.Normalized()
	if result.Confidence < s.minConfidence {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := model.CacheEntry{
		Result:      result,
		LastUpdated: time.Now(),
	}
	if prev, ok := s.entries[signature]; ok {
		entry.UsageCount = prev.UsageCount
	}
	s.entries[signature] = entry
	return nil
}

// EvictOlderThan removes entries whose LastUpdated is before now-maxAge.
func (s *MemoryStore) EvictOlderThan(_ context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for sig, entry := range s.entries {
		if entry.LastUpdated.Before(cutoff) {
			delete(s.entries, sig)
			evicted++
		}
	}
	return evicted, nil
}

// Size returns the number of cached entries.
func (s *MemoryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close releases nothing for the memory store but satisfies Store.
func (s *MemoryStore) Close() error {
	return nil
}
