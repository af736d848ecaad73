package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/finsift/finsift/internal/common"
	"github.com/finsift/finsift/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult(confidence float64) model.ClassificationResult {
	return model.ClassificationResult{
		Category:           "Car & Travel",
		TaxCategory:        "work_travel",
		IsTaxDeductible:    true,
		BusinessUsePercent: 100,
		Confidence:         confidence,
		Reasoning:          "parking near client site",
		Source:             model.SourceAI,
	}
}

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	require.NoError(t, store.Put(ctx, "sig-1", testResult(0.9)))

	entry, err := store.Get(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, "Car & Travel", entry.Result.Category)
	assert.InDelta(t, 0.9, entry.Result.Confidence, 0.001)
	assert.False(t, entry.LastUpdated.IsZero())
}

func TestMemoryStoreMiss(t *testing.T) {
	store := NewMemoryStore(0)

	_, err := store.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryStoreAdmissionThreshold(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	t.Run("below threshold is silently dropped", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "low", testResult(0.29)))
		_, err := store.Get(ctx, "low")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("at threshold is stored", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "edge", testResult(0.3)))
		_, err := store.Get(ctx, "edge")
		assert.NoError(t, err)
	})
}

func TestMemoryStoreUsageCount(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.Put(ctx, "sig", testResult(0.9)))

	for want := 1; want <= 3; want++ {
		entry, err := store.Get(ctx, "sig")
		require.NoError(t, err)
		assert.Equal(t, want, entry.UsageCount)
	}

	// Overwriting keeps the accumulated usage count.
	require.NoError(t, store.Put(ctx, "sig", testResult(0.95)))
	entry, err := store.Get(ctx, "sig")
	require.NoError(t, err)
	assert.Equal(t, 4, entry.UsageCount)
	assert.InDelta(t, 0.95, entry.Result.Confidence, 0.001)
}

func TestMemoryStoreEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	require.NoError(t, store.Put(ctx, "fresh", testResult(0.9)))

	// Backdate an entry past the horizon.
	store.mu.Lock()
	store.entries["stale"] = model.CacheEntry{
		Result:      testResult(0.9),
		LastUpdated: time.Now().Add(-48 * time.Hour),
	}
	store.mu.Unlock()

	evicted, err := store.EvictOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	_, err = store.Get(ctx, "stale")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = store.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sig := fmt.Sprintf("sig-%d", i%5)
			_ = store.Put(ctx, sig, testResult(0.9))
			_, _ = store.Get(ctx, sig)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, store.Size())
}
