package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mmynk/tabsplit/internal/calculator"
	"github.com/mmynk/tabsplit/internal/metrics"
)

// Memoizer caches allocation results keyed by calculator.CacheKey. Only
// successful results are cached. Each entry carries the canonical input it
// was computed from, and a hit is served only when that input matches.
type Memoizer struct {
	cache   Cache
	metrics *metrics.Metrics
}

// NewMemoizer creates a memoizer over c. A nil cache disables memoization.
type memoEntry struct {
	Input  []byte                       `json:"input"`
	Result *calculator.AllocationResult `json:"result"`
}

func NewMemoizer(c Cache, m *metrics.Metrics) *Memoizer {
	if c == nil {
		c = Nop{}
	}
	return &Memoizer{cache: c, metrics: m}
}

// Compute returns the allocation for the inputs and whether it came from the
// cache.
func (m *Memoizer) Compute(ctx context.Context, items []calculator.LineItem, assignments map[string]calculator.Assignment, participants []calculator.Participant) (*calculator.AllocationResult, bool, error) {
	input := calculator.CanonicalInput(items, assignments, participants)
	key := calculator.CacheKey(items, assignments, participants)

	if cached, ok := m.lookup(ctx, key, input); ok {
		return cached, true, nil
	}

	start := time.Now()
	result, err := calculator.ComputeReceiptTotals(items, assignments, participants)
	if err != nil {
		m.metrics.ObserveAllocation(calculator.ErrorKind(err), time.Since(start))
		return nil, false, err
	}
	m.metrics.ObserveAllocation(metrics.OutcomeOK, time.Since(start))

	if encoded, err := json.Marshal(memoEntry{Input: input, Result: result}); err == nil {
		if err := m.cache.Set(ctx, key, encoded); err != nil {
			slog.Warn("Failed to cache allocation", "key", key, "error", err)
		}
	}
	return result, false, nil
}

func (m *Memoizer) lookup(ctx context.Context, key string, input []byte) (*calculator.AllocationResult, bool) {
	raw, err := m.cache.Get(ctx, key)
	switch {
	case errors.Is(err, ErrMiss):
		m.metrics.CacheLookup(metrics.CacheMiss)
		return nil, false
	case err != nil:
		m.metrics.CacheLookup(metrics.CacheError)
		slog.Warn("Cache lookup failed", "key", key, "error", err)
		return nil, false
	}

	var entry memoEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Result == nil {
		m.metrics.CacheLookup(metrics.CacheError)
		slog.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}
	// Another input hashing to the same key.
	if !bytes.Equal(entry.Input, input) {
		m.metrics.CacheLookup(metrics.CacheMiss)
		slog.Warn("Cache key collision", "key", key)
		return nil, false
	}
	result := entry.Result
	// A corrupted entry must never be served.
	if err := result.Reconcile(); err != nil {
		m.metrics.CacheLookup(metrics.CacheError)
		slog.Warn("Discarding inconsistent cache entry", "key", key, "error", err)
		return nil, false
	}

	m.metrics.CacheLookup(metrics.CacheHit)
	return result, true
}
