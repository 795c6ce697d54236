// Package memory provides the in-process substitute for the Redis snapshot
// tier. It carries the same read/write contract and is used when Redis is
// unreachable at startup or degrades mid-run.
package memory

import (
	"context"
	"sync"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

// SnapshotCache implements domain.SnapshotCache with a mutex-guarded map.
type SnapshotCache struct {
	mu     sync.RWMutex
	quotes map[domain.QuoteKey]domain.PriceQuote
}

// NewSnapshotCache returns an empty in-memory snapshot cache.
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{quotes: make(map[domain.QuoteKey]domain.PriceQuote)}
}

// PutQuote upserts the snapshot entry for the quote's (venue, pair).
func (sc *SnapshotCache) PutQuote(_ context.Context, q domain.PriceQuote) error {
	sc.mu.Lock()
	sc.quotes[q.Key()] = q
	sc.mu.Unlock()
	return nil
}

// Snapshot returns a point-in-time copy of the current snapshot. The copy is
// taken under the read lock, so callers never observe a half-written entry
// and may mutate the returned map freely.
func (sc *SnapshotCache) Snapshot(_ context.Context) (map[domain.QuoteKey]domain.PriceQuote, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	snap := make(map[domain.QuoteKey]domain.PriceQuote, len(sc.quotes))
	for k, q := range sc.quotes {
		snap[k] = q
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
