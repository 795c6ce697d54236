package domain

import (
	"context"
	"time"
)

// SnapshotCache is the fast key-value tier holding the latest quote per
// (venue, pair). Implementations must support concurrent reads and
// key-disjoint concurrent writes without external locking.
type SnapshotCache interface {
	// PutQuote upserts the snapshot entry for the quote's (venue, pair).
	PutQuote(ctx context.Context, q PriceQuote) error
	// Snapshot returns a point-in-time copy of the full snapshot. No entry
	// is ever observed mid-update.
	Snapshot(ctx context.Context) (map[QuoteKey]PriceQuote, error)
}

// HistoryStore is the durable append-only price history.
type HistoryStore interface {
	// AppendQuote appends the quote to the history for its (venue, pair).
	AppendQuote(ctx context.Context, q PriceQuote) error
	// History returns up to limit quotes for (venue, pair), most recent
	// first.
	History(ctx context.Context, venueID string, pair TokenPair, limit int) ([]PriceQuote, error)
	// ListQuotesBefore returns all quotes observed strictly before the
	// cutoff, for archival.
	ListQuotesBefore(ctx context.Context, before time.Time) ([]PriceQuote, error)
	// PruneQuotesBefore deletes all quotes observed strictly before the
	// cutoff and reports how many rows were removed.
	PruneQuotesBefore(ctx context.Context, before time.Time) (int64, error)
}

// OpportunityStore is the durable opportunity log.
type OpportunityStore interface {
	Insert(ctx context.Context, opp ArbitrageOpportunity) error
	ListRecent(ctx context.Context, limit int) ([]ArbitrageOpportunity, error)
	// ListBefore returns all opportunities detected strictly before the
	// cutoff, for archival.
	ListBefore(ctx context.Context, before time.Time) ([]ArbitrageOpportunity, error)
	// PruneBefore deletes all opportunities detected strictly before the
	// cutoff and reports how many rows were removed.
	PruneBefore(ctx context.Context, before time.Time) (int64, error)
}
