// Package pricestore provides the dual-tier price store shared by the
// collection and detection loops: a fast snapshot tier (Redis, with a
// one-directional in-memory fallback) and a durable tier (Postgres history
// and opportunity log) written best-effort off the fast path.
package pricestore

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

// Store is the sole synchronization point between the collector and the
// detector. All methods are safe for concurrent use.
type Store struct {
	primary  domain.SnapshotCache // nil when the fast tier was down at startup
	fallback domain.SnapshotCache
	history  domain.HistoryStore
	opps     domain.OpportunityStore
	logger   *slog.Logger

	// degraded flips once when the primary tier fails and never flips back
	// for the process lifetime; reconnection happens on the next start.
	degraded atomic.Bool

	// historyQueue decouples durable appends from the snapshot fast path.
	historyQueue chan domain.PriceQuote
}

// Options configures a Store.
type Options struct {
	// Primary is the fast snapshot tier. Nil means the tier was unreachable
	// at startup and the store begins in fallback mode.
	Primary domain.SnapshotCache
	// Fallback is the in-process substitute. Required.
	Fallback domain.SnapshotCache
	History  domain.HistoryStore
	Opps     domain.OpportunityStore
	// HistoryQueueSize bounds the buffered durable-write queue.
	HistoryQueueSize int
	Logger           *slog.Logger
}

// New creates a Store. When opts.Primary is nil the store starts degraded.
func New(opts Options) *Store {
	size := opts.HistoryQueueSize
	if size < 1 {
		size = 1024
	}
	s := &Store{
		primary:      opts.Primary,
		fallback:     opts.Fallback,
		history:      opts.History,
		opps:         opts.Opps,
		logger:       opts.Logger.With(slog.String("component", "price_store")),
		historyQueue: make(chan domain.PriceQuote, size),
	}
	if opts.Primary == nil {
		s.degraded.Store(true)
		s.logger.Warn("fast tier unavailable at startup, running on in-memory fallback")
	}
	return s
}

// Degraded reports whether the store has switched to the in-memory fallback.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

// degrade switches to the fallback tier. The switch is one-directional; only
// the first call logs the transition.
func (s *Store) degrade(err error) {
	if s.degraded.CompareAndSwap(false, true) {
		s.logger.Error("fast tier failed, switching to in-memory fallback for the rest of the run",
			slog.String("error", err.Error()),
		)
	}
}

// PutQuote upserts the snapshot entry for the quote's (venue, pair) and
// enqueues a durable history append. It never fails the caller: cache and
// durability failures are logged and swallowed so price availability is not
// blocked by persistence issues.
func (s *Store) PutQuote(ctx context.Context, q domain.PriceQuote) {
	// The fallback tier mirrors every write, so a mid-run degrade loses no
	// snapshot entries.
	if err := s.fallback.PutQuote(ctx, q); err != nil {
		s.logger.Error("fallback tier put failed",
			slog.String("venue", q.VenueID),
			slog.String("pair", q.Pair.String()),
			slog.String("error", err.Error()),
		)
	}

	if !s.degraded.Load() {
		if err := s.primary.PutQuote(ctx, q); err != nil {
			s.degrade(err)
		}
	}

	select {
	case s.historyQueue <- q:
	default:
		s.logger.Warn("history queue full, dropping durable append",
			slog.String("venue", q.VenueID),
			slog.String("pair", q.Pair.String()),
		)
	}
}

// Snapshot returns a consistent point-in-time view of the latest quote per
// (venue, pair). A primary-tier read failure degrades the store and answers
// from the fallback, which holds the same data.
func (s *Store) Snapshot(ctx context.Context) map[domain.QuoteKey]domain.PriceQuote {
	if !s.degraded.Load() {
		snap, err := s.primary.Snapshot(ctx)
		if err == nil {
			return snap
		}
		s.degrade(err)
	}

	snap, err := s.fallback.Snapshot(ctx)
	if err != nil {
		// The in-memory implementation cannot fail; guard anyway.
		s.logger.Error("fallback snapshot failed", slog.String("error", err.Error()))
		return map[domain.QuoteKey]domain.PriceQuote{}
	}
	return snap
}

// History returns up to limit quotes for (venue, pair), most recent first.
func (s *Store) History(ctx context.Context, venueID string, pair domain.TokenPair, limit int) ([]domain.PriceQuote, error) {
	return s.history.History(ctx, venueID, pair, limit)
}

// RecordOpportunity appends the opportunity to the durable log. Best-effort:
// failures are logged, never raised.
func (s *Store) RecordOpportunity(ctx context.Context, opp domain.ArbitrageOpportunity) {
	if err := s.opps.Insert(ctx, opp); err != nil {
		s.logger.Error("opportunity log write failed",
			slog.String("opportunity", opp.Key()),
			slog.String("error", err.Error()),
		)
	}
}

// Run drains the durable history queue until ctx is cancelled. Quotes still
// buffered at shutdown are discarded; already-written entries remain valid.
func (s *Store) Run(ctx context.Context) error {
	s.logger.Info("durable history writer started")
	defer s.logger.Info("durable history writer stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case q := <-s.historyQueue:
			if err := s.history.AppendQuote(ctx, q); err != nil {
				s.logger.Error("history append failed",
					slog.String("venue", q.VenueID),
					slog.String("pair", q.Pair.String()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
