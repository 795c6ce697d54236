package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only needs the time-ranged query and prune methods, not the
// full domain store interfaces. The Postgres stores satisfy these implicitly.
// ---------------------------------------------------------------------------

// HistoryArchiveStore provides time-ranged access to the price history for
// archival purposes.
type HistoryArchiveStore interface {
	ListQuotesBefore(ctx context.Context, before time.Time) ([]domain.PriceQuote, error)
	PruneQuotesBefore(ctx context.Context, before time.Time) (int64, error)
}

// OpportunityArchiveStore provides time-ranged access to the opportunity log
// for archival purposes.
type OpportunityArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageOpportunity, error)
	PruneBefore(ctx context.Context, before time.Time) (int64, error)
}

// ---------------------------------------------------------------------------
// Archiver
// ---------------------------------------------------------------------------

// Archiver moves aged rows out of the durable stores into object storage.
// Each run serialises everything older than the retention cutoff to JSONL,
// uploads it, and then prunes the archived rows from Postgres. Pruning only
// happens after a successful upload, so a failed run leaves the rows in
// place for the next attempt.
type Archiver struct {
	writer  domain.BlobWriter
	history HistoryArchiveStore
	opps    OpportunityArchiveStore

	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewArchiver creates an Archiver that retains rows for the given duration
// and runs once per interval.
func NewArchiver(
	writer domain.BlobWriter,
	history HistoryArchiveStore,
	opps OpportunityArchiveStore,
	retention time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		writer:    writer,
		history:   history,
		opps:      opps,
		retention: retention,
		interval:  interval,
		logger:    logger.With("component", "archiver"),
	}
}

// Run executes an archive cycle once per interval until the context is
// cancelled. A failed cycle is logged and retried on the next tick.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info("archiver started",
		"retention", a.retention.String(),
		"interval", a.interval.String())

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.RunCycle(ctx); err != nil {
				a.logger.Error("archive cycle failed", "error", err)
			}
		}
	}
}

// RunCycle archives and prunes both stores using the current retention
// cutoff.
func (a *Archiver) RunCycle(ctx context.Context) error {
	before := time.Now().UTC().Add(-a.retention)

	quotes, err := a.ArchivePriceHistory(ctx, before)
	if err != nil {
		return err
	}
	opps, err := a.ArchiveOpportunities(ctx, before)
	if err != nil {
		return err
	}

	if quotes > 0 || opps > 0 {
		a.logger.Info("archive cycle complete",
			"quotes", quotes,
			"opportunities", opps,
			"before", before.Format(time.RFC3339))
	}
	return nil
}

// ArchivePriceHistory uploads all price history rows observed before the
// cutoff to archive/price_history/YYYY-MM.jsonl, then prunes them from the
// durable store. It returns the number of rows archived.
func (a *Archiver) ArchivePriceHistory(ctx context.Context, before time.Time) (int64, error) {
	quotes, err := a.history.ListQuotesBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive price history query: %w", err)
	}
	if len(quotes) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(quotes)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive price history marshal: %w", err)
	}

	path := archivePath("price_history", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive price history upload: %w", err)
	}

	pruned, err := a.history.PruneQuotesBefore(ctx, before)
	if err != nil {
		return int64(len(quotes)), fmt.Errorf("s3blob: archive price history prune: %w", err)
	}
	if pruned != int64(len(quotes)) {
		a.logger.Warn("pruned row count differs from archived count",
			"kind", "price_history", "archived", len(quotes), "pruned", pruned)
	}
	return int64(len(quotes)), nil
}

// ArchiveOpportunities uploads all opportunity rows detected before the
// cutoff to archive/opportunities/YYYY-MM.jsonl, then prunes them from the
// durable store. It returns the number of rows archived.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.opps.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := archivePath("opportunities", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	pruned, err := a.opps.PruneBefore(ctx, before)
	if err != nil {
		return int64(len(opps)), fmt.Errorf("s3blob: archive opportunities prune: %w", err)
	}
	if pruned != int64(len(opps)) {
		a.logger.Warn("pruned row count differs from archived count",
			"kind", "opportunities", "archived", len(opps), "pruned", pruned)
	}
	return int64(len(opps)), nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/price_history/2025-01.jsonl
//	archive/opportunities/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON. Each
// element becomes one compact JSON line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
