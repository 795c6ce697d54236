package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

// HistoryStore implements domain.HistoryStore using PostgreSQL. The table is
// append-only; pruning is driven by the cold-storage archiver, which is what
// keeps the history bounded.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a HistoryStore backed by the given connection pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// AppendQuote appends one observed quote to the history.
func (s *HistoryStore) AppendQuote(ctx context.Context, q domain.PriceQuote) error {
	const query = `
		INSERT INTO price_history (venue_id, base, quote, price, liquidity, pool_id, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		q.VenueID, q.Pair.Base, q.Pair.Quote,
		q.Price.String(), q.Liquidity.String(), q.PoolID, q.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append quote %s/%s: %w", q.VenueID, q.Pair, err)
	}
	return nil
}

const historySelectCols = `venue_id, base, quote, price::text, liquidity::text, pool_id, observed_at`

// History returns up to limit quotes for (venue, pair), most recent first.
func (s *HistoryStore) History(ctx context.Context, venueID string, pair domain.TokenPair, limit int) ([]domain.PriceQuote, error) {
	query := `SELECT ` + historySelectCols + `
		FROM price_history
		WHERE venue_id = $1 AND base = $2 AND quote = $3
		ORDER BY observed_at DESC`
	args := []any{venueID, pair.Base, pair.Quote}

	if limit > 0 {
		query += " LIMIT $4"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: history %s/%s: %w", venueID, pair, err)
	}
	defer rows.Close()

	return scanQuotes(rows)
}

// ListQuotesBefore returns all quotes observed strictly before the cutoff.
func (s *HistoryStore) ListQuotesBefore(ctx context.Context, before time.Time) ([]domain.PriceQuote, error) {
	query := `SELECT ` + historySelectCols + `
		FROM price_history
		WHERE observed_at < $1
		ORDER BY observed_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list quotes before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	return scanQuotes(rows)
}

// PruneQuotesBefore deletes all quotes observed strictly before the cutoff.
func (s *HistoryStore) PruneQuotesBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM price_history WHERE observed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: prune quotes before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func scanQuotes(rows pgx.Rows) ([]domain.PriceQuote, error) {
	var quotes []domain.PriceQuote
	for rows.Next() {
		var (
			q            domain.PriceQuote
			base, quote  string
			priceStr     string
			liquidityStr string
		)
		if err := rows.Scan(
			&q.VenueID, &base, &quote, &priceStr, &liquidityStr, &q.PoolID, &q.ObservedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan quote: %w", err)
		}
		q.Pair = domain.TokenPair{Base: base, Quote: quote}

		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse price %q: %w", priceStr, err)
		}
		q.Price = price
		if liquidity, err := decimal.NewFromString(liquidityStr); err == nil {
			q.Liquidity = liquidity
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: quote rows: %w", err)
	}
	return quotes, nil
}

// Compile-time interface check.
var _ domain.HistoryStore = (*HistoryStore)(nil)
