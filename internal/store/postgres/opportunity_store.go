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

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, base, quote, buy_venue, sell_venue,
	buy_price::text, sell_price::text,
	gross_spread_pct::text, net_spread_pct::text, est_profit_usd::text,
	detected_at`

// Insert appends a detected opportunity to the durable log.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	const query = `
		INSERT INTO opportunity_log (
			id, base, quote, buy_venue, sell_venue,
			buy_price, sell_price,
			gross_spread_pct, net_spread_pct, est_profit_usd,
			detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		opp.ID, opp.Pair.Base, opp.Pair.Quote, opp.BuyVenue, opp.SellVenue,
		opp.BuyPrice.String(), opp.SellPrice.String(),
		opp.GrossSpreadPct.String(), opp.NetSpreadPct.String(), opp.EstProfitUSD.String(),
		opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the most recent opportunities ordered by detection time.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunity_log ORDER BY detected_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// ListBefore returns all opportunities detected strictly before the cutoff.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageOpportunity, error) {
	query := `SELECT ` + oppSelectCols + `
		FROM opportunity_log
		WHERE detected_at < $1
		ORDER BY detected_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// PruneBefore deletes all opportunities detected strictly before the cutoff.
func (s *OpportunityStore) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM opportunity_log WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: prune opportunities before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func scanOpportunities(rows pgx.Rows) ([]domain.ArbitrageOpportunity, error) {
	var opps []domain.ArbitrageOpportunity
	for rows.Next() {
		var (
			opp         domain.ArbitrageOpportunity
			base, quote string
			decimals    [5]string
		)
		if err := rows.Scan(
			&opp.ID, &base, &quote, &opp.BuyVenue, &opp.SellVenue,
			&decimals[0], &decimals[1], &decimals[2], &decimals[3], &decimals[4],
			&opp.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opp.Pair = domain.TokenPair{Base: base, Quote: quote}

		dsts := []*decimal.Decimal{
			&opp.BuyPrice, &opp.SellPrice,
			&opp.GrossSpreadPct, &opp.NetSpreadPct, &opp.EstProfitUSD,
		}
		for i, dst := range dsts {
			d, err := decimal.NewFromString(decimals[i])
			if err != nil {
				return nil, fmt.Errorf("postgres: parse opportunity decimal %q: %w", decimals[i], err)
			}
			*dst = d
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: opportunity rows: %w", err)
	}
	return opps, nil
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
