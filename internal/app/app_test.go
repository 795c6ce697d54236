package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

type fakeOppStore struct {
	recent    []domain.ArbitrageOpportunity
	listErr   error
	lastLimit int
}

func (f *fakeOppStore) Insert(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	return nil
}

func (f *fakeOppStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	f.lastLimit = limit
	return f.recent, f.listErr
}

func (f *fakeOppStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageOpportunity, error) {
	return nil, nil
}

func (f *fakeOppStore) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestLogRecentOpportunitiesQueriesStore(t *testing.T) {
	store := &fakeOppStore{
		recent: []domain.ArbitrageOpportunity{{
			Pair:         domain.TokenPair{Base: "ETH", Quote: "USDT"},
			BuyVenue:     "uniswap",
			SellVenue:    "binance",
			NetSpreadPct: decimal.RequireFromString("2"),
			DetectedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}},
	}

	logRecentOpportunities(context.Background(), store, discardLogger())

	assert.Equal(t, 5, store.lastLimit)
}

func TestLogRecentOpportunitiesToleratesReadFailure(t *testing.T) {
	store := &fakeOppStore{listErr: errors.New("connection reset")}

	assert.NotPanics(t, func() {
		logRecentOpportunities(context.Background(), store, discardLogger())
	})
}

func TestLogRecentOpportunitiesEmptyLog(t *testing.T) {
	store := &fakeOppStore{}

	assert.NotPanics(t, func() {
		logRecentOpportunities(context.Background(), store, discardLogger())
	})
	assert.Equal(t, 5, store.lastLimit)
}
