package detector

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

type fakeStore struct {
	snap map[domain.QuoteKey]domain.PriceQuote
}

func (f *fakeStore) Snapshot(ctx context.Context) map[domain.QuoteKey]domain.PriceQuote {
	return f.snap
}

type fakeSink struct {
	offered []domain.ArbitrageOpportunity
}

func (f *fakeSink) Offer(ctx context.Context, opp domain.ArbitrageOpportunity) {
	f.offered = append(f.offered, opp)
}

func quote(venueID, pair, price string) domain.PriceQuote {
	p, err := domain.ParsePair(pair)
	if err != nil {
		panic(err)
	}
	return domain.PriceQuote{
		VenueID:    venueID,
		Pair:       p,
		Price:      decimal.RequireFromString(price),
		ObservedAt: time.Now().UTC(),
	}
}

func snapshotOf(quotes ...domain.PriceQuote) map[domain.QuoteKey]domain.PriceQuote {
	snap := make(map[domain.QuoteKey]domain.PriceQuote, len(quotes))
	for _, q := range quotes {
		snap[q.Key()] = q
	}
	return snap
}

func newTestDetector(store SnapshotReader, sink Sink) *Detector {
	det := New(Config{
		Store:        store,
		Sink:         sink,
		Interval:     time.Second,
		ThresholdPct: d("0.5"),
		SlippagePct:  d("0.1"),
		NotionalUSD:  d("1000"),
		MinProfitUSD: d("5"),
		FeePct: map[string]decimal.Decimal{
			"uniswap": d("0.3"),
			"binance": d("0.1"),
		},
		Logger: slog.Default(),
	})
	det.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return det
}

func TestRunCycleEmitsQualifyingOpportunity(t *testing.T) {
	store := &fakeStore{snap: snapshotOf(
		quote("uniswap", "ETH/USDT", "2000"),
		quote("binance", "ETH/USDT", "2050"),
	)}
	sink := &fakeSink{}

	emitted := newTestDetector(store, sink).RunCycle(context.Background())

	// Only buy-on-uniswap, sell-on-binance clears the threshold; the reverse
	// direction has a negative spread.
	require.Len(t, emitted, 1)
	opp := emitted[0]
	assert.Equal(t, "uniswap", opp.BuyVenue)
	assert.Equal(t, "binance", opp.SellVenue)
	// gross 2.5% - 0.3 - 0.1 - 0.1 = net 2.0%, $20 on $1000
	assert.True(t, opp.GrossSpreadPct.Equal(d("2.5")), "gross %s", opp.GrossSpreadPct)
	assert.True(t, opp.NetSpreadPct.Equal(d("2")), "net %s", opp.NetSpreadPct)
	assert.True(t, opp.EstProfitUSD.Equal(d("20")), "profit %s", opp.EstProfitUSD)
	assert.NotEmpty(t, opp.ID)
	assert.Equal(t, "ETH/USDT|uniswap>binance", opp.Key())

	require.Len(t, sink.offered, 1)
	assert.Equal(t, opp.ID, sink.offered[0].ID)
}

func TestRunCycleBelowThresholdEmitsNothing(t *testing.T) {
	store := &fakeStore{snap: snapshotOf(
		quote("uniswap", "ETH/USDT", "2000"),
		quote("binance", "ETH/USDT", "2005"),
	)}
	sink := &fakeSink{}

	emitted := newTestDetector(store, sink).RunCycle(context.Background())

	assert.Empty(t, emitted)
	assert.Empty(t, sink.offered)
}

func TestRunCycleSkipsPairWithSingleVenue(t *testing.T) {
	// WBTC/USDT only has one quote; absent venues are skipped, not treated
	// as price zero.
	store := &fakeStore{snap: snapshotOf(
		quote("uniswap", "ETH/USDT", "2000"),
		quote("binance", "ETH/USDT", "2050"),
		quote("binance", "WBTC/USDT", "60000"),
	)}
	sink := &fakeSink{}

	emitted := newTestDetector(store, sink).RunCycle(context.Background())

	require.Len(t, emitted, 1)
	assert.Equal(t, domain.TokenPair{Base: "ETH", Quote: "USDT"}, emitted[0].Pair)
}

func TestRunCycleEvaluatesPairsIndependently(t *testing.T) {
	store := &fakeStore{snap: snapshotOf(
		quote("uniswap", "ETH/USDT", "2000"),
		quote("binance", "ETH/USDT", "2050"),
		quote("uniswap", "WBTC/USDT", "60000"),
		quote("binance", "WBTC/USDT", "61500"),
	)}
	sink := &fakeSink{}

	emitted := newTestDetector(store, sink).RunCycle(context.Background())

	require.Len(t, emitted, 2)
	pairs := map[string]bool{}
	for _, opp := range emitted {
		pairs[opp.Pair.String()] = true
		assert.Equal(t, "uniswap", opp.BuyVenue)
		assert.Equal(t, "binance", opp.SellVenue)
	}
	assert.True(t, pairs["ETH/USDT"])
	assert.True(t, pairs["WBTC/USDT"])
}

func TestRunCycleEmptySnapshot(t *testing.T) {
	sink := &fakeSink{}
	emitted := newTestDetector(&fakeStore{}, sink).RunCycle(context.Background())
	assert.Empty(t, emitted)
}

func TestRunCycleThreeVenuesOrderedPairs(t *testing.T) {
	// Three venues, spread large enough that both cheaper venues qualify as
	// buy side against the most expensive one.
	store := &fakeStore{snap: snapshotOf(
		quote("uniswap", "ETH/USDT", "2000"),
		quote("binance", "ETH/USDT", "2010"),
		quote("okx", "ETH/USDT", "2100"),
	)}
	sink := &fakeSink{}

	det := newTestDetector(store, sink)
	det.feePct["okx"] = d("0.1")
	emitted := det.RunCycle(context.Background())

	keys := make([]string, 0, len(emitted))
	for _, opp := range emitted {
		keys = append(keys, opp.Key())
	}
	assert.Contains(t, keys, "ETH/USDT|uniswap>okx")
	assert.Contains(t, keys, "ETH/USDT|binance>okx")
	assert.NotContains(t, keys, "ETH/USDT|okx>uniswap")
}

func TestRunCycleUsesInjectedClock(t *testing.T) {
	store := &fakeStore{snap: snapshotOf(
		quote("uniswap", "ETH/USDT", "2000"),
		quote("binance", "ETH/USDT", "2050"),
	)}
	emitted := newTestDetector(store, &fakeSink{}).RunCycle(context.Background())

	require.Len(t, emitted, 1)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), emitted[0].DetectedAt)
}
