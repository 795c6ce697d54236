package pricestore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nice-okura/dex-arbitrage-bot/internal/cache/memory"
	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

// flakyCache wraps the in-memory cache and starts failing on demand.
type flakyCache struct {
	inner *memory.SnapshotCache
	mu    sync.Mutex
	fail  bool
}

func (c *flakyCache) setFail(fail bool) {
	c.mu.Lock()
	c.fail = fail
	c.mu.Unlock()
}

func (c *flakyCache) failing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fail
}

func (c *flakyCache) PutQuote(ctx context.Context, q domain.PriceQuote) error {
	if c.failing() {
		return errors.New("connection refused")
	}
	return c.inner.PutQuote(ctx, q)
}

func (c *flakyCache) Snapshot(ctx context.Context) (map[domain.QuoteKey]domain.PriceQuote, error) {
	if c.failing() {
		return nil, errors.New("connection refused")
	}
	return c.inner.Snapshot(ctx)
}

type fakeHistory struct {
	mu       sync.Mutex
	appended []domain.PriceQuote
	err      error
}

func (h *fakeHistory) AppendQuote(ctx context.Context, q domain.PriceQuote) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.appended = append(h.appended, q)
	return nil
}

func (h *fakeHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.appended)
}

func (h *fakeHistory) History(ctx context.Context, venueID string, pair domain.TokenPair, limit int) ([]domain.PriceQuote, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domain.PriceQuote
	for i := len(h.appended) - 1; i >= 0 && len(out) < limit; i-- {
		q := h.appended[i]
		if q.VenueID == venueID && q.Pair == pair {
			out = append(out, q)
		}
	}
	return out, nil
}

func (h *fakeHistory) ListQuotesBefore(ctx context.Context, before time.Time) ([]domain.PriceQuote, error) {
	return nil, nil
}

func (h *fakeHistory) PruneQuotesBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeOpps struct {
	mu       sync.Mutex
	inserted []domain.ArbitrageOpportunity
	err      error
}

func (o *fakeOpps) Insert(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.inserted = append(o.inserted, opp)
	return nil
}

func (o *fakeOpps) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	return nil, nil
}

func (o *fakeOpps) ListBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageOpportunity, error) {
	return nil, nil
}

func (o *fakeOpps) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func testQuote(venueID, pair, price string) domain.PriceQuote {
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

func TestStoreStartsDegradedWithoutPrimary(t *testing.T) {
	store := New(Options{
		Primary:  nil,
		Fallback: memory.NewSnapshotCache(),
		History:  &fakeHistory{},
		Opps:     &fakeOpps{},
		Logger:   slog.Default(),
	})
	ctx := context.Background()

	assert.True(t, store.Degraded())

	store.PutQuote(ctx, testQuote("binance", "ETH/USDT", "2000"))
	snap := store.Snapshot(ctx)
	require.Len(t, snap, 1)
}

func TestStoreMidRunDegradeLosesNoData(t *testing.T) {
	primary := &flakyCache{inner: memory.NewSnapshotCache()}
	store := New(Options{
		Primary:  primary,
		Fallback: memory.NewSnapshotCache(),
		History:  &fakeHistory{},
		Opps:     &fakeOpps{},
		Logger:   slog.Default(),
	})
	ctx := context.Background()

	store.PutQuote(ctx, testQuote("binance", "ETH/USDT", "2000"))
	store.PutQuote(ctx, testQuote("uniswap", "ETH/USDT", "1990"))
	require.False(t, store.Degraded())

	// Primary dies mid-run; the next write flips the store to the fallback,
	// which mirrored every earlier write.
	primary.setFail(true)
	store.PutQuote(ctx, testQuote("okx", "ETH/USDT", "2010"))
	assert.True(t, store.Degraded())

	snap := store.Snapshot(ctx)
	assert.Len(t, snap, 3)
}

func TestStoreDegradeIsOneDirectional(t *testing.T) {
	primary := &flakyCache{inner: memory.NewSnapshotCache()}
	store := New(Options{
		Primary:  primary,
		Fallback: memory.NewSnapshotCache(),
		History:  &fakeHistory{},
		Opps:     &fakeOpps{},
		Logger:   slog.Default(),
	})
	ctx := context.Background()

	primary.setFail(true)
	store.PutQuote(ctx, testQuote("binance", "ETH/USDT", "2000"))
	require.True(t, store.Degraded())

	// Primary recovering does not switch back; reconnection is a restart
	// concern.
	primary.setFail(false)
	store.PutQuote(ctx, testQuote("binance", "ETH/USDT", "2001"))
	assert.True(t, store.Degraded())

	primarySnap, err := primary.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, primarySnap)
}

func TestStoreSnapshotReadFailureDegrades(t *testing.T) {
	primary := &flakyCache{inner: memory.NewSnapshotCache()}
	store := New(Options{
		Primary:  primary,
		Fallback: memory.NewSnapshotCache(),
		History:  &fakeHistory{},
		Opps:     &fakeOpps{},
		Logger:   slog.Default(),
	})
	ctx := context.Background()

	store.PutQuote(ctx, testQuote("binance", "ETH/USDT", "2000"))
	primary.setFail(true)

	snap := store.Snapshot(ctx)
	assert.Len(t, snap, 1)
	assert.True(t, store.Degraded())
}

func TestStoreRunDrainsHistoryQueue(t *testing.T) {
	history := &fakeHistory{}
	store := New(Options{
		Fallback:         memory.NewSnapshotCache(),
		History:          history,
		Opps:             &fakeOpps{},
		HistoryQueueSize: 16,
		Logger:           slog.Default(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = store.Run(ctx)
		close(done)
	}()

	store.PutQuote(ctx, testQuote("binance", "ETH/USDT", "2000"))
	store.PutQuote(ctx, testQuote("uniswap", "ETH/USDT", "1990"))

	require.Eventually(t, func() bool {
		return history.count() == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestStoreQueueOverflowDropsQuote(t *testing.T) {
	history := &fakeHistory{}
	store := New(Options{
		Fallback:         memory.NewSnapshotCache(),
		History:          history,
		Opps:             &fakeOpps{},
		HistoryQueueSize: 1,
		Logger:           slog.Default(),
	})
	ctx := context.Background()

	// No Run goroutine draining; the second append is dropped, not blocked.
	store.PutQuote(ctx, testQuote("binance", "ETH/USDT", "2000"))
	store.PutQuote(ctx, testQuote("binance", "ETH/USDT", "2001"))

	// The snapshot still reflects the latest quote.
	snap := store.Snapshot(ctx)
	key := domain.QuoteKey{VenueID: "binance", Pair: domain.TokenPair{Base: "ETH", Quote: "USDT"}}
	require.Contains(t, snap, key)
	assert.True(t, snap[key].Price.Equal(decimal.RequireFromString("2001")))
}

func TestStoreRecordOpportunitySwallowsFailure(t *testing.T) {
	opps := &fakeOpps{err: errors.New("insert failed")}
	store := New(Options{
		Fallback: memory.NewSnapshotCache(),
		History:  &fakeHistory{},
		Opps:     opps,
		Logger:   slog.Default(),
	})

	// Must not panic or propagate.
	store.RecordOpportunity(context.Background(), domain.ArbitrageOpportunity{
		ID:   "x",
		Pair: domain.TokenPair{Base: "ETH", Quote: "USDT"},
	})
}

func TestStoreHistoryPassthrough(t *testing.T) {
	history := &fakeHistory{}
	store := New(Options{
		Fallback:         memory.NewSnapshotCache(),
		History:          history,
		Opps:             &fakeOpps{},
		HistoryQueueSize: 16,
		Logger:           slog.Default(),
	})
	ctx := context.Background()

	q := testQuote("binance", "ETH/USDT", "2000")
	require.NoError(t, history.AppendQuote(ctx, q))

	got, err := store.History(ctx, "binance", q.Pair, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Price.Equal(q.Price))
}
