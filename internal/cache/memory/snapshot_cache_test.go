package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

func quote(venueID string, price string) domain.PriceQuote {
	return domain.PriceQuote{
		VenueID:    venueID,
		Pair:       domain.TokenPair{Base: "ETH", Quote: "USDT"},
		Price:      decimal.RequireFromString(price),
		ObservedAt: time.Now().UTC(),
	}
}

func TestPutQuoteSupersedesPrevious(t *testing.T) {
	cache := NewSnapshotCache()
	ctx := context.Background()

	require.NoError(t, cache.PutQuote(ctx, quote("binance", "2000")))
	require.NoError(t, cache.PutQuote(ctx, quote("binance", "2010")))

	snap, err := cache.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 1)

	key := domain.QuoteKey{VenueID: "binance", Pair: domain.TokenPair{Base: "ETH", Quote: "USDT"}}
	assert.True(t, snap[key].Price.Equal(decimal.RequireFromString("2010")))
}

func TestSnapshotIsACopy(t *testing.T) {
	cache := NewSnapshotCache()
	ctx := context.Background()
	require.NoError(t, cache.PutQuote(ctx, quote("binance", "2000")))

	snap, err := cache.Snapshot(ctx)
	require.NoError(t, err)
	for k := range snap {
		delete(snap, k)
	}

	again, err := cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 1)
}

func TestConcurrentWriters(t *testing.T) {
	cache := NewSnapshotCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	venues := []string{"binance", "okx", "uniswap", "sushiswap"}
	for _, v := range venues {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = cache.PutQuote(ctx, quote(v, "2000"))
			}
		}()
	}
	wg.Wait()

	snap, err := cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap, len(venues))
}
