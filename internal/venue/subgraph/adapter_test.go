package subgraph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSelectBestPool(t *testing.T) {
	tests := []struct {
		name    string
		pools   []Pool
		want    string
		wantErr error
	}{
		{
			name:    "empty",
			pools:   nil,
			wantErr: domain.ErrNoPools,
		},
		{
			name: "highest_liquidity_wins",
			pools: []Pool{
				{ID: "0xaaa", Price: d("2000"), Liquidity: d("100")},
				{ID: "0xbbb", Price: d("2001"), Liquidity: d("500")},
				{ID: "0xccc", Price: d("1999"), Liquidity: d("300")},
			},
			want: "0xbbb",
		},
		{
			name: "tie_breaks_to_lowest_id",
			pools: []Pool{
				{ID: "0xbbb", Price: d("2001"), Liquidity: d("500")},
				{ID: "0xaaa", Price: d("2000"), Liquidity: d("500")},
			},
			want: "0xaaa",
		},
		{
			name: "single_pool",
			pools: []Pool{
				{ID: "0xaaa", Price: d("2000"), Liquidity: d("0")},
			},
			want: "0xaaa",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectBestPool(tt.pools)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestSelectBestPoolIsDeterministic(t *testing.T) {
	a := Pool{ID: "0xaaa", Price: d("2000"), Liquidity: d("500")}
	b := Pool{ID: "0xbbb", Price: d("2001"), Liquidity: d("500")}

	first, err := SelectBestPool([]Pool{a, b})
	require.NoError(t, err)
	second, err := SelectBestPool([]Pool{b, a})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestFetchQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ETH", req.Variables["base"])
		assert.Equal(t, "USDT", req.Variables["quote"])

		_, _ = w.Write([]byte(`{
			"data": {
				"pools": [
					{"id": "0xAAA", "token0Price": "2000.5", "totalValueLockedUSD": "1000000"},
					{"id": "0xBBB", "token0Price": "2001.1", "totalValueLockedUSD": "5000000"},
					{"id": "0xCCC", "token0Price": "0", "totalValueLockedUSD": "9000000"}
				]
			}
		}`))
	}))
	defer srv.Close()

	adapter := New("uniswap", srv.URL)
	pair := domain.TokenPair{Base: "ETH", Quote: "USDT"}

	quote, err := adapter.FetchQuote(context.Background(), pair)
	require.NoError(t, err)

	assert.Equal(t, "uniswap", quote.VenueID)
	assert.Equal(t, pair, quote.Pair)
	// The zero-price pool is discarded even though it has the most
	// liquidity; 0xBBB wins among the usable candidates.
	assert.Equal(t, "0xbbb", quote.PoolID)
	assert.True(t, quote.Price.Equal(d("2001.1")))
	assert.True(t, quote.Liquidity.Equal(d("5000000")))
	assert.False(t, quote.ObservedAt.IsZero())
}

func TestFetchQuoteNoPools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"pools": []}}`))
	}))
	defer srv.Close()

	adapter := New("uniswap", srv.URL)
	_, err := adapter.FetchQuote(context.Background(), domain.TokenPair{Base: "ETH", Quote: "USDT"})
	assert.ErrorIs(t, err, domain.ErrNoPools)
}

func TestFetchQuoteGraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors": [{"message": "indexing error"}]}`))
	}))
	defer srv.Close()

	adapter := New("uniswap", srv.URL)
	_, err := adapter.FetchQuote(context.Background(), domain.TokenPair{Base: "ETH", Quote: "USDT"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indexing error")
}

func TestFetchQuoteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	adapter := New("uniswap", srv.URL)
	_, err := adapter.FetchQuote(context.Background(), domain.TokenPair{Base: "ETH", Quote: "USDT"})
	assert.Error(t, err)
}
