package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

func TestFetchQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol": "ETHUSDT", "price": "2043.17000000"}`))
	}))
	defer srv.Close()

	adapter := New("binance", srv.URL)
	pair := domain.TokenPair{Base: "ETH", Quote: "USDT"}

	quote, err := adapter.FetchQuote(context.Background(), pair)
	require.NoError(t, err)

	assert.Equal(t, "binance", quote.VenueID)
	assert.Equal(t, pair, quote.Pair)
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("2043.17")))
	assert.Empty(t, quote.PoolID)
	assert.False(t, quote.ObservedAt.IsZero())
}

func TestFetchQuoteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code": -1121, "msg": "Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	adapter := New("binance", srv.URL)
	_, err := adapter.FetchQuote(context.Background(), domain.TokenPair{Base: "NOPE", Quote: "USDT"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
}

func TestFetchQuoteRejectsNonPositivePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol": "ETHUSDT", "price": "0.00000000"}`))
	}))
	defer srv.Close()

	adapter := New("binance", srv.URL)
	_, err := adapter.FetchQuote(context.Background(), domain.TokenPair{Base: "ETH", Quote: "USDT"})
	assert.Error(t, err)
}

func TestNewDefaultsToPublicAPI(t *testing.T) {
	adapter := New("binance", "")
	assert.Equal(t, DefaultBaseURL, adapter.baseURL)
}
