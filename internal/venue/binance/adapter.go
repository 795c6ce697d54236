// Package binance implements a CEX venue adapter for the Binance spot REST
// API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
	"github.com/nice-okura/dex-arbitrage-bot/internal/venue"
)

// DefaultBaseURL is the public Binance spot API host.
const DefaultBaseURL = "https://api.binance.com"

// Adapter polls GET /api/v3/ticker/price for the latest spot price.
type Adapter struct {
	venueID    string
	baseURL    string
	httpClient *http.Client
}

// New creates a Binance adapter. An empty baseURL selects the public API.
func New(venueID, baseURL string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{
		venueID: venueID,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// VenueID returns the venue this adapter serves.
func (a *Adapter) VenueID() string { return a.venueID }

// tickerResponse is the /api/v3/ticker/price payload.
type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// FetchQuote returns the latest ticker price for the pair.
func (a *Adapter) FetchQuote(ctx context.Context, pair domain.TokenPair) (domain.PriceQuote, error) {
	u := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", a.baseURL, url.QueryEscape(pair.Symbol()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("binance: create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("binance: ticker %s: %w", pair.Symbol(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.PriceQuote{}, fmt.Errorf("binance: ticker %s: HTTP %d: %s", pair.Symbol(), resp.StatusCode, string(body))
	}

	var ticker tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("binance: decode ticker %s: %w", pair.Symbol(), err)
	}

	price, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("binance: parse price %q for %s: %w", ticker.Price, pair.Symbol(), err)
	}
	if !price.IsPositive() {
		return domain.PriceQuote{}, fmt.Errorf("binance: non-positive price %q for %s", ticker.Price, pair.Symbol())
	}

	return domain.PriceQuote{
		VenueID:    a.venueID,
		Pair:       pair,
		Price:      price,
		ObservedAt: time.Now().UTC(),
	}, nil
}

// Compile-time interface check.
var _ venue.Adapter = (*Adapter)(nil)
