// Package subgraph implements a DEX venue adapter that queries a GraphQL
// subgraph indexer (Uniswap-style) for candidate pools of a token pair and
// reduces them to a single representative quote.
package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
	"github.com/nice-okura/dex-arbitrage-bot/internal/venue"
)

// Adapter is a GraphQL client for one DEX subgraph endpoint.
type Adapter struct {
	venueID    string
	graphqlURL string
	httpClient *http.Client
}

// New creates a subgraph adapter for the given venue.
//
// graphqlURL is the subgraph endpoint, e.g.
// "https://api.thegraph.com/subgraphs/name/uniswap/uniswap-v3".
func New(venueID, graphqlURL string) *Adapter {
	return &Adapter{
		venueID:    venueID,
		graphqlURL: graphqlURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// VenueID returns the venue this adapter serves.
func (a *Adapter) VenueID() string { return a.venueID }

// graphqlRequest is the standard GraphQL request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Pool is one candidate pool returned by the subgraph for a pair.
type Pool struct {
	ID        string
	Price     decimal.Decimal
	Liquidity decimal.Decimal
}

// FetchQuote queries the subgraph for candidate pools of the pair and
// selects a single representative one.
func (a *Adapter) FetchQuote(ctx context.Context, pair domain.TokenPair) (domain.PriceQuote, error) {
	pools, err := a.fetchPools(ctx, pair)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("subgraph: fetch pools %s: %w", pair, err)
	}

	best, err := SelectBestPool(pools)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("subgraph: %s: %w", pair, err)
	}

	return domain.PriceQuote{
		VenueID:    a.venueID,
		Pair:       pair,
		Price:      best.Price,
		Liquidity:  best.Liquidity,
		PoolID:     best.ID,
		ObservedAt: time.Now().UTC(),
	}, nil
}

// SelectBestPool reduces candidate pools to a single representative one:
// highest liquidity wins, ties break to the lowest pool id so the same input
// always yields the same selection.
func SelectBestPool(pools []Pool) (Pool, error) {
	if len(pools) == 0 {
		return Pool{}, domain.ErrNoPools
	}
	best := pools[0]
	for _, p := range pools[1:] {
		switch p.Liquidity.Cmp(best.Liquidity) {
		case 1:
			best = p
		case 0:
			if strings.Compare(p.ID, best.ID) < 0 {
				best = p
			}
		}
	}
	return best, nil
}

// fetchPools queries candidate pools for the pair, most liquid first. The
// token0Price field is the amount of token1 (quote) per token0 (base).
func (a *Adapter) fetchPools(ctx context.Context, pair domain.TokenPair) ([]Pool, error) {
	query := `
		query PairPools($base: String!, $quote: String!) {
			pools(
				first: 10
				orderBy: totalValueLockedUSD
				orderDirection: desc
				where: { token0_: { symbol: $base }, token1_: { symbol: $quote } }
			) {
				id
				token0Price
				totalValueLockedUSD
			}
		}
	`

	variables := map[string]any{
		"base":  pair.Base,
		"quote": pair.Quote,
	}

	respData, err := a.doQuery(ctx, query, variables)
	if err != nil {
		return nil, err
	}

	var result struct {
		Pools []struct {
			ID                  string `json:"id"`
			Token0Price         string `json:"token0Price"`
			TotalValueLockedUSD string `json:"totalValueLockedUSD"`
		} `json:"pools"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("decode pools: %w", err)
	}

	pools := make([]Pool, 0, len(result.Pools))
	for _, p := range result.Pools {
		price, err := decimal.NewFromString(p.Token0Price)
		if err != nil || !price.IsPositive() {
			// Pools with no usable price are not candidates.
			continue
		}
		liquidity := decimal.Zero
		if l, err := decimal.NewFromString(p.TotalValueLockedUSD); err == nil {
			liquidity = l
		}
		pools = append(pools, Pool{
			ID:        strings.ToLower(p.ID),
			Price:     price,
			Liquidity: liquidity,
		})
	}
	return pools, nil
}

// doQuery executes a GraphQL query and returns the raw "data" field from the
// response.
func (a *Adapter) doQuery(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	jsonBody, err := json.Marshal(graphqlRequest{
		Query:     query,
		Variables: variables,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.graphqlURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", gqlResp.Errors[0].Message)
	}

	return gqlResp.Data, nil
}

// Compile-time interface check.
var _ venue.Adapter = (*Adapter)(nil)
