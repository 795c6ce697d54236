// Package uniswapv2 implements a DEX venue adapter that reads pool reserves
// directly from the chain over JSON-RPC. Each monitored pair maps to one
// configured pair contract; the price is the reserve ratio adjusted for
// token decimals.
package uniswapv2

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
	"github.com/nice-okura/dex-arbitrage-bot/internal/venue"
)

// pairABI is the minimal ABI fragment for UniswapV2Pair.getReserves.
const pairABI = `[{"constant":true,"inputs":[],"name":"getReserves","outputs":[{"name":"_reserve0","type":"uint112"},{"name":"_reserve1","type":"uint112"},{"name":"_blockTimestampLast","type":"uint32"}],"payable":false,"stateMutability":"view","type":"function"}]`

// Pool maps one monitored pair to an on-chain pair contract.
type Pool struct {
	Address       common.Address
	BaseDecimals  int32
	QuoteDecimals int32
	// BaseIsToken0 records which side of the pool holds the base token;
	// token ordering in a pair contract is fixed by address sort, not by
	// the pair the operator monitors.
	BaseIsToken0 bool
}

// Adapter reads reserves from configured V2 pair contracts.
type Adapter struct {
	venueID string
	client  *ethclient.Client
	abi     abi.ABI
	pools   map[domain.TokenPair]Pool
}

// New creates an adapter for the given JSON-RPC endpoint and pool set.
func New(venueID, rpcURL string, pools map[domain.TokenPair]Pool) (*Adapter, error) {
	parsed, err := abi.JSON(strings.NewReader(pairABI))
	if err != nil {
		return nil, fmt.Errorf("uniswapv2: parse pair abi: %w", err)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("uniswapv2: dial %s: %w", rpcURL, err)
	}

	return &Adapter{
		venueID: venueID,
		client:  client,
		abi:     parsed,
		pools:   pools,
	}, nil
}

// VenueID returns the venue this adapter serves.
func (a *Adapter) VenueID() string { return a.venueID }

// Close releases the underlying RPC connection.
func (a *Adapter) Close() {
	a.client.Close()
}

// FetchQuote calls getReserves on the configured pair contract and derives
// the price from the decimal-adjusted reserve ratio. The quote-side reserve
// serves as the liquidity proxy.
func (a *Adapter) FetchQuote(ctx context.Context, pair domain.TokenPair) (domain.PriceQuote, error) {
	pool, ok := a.pools[pair]
	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("uniswapv2: no pool configured for %s: %w", pair, domain.ErrNoPools)
	}

	reserve0, reserve1, err := a.getReserves(ctx, pool.Address)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("uniswapv2: reserves for %s (%s): %w", pair, pool.Address.Hex(), err)
	}

	baseRes, quoteRes := reserve0, reserve1
	if !pool.BaseIsToken0 {
		baseRes, quoteRes = reserve1, reserve0
	}

	base := decimal.NewFromBigInt(baseRes, -pool.BaseDecimals)
	quote := decimal.NewFromBigInt(quoteRes, -pool.QuoteDecimals)
	if !base.IsPositive() || !quote.IsPositive() {
		return domain.PriceQuote{}, fmt.Errorf("uniswapv2: empty reserves for %s (%s)", pair, pool.Address.Hex())
	}

	return domain.PriceQuote{
		VenueID:    a.venueID,
		Pair:       pair,
		Price:      quote.Div(base),
		Liquidity:  quote,
		PoolID:     strings.ToLower(pool.Address.Hex()),
		ObservedAt: time.Now().UTC(),
	}, nil
}

// getReserves performs the eth_call against the pair contract.
func (a *Adapter) getReserves(ctx context.Context, addr common.Address) (*big.Int, *big.Int, error) {
	data, err := a.abi.Pack("getReserves")
	if err != nil {
		return nil, nil, fmt.Errorf("pack getReserves: %w", err)
	}

	out, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("eth_call: %w", err)
	}

	vals, err := a.abi.Unpack("getReserves", out)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack getReserves: %w", err)
	}
	if len(vals) < 2 {
		return nil, nil, fmt.Errorf("unexpected getReserves output arity %d", len(vals))
	}

	reserve0, ok0 := vals[0].(*big.Int)
	reserve1, ok1 := vals[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, nil, fmt.Errorf("unexpected getReserves output types %T, %T", vals[0], vals[1])
	}
	return reserve0, reserve1, nil
}

// Compile-time interface check.
var _ venue.Adapter = (*Adapter)(nil)
