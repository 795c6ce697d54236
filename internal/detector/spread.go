// Package detector runs the recurring arbitrage-detection cycle over the
// price store's snapshot and emits qualifying opportunities to the
// notification gate. All spread arithmetic is decimal so comparisons are
// exact at the threshold's granularity.
package detector

import (
	"github.com/shopspring/decimal"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Costs are the percentage deductions applied to a raw spread.
type Costs struct {
	// BuyFeePct and SellFeePct are the venues' taker fees.
	BuyFeePct  decimal.Decimal
	SellFeePct decimal.Decimal
	// SlippagePct is the configured slippage tolerance.
	SlippagePct decimal.Decimal
}

// Spread is the outcome of evaluating one ordered (buy, sell) venue pair.
type Spread struct {
	// GrossPct is (sell-buy)/buy as a percentage.
	GrossPct decimal.Decimal
	// NetPct is GrossPct minus all costs.
	NetPct decimal.Decimal
	// ProfitUSD is the net profit on the given trade notional.
	ProfitUSD decimal.Decimal
}

// ComputeSpread evaluates buying at buyPrice and selling at sellPrice with
// the given costs and trade notional. buyPrice must be positive.
func ComputeSpread(buyPrice, sellPrice, notionalUSD decimal.Decimal, costs Costs) Spread {
	gross := sellPrice.Sub(buyPrice).Div(buyPrice).Mul(hundred)
	net := gross.Sub(costs.BuyFeePct).Sub(costs.SellFeePct).Sub(costs.SlippagePct)
	profit := notionalUSD.Mul(net).Div(hundred)
	return Spread{
		GrossPct:  gross,
		NetPct:    net,
		ProfitUSD: profit,
	}
}

// Qualifies applies the dual-condition profitability filter: the net spread
// must reach thresholdPct AND the notional profit must reach minProfitUSD.
// Equality at either boundary qualifies.
func (s Spread) Qualifies(thresholdPct, minProfitUSD decimal.Decimal) bool {
	return s.NetPct.GreaterThanOrEqual(thresholdPct) &&
		s.ProfitUSD.GreaterThanOrEqual(minProfitUSD)
}

// groupByPair indexes a snapshot by token pair, preserving only venues that
// actually hold a quote. Absent venues are skipped, not treated as
// price-zero.
func groupByPair(snap map[domain.QuoteKey]domain.PriceQuote) map[domain.TokenPair][]domain.PriceQuote {
	byPair := make(map[domain.TokenPair][]domain.PriceQuote)
	for k, q := range snap {
		byPair[k.Pair] = append(byPair[k.Pair], q)
	}
	return byPair
}
