package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArbitrageOpportunity is a detected cross-venue spread that cleared both the
// net-spread threshold and the minimum-profit floor. Opportunities are
// immutable; durability lives in the opportunity log.
type ArbitrageOpportunity struct {
	ID        string
	Pair      TokenPair
	BuyVenue  string
	SellVenue string
	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal
	// GrossSpreadPct is (sell-buy)/buy expressed as a percentage.
	GrossSpreadPct decimal.Decimal
	// NetSpreadPct is the gross spread minus buy-side fee, sell-side fee,
	// and slippage tolerance, all in percent of trade value.
	NetSpreadPct decimal.Decimal
	// EstProfitUSD is the estimated net profit on the configured trade
	// notional.
	EstProfitUSD decimal.Decimal
	DetectedAt   time.Time
}

// Key returns the cooldown key for the opportunity: same pair and same
// ordered venue pair means the same recurring spread.
func (o ArbitrageOpportunity) Key() string {
	return o.Pair.String() + "|" + o.BuyVenue + ">" + o.SellVenue
}
