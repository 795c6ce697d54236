package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is one observed price for a token pair from one venue. Quotes
// are immutable; a newer quote for the same (venue, pair) supersedes the
// previous one in the snapshot rather than mutating it.
type PriceQuote struct {
	VenueID string
	Pair    TokenPair
	// Price is the pair price in the venue's quote currency.
	Price decimal.Decimal
	// Liquidity is an optional liquidity or volume proxy, used by DEX
	// adapters to pick a representative pool. Zero when the venue does not
	// report one.
	Liquidity decimal.Decimal
	// PoolID identifies the pool the quote came from, for DEX venues with
	// multiple pools per pair. Empty for CEX quotes.
	PoolID     string
	ObservedAt time.Time
}

// QuoteKey addresses one snapshot entry. Equality is structural, so the key
// is usable directly as a map key.
type QuoteKey struct {
	VenueID string
	Pair    TokenPair
}

// Key returns the snapshot key for the quote.
func (q PriceQuote) Key() QuoteKey {
	return QuoteKey{VenueID: q.VenueID, Pair: q.Pair}
}
