// Package venue defines the adapter capability every price source must
// implement and a registry keyed by venue id, so the collection and
// detection logic never special-cases a venue by name.
package venue

import (
	"context"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

// Adapter fetches one quote for a token pair from a single venue. A call is
// bounded by the caller's context deadline. Adapters are not required to be
// safe for concurrent use; the collector serializes calls per venue.
type Adapter interface {
	// VenueID returns the id of the venue this adapter serves.
	VenueID() string
	// FetchQuote returns a fresh quote for pair, or an error when the venue
	// cannot answer this cycle.
	FetchQuote(ctx context.Context, pair domain.TokenPair) (domain.PriceQuote, error)
}
