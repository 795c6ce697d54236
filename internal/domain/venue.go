// Package domain defines the core types shared by the collector, detector,
// and storage layers: venues, token pairs, price quotes, and arbitrage
// opportunities.
package domain

import (
	"fmt"
	"strings"
)

// VenueKind distinguishes decentralized from centralized price sources.
type VenueKind string

const (
	VenueKindDEX VenueKind = "dex"
	VenueKindCEX VenueKind = "cex"
)

// Venue identifies a single DEX or CEX price source. Venues are created from
// configuration at startup and are immutable for the process lifetime.
type Venue struct {
	ID   string
	Kind VenueKind
	Name string
}

// TokenPair is a base/quote symbol pair being monitored, e.g. ETH/USDT.
// The set of monitored pairs is fixed at configuration time.
type TokenPair struct {
	Base  string
	Quote string
}

// ParsePair parses a "BASE/QUOTE" string into a TokenPair.
func ParsePair(s string) (TokenPair, error) {
	base, quote, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || base == "" || quote == "" {
		return TokenPair{}, fmt.Errorf("domain: malformed token pair %q (want BASE/QUOTE)", s)
	}
	return TokenPair{
		Base:  strings.ToUpper(strings.TrimSpace(base)),
		Quote: strings.ToUpper(strings.TrimSpace(quote)),
	}, nil
}

// String renders the pair as "BASE/QUOTE".
func (p TokenPair) String() string {
	return p.Base + "/" + p.Quote
}

// Symbol renders the pair without a separator, e.g. "ETHUSDT", the form most
// CEX ticker APIs expect.
func (p TokenPair) Symbol() string {
	return p.Base + p.Quote
}
