package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnknownVenue = errors.New("unknown venue")
	ErrStaleQuote   = errors.New("quote too stale")
	ErrNoPools      = errors.New("no candidate pools")
)
