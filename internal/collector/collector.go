// Package collector runs the recurring price-collection cycle: fan out to
// every configured venue in parallel, fan in the results, and write
// successful quotes into the price store. A single venue failure never
// aborts the cycle for the others.
package collector

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
	"github.com/nice-okura/dex-arbitrage-bot/internal/pricestore"
	"github.com/nice-okura/dex-arbitrage-bot/internal/venue"
)

// Collector polls every (venue, pair) combination once per interval tick.
type Collector struct {
	registry    *venue.Registry
	pairs       []domain.TokenPair
	store       *pricestore.Store
	interval    time.Duration
	callTimeout time.Duration
	logger      *slog.Logger
}

// Config configures a Collector.
type Config struct {
	Registry    *venue.Registry
	Pairs       []domain.TokenPair
	Store       *pricestore.Store
	Interval    time.Duration
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// New creates a Collector.
func New(cfg Config) *Collector {
	return &Collector{
		registry:    cfg.Registry,
		pairs:       cfg.Pairs,
		store:       cfg.Store,
		interval:    cfg.Interval,
		callTimeout: cfg.CallTimeout,
		logger:      cfg.Logger.With(slog.String("component", "collector")),
	}
}

// Run executes collection cycles until ctx is cancelled. Ticks are anchored
// to each cycle's nominal start time, so an overrunning cycle delays the
// next one without accumulating drift, and cycle N+1 never starts before
// cycle N has returned.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Info("collection loop started",
		slog.Duration("interval", c.interval),
		slog.Int("venues", len(c.registry.Venues())),
		slog.Int("pairs", len(c.pairs)),
	)
	defer c.logger.Info("collection loop stopped")

	next := time.Now()
	for {
		c.RunCycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		next = next.Add(c.interval)
		wait := time.Until(next)
		if wait <= 0 {
			// The cycle overran one or more whole intervals; re-anchor
			// rather than firing a burst of catch-up cycles.
			next = time.Now()
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// RunCycle performs one full fan-out/fan-in pass. Venues are polled
// concurrently with each other; a venue's own pairs are polled sequentially
// so adapters need not be safe for concurrent use.
func (c *Collector) RunCycle(ctx context.Context) {
	start := time.Now()

	venues := c.registry.Venues()
	results := make(chan int, len(venues))

	var g errgroup.Group
	for _, v := range venues {
		g.Go(func() error {
			results <- c.pollVenue(ctx, v)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	collected := 0
	for n := range results {
		collected += n
	}

	c.logger.Debug("collection cycle finished",
		slog.Int("quotes", collected),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// pollVenue fetches every monitored pair from one venue and returns the
// number of quotes stored. Per-pair failures are logged and contained; the
// snapshot entry for a failed pair simply keeps its previous value.
func (c *Collector) pollVenue(ctx context.Context, v domain.Venue) int {
	adapter, err := c.registry.Adapter(v.ID)
	if err != nil {
		c.logger.Error("no adapter for venue", slog.String("venue", v.ID))
		return 0
	}

	stored := 0
	for _, pair := range c.pairs {
		if ctx.Err() != nil {
			return stored
		}

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		quote, err := adapter.FetchQuote(callCtx, pair)
		cancel()

		if err != nil {
			// No retry within the cycle; the next tick will try again.
			c.logger.Warn("quote fetch failed",
				slog.String("venue", v.ID),
				slog.String("pair", pair.String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		c.store.PutQuote(ctx, quote)
		stored++
	}
	return stored
}
