// Package app provides the top-level application lifecycle for the
// arbitrage monitor. It wires together the storage tiers, venue adapters,
// detection loops, and notification channels, and runs them all under one
// errgroup until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/nice-okura/dex-arbitrage-bot/internal/collector"
	"github.com/nice-okura/dex-arbitrage-bot/internal/config"
	"github.com/nice-okura/dex-arbitrage-bot/internal/detector"
	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the
// collection and detection loops, and blocks until the context is
// cancelled. Cancellation is a clean shutdown, not an error.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting arbitrage monitor",
		slog.Int("venues", len(a.cfg.Venues)),
		slog.Any("pairs", a.cfg.Pairs),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	logRecentOpportunities(ctx, deps.Opps, a.logger)

	coll := collector.New(collector.Config{
		Registry:    deps.Registry,
		Pairs:       deps.Pairs,
		Store:       deps.PriceStore,
		Interval:    a.cfg.Collector.Interval.Duration,
		CallTimeout: a.cfg.Collector.CallTimeout.Duration,
		Logger:      a.logger,
	})

	feePct := make(map[string]decimal.Decimal, len(a.cfg.Venues))
	for _, v := range a.cfg.Venues {
		feePct[v.ID] = decimal.NewFromFloat(v.FeePct)
	}
	det := detector.New(detector.Config{
		Store:        deps.PriceStore,
		Sink:         deps.Gate,
		Interval:     a.cfg.Detector.Interval.Duration,
		ThresholdPct: decimal.NewFromFloat(a.cfg.Detector.ThresholdPct),
		SlippagePct:  decimal.NewFromFloat(a.cfg.Detector.SlippagePct),
		NotionalUSD:  decimal.NewFromFloat(a.cfg.Detector.TradeNotionalUSD),
		MinProfitUSD: decimal.NewFromFloat(a.cfg.Detector.MinProfitUSD),
		FeePct:       feePct,
		Logger:       a.logger,
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.PriceStore.Run(ctx)
	})
	for _, start := range deps.Starters {
		g.Go(func() error {
			return start(ctx)
		})
	}
	g.Go(func() error {
		return coll.Run(ctx)
	})
	g.Go(func() error {
		return det.Run(ctx)
	})
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// logRecentOpportunities logs a recap of the latest entries in the durable
// opportunity log at startup. The recap is informational; a read failure is
// logged and startup continues.
func logRecentOpportunities(ctx context.Context, opps domain.OpportunityStore, logger *slog.Logger) {
	const recapLimit = 5

	recent, err := opps.ListRecent(ctx, recapLimit)
	if err != nil {
		logger.WarnContext(ctx, "could not read recent opportunities", slog.String("error", err.Error()))
		return
	}
	if len(recent) == 0 {
		logger.InfoContext(ctx, "no previously detected opportunities")
		return
	}

	latest := recent[0]
	logger.InfoContext(ctx, "recent opportunities",
		slog.Int("count", len(recent)),
		slog.String("latest_key", latest.Key()),
		slog.String("latest_net_spread_pct", latest.NetSpreadPct.String()),
		slog.Time("latest_detected_at", latest.DetectedAt),
	)
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
