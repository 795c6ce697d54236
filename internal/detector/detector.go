package detector

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

// SnapshotReader is the slice of the price store the detector needs.
type SnapshotReader interface {
	Snapshot(ctx context.Context) map[domain.QuoteKey]domain.PriceQuote
}

// Sink receives every qualifying opportunity (the notification gate).
type Sink interface {
	Offer(ctx context.Context, opp domain.ArbitrageOpportunity)
}

// Detector evaluates all pairwise cross-venue spreads once per interval
// tick, independent of the collection interval.
type Detector struct {
	store    SnapshotReader
	sink     Sink
	interval time.Duration

	thresholdPct decimal.Decimal
	slippagePct  decimal.Decimal
	notionalUSD  decimal.Decimal
	minProfitUSD decimal.Decimal
	// feePct maps venue id to taker fee; venues missing from the map trade
	// fee-free.
	feePct map[string]decimal.Decimal

	logger *slog.Logger
	now    func() time.Time
}

// Config configures a Detector. Percentage fields are percent of trade
// value.
type Config struct {
	Store        SnapshotReader
	Sink         Sink
	Interval     time.Duration
	ThresholdPct decimal.Decimal
	SlippagePct  decimal.Decimal
	NotionalUSD  decimal.Decimal
	MinProfitUSD decimal.Decimal
	FeePct       map[string]decimal.Decimal
	Logger       *slog.Logger
}

// New creates a Detector.
func New(cfg Config) *Detector {
	return &Detector{
		store:        cfg.Store,
		sink:         cfg.Sink,
		interval:     cfg.Interval,
		thresholdPct: cfg.ThresholdPct,
		slippagePct:  cfg.SlippagePct,
		notionalUSD:  cfg.NotionalUSD,
		minProfitUSD: cfg.MinProfitUSD,
		feePct:       cfg.FeePct,
		logger:       cfg.Logger.With(slog.String("component", "detector")),
		now:          time.Now,
	}
}

// Run executes detection cycles until ctx is cancelled. Cycles of this loop
// are strictly sequential; a long cycle delays the next tick rather than
// piling up.
func (d *Detector) Run(ctx context.Context) error {
	d.logger.Info("detection loop started",
		slog.Duration("interval", d.interval),
		slog.String("threshold_pct", d.thresholdPct.String()),
		slog.String("min_profit_usd", d.minProfitUSD.String()),
	)
	defer d.logger.Info("detection loop stopped")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.RunCycle(ctx)
		}
	}
}

// RunCycle reads the current snapshot and emits every qualifying
// opportunity to the sink. It returns the emitted opportunities for
// observability.
func (d *Detector) RunCycle(ctx context.Context) []domain.ArbitrageOpportunity {
	snap := d.store.Snapshot(ctx)
	if len(snap) == 0 {
		return nil
	}

	var emitted []domain.ArbitrageOpportunity
	for pair, quotes := range groupByPair(snap) {
		emitted = append(emitted, d.evaluatePair(ctx, pair, quotes)...)
	}

	if len(emitted) > 0 {
		d.logger.Info("detection cycle emitted opportunities",
			slog.Int("count", len(emitted)),
		)
	}
	return emitted
}

// evaluatePair computes the spread for every ordered pair of distinct
// venues holding a quote for the same token pair. Venues are visited in
// sorted order so cycle output ordering is deterministic.
func (d *Detector) evaluatePair(ctx context.Context, pair domain.TokenPair, quotes []domain.PriceQuote) []domain.ArbitrageOpportunity {
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].VenueID < quotes[j].VenueID })

	var opps []domain.ArbitrageOpportunity
	for _, buy := range quotes {
		if !buy.Price.IsPositive() {
			continue
		}
		for _, sell := range quotes {
			if sell.VenueID == buy.VenueID {
				continue
			}

			spread := ComputeSpread(buy.Price, sell.Price, d.notionalUSD, Costs{
				BuyFeePct:   d.feePct[buy.VenueID],
				SellFeePct:  d.feePct[sell.VenueID],
				SlippagePct: d.slippagePct,
			})
			if !spread.Qualifies(d.thresholdPct, d.minProfitUSD) {
				continue
			}

			opp := domain.ArbitrageOpportunity{
				ID:             uuid.NewString(),
				Pair:           pair,
				BuyVenue:       buy.VenueID,
				SellVenue:      sell.VenueID,
				BuyPrice:       buy.Price,
				SellPrice:      sell.Price,
				GrossSpreadPct: spread.GrossPct,
				NetSpreadPct:   spread.NetPct,
				EstProfitUSD:   spread.ProfitUSD,
				DetectedAt:     d.now().UTC(),
			}
			d.logger.Debug("opportunity detected",
				slog.String("key", opp.Key()),
				slog.String("net_spread_pct", opp.NetSpreadPct.String()),
				slog.String("est_profit_usd", opp.EstProfitUSD.String()),
			)

			d.sink.Offer(ctx, opp)
			opps = append(opps, opp)
		}
	}
	return opps
}
