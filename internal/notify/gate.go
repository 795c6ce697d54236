package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

// opportunityEvent is the event type the gate emits through the Notifier's
// event filter.
const opportunityEvent = "opportunity"

// sendTimeout bounds the outbound alert call so a degraded channel cannot
// stall the detection loop.
const sendTimeout = 10 * time.Second

// OpportunityRecorder is the slice of the price store the gate needs.
type OpportunityRecorder interface {
	RecordOpportunity(ctx context.Context, opp domain.ArbitrageOpportunity)
}

// Gate enforces a per-opportunity-key cooldown in front of the Notifier so
// the same recurring spread does not spam the alert channel. Every offered
// opportunity is written to the durable log; suppression applies only to the
// outbound alert.
type Gate struct {
	notifier *Notifier
	recorder OpportunityRecorder
	window   time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewGate creates a Gate with the given cooldown window.
func NewGate(notifier *Notifier, recorder OpportunityRecorder, window time.Duration, logger *slog.Logger) *Gate {
	return &Gate{
		notifier: notifier,
		recorder: recorder,
		window:   window,
		logger:   logger.With(slog.String("component", "notification_gate")),
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// Offer handles one qualifying opportunity: log it durably, then alert
// unless the key is still cooling down. The cooldown entry updates before
// the send and is not rolled back on send failure, so a degraded alert
// channel is not hammered every cycle.
func (g *Gate) Offer(ctx context.Context, opp domain.ArbitrageOpportunity) {
	g.recorder.RecordOpportunity(ctx, opp)

	key := opp.Key()
	now := g.now()

	g.mu.Lock()
	last, seen := g.lastSent[key]
	if seen && now.Sub(last) < g.window {
		g.mu.Unlock()
		g.logger.Debug("alert suppressed by cooldown",
			slog.String("key", key),
			slog.Duration("remaining", g.window-now.Sub(last)),
		)
		return
	}
	g.lastSent[key] = now
	g.mu.Unlock()

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	title := fmt.Sprintf("Arbitrage opportunity: %s", opp.Pair)
	message := fmt.Sprintf(
		"Buy on %s at %s, sell on %s at %s\nNet spread: %s%% (gross %s%%)\nEstimated profit: $%s",
		opp.BuyVenue, opp.BuyPrice.StringFixed(6),
		opp.SellVenue, opp.SellPrice.StringFixed(6),
		opp.NetSpreadPct.StringFixed(2), opp.GrossSpreadPct.StringFixed(2),
		opp.EstProfitUSD.StringFixed(2),
	)

	if err := g.notifier.Notify(sendCtx, opportunityEvent, title, message); err != nil {
		// The cooldown entry stands even when the send fails.
		g.logger.Error("alert delivery failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
