// Package okx implements a CEX venue adapter for the OKX public v5 tickers
// websocket channel. The read loop keeps the latest tick per instrument in
// process memory; FetchQuote serves from that cache and fails when the tick
// is absent or too stale.
package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
	"github.com/nice-okura/dex-arbitrage-bot/internal/venue"
)

// DefaultWSURL is the OKX public websocket endpoint.
const DefaultWSURL = "wss://ws.okx.com:8443/ws/v5/public"

// defaultMaxAge is how old a cached tick may be before FetchQuote refuses to
// serve it.
const defaultMaxAge = 30 * time.Second

// reconnectDelay spaces reconnect attempts after a dropped connection.
const reconnectDelay = 3 * time.Second

type tick struct {
	price      decimal.Decimal
	observedAt time.Time
}

// Adapter subscribes to tickers for the configured pairs and answers
// FetchQuote from the latest received tick.
type Adapter struct {
	venueID string
	wsURL   string
	pairs   []domain.TokenPair
	maxAge  time.Duration
	logger  *slog.Logger

	mu    sync.RWMutex
	ticks map[string]tick // keyed by instId, e.g. "ETH-USDT"
}

// New creates an OKX adapter for the given pairs. An empty wsURL selects the
// public endpoint. Start must be running before FetchQuote can succeed.
func New(venueID, wsURL string, pairs []domain.TokenPair, logger *slog.Logger) *Adapter {
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	return &Adapter{
		venueID: venueID,
		wsURL:   wsURL,
		pairs:   pairs,
		maxAge:  defaultMaxAge,
		logger:  logger.With(slog.String("component", "okx"), slog.String("venue", venueID)),
		ticks:   make(map[string]tick),
	}
}

// VenueID returns the venue this adapter serves.
func (a *Adapter) VenueID() string { return a.venueID }

func instID(pair domain.TokenPair) string {
	return pair.Base + "-" + pair.Quote
}

// FetchQuote serves the latest cached tick for the pair.
func (a *Adapter) FetchQuote(_ context.Context, pair domain.TokenPair) (domain.PriceQuote, error) {
	id := instID(pair)

	a.mu.RLock()
	t, ok := a.ticks[id]
	a.mu.RUnlock()

	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("okx: no tick for %s yet: %w", id, domain.ErrNotFound)
	}
	if age := time.Since(t.observedAt); age > a.maxAge {
		return domain.PriceQuote{}, fmt.Errorf("okx: tick for %s is %s old: %w", id, age.Round(time.Second), domain.ErrStaleQuote)
	}

	return domain.PriceQuote{
		VenueID:    a.venueID,
		Pair:       pair,
		Price:      t.price,
		ObservedAt: t.observedAt,
	}, nil
}

// Start runs the websocket read loop with reconnects until ctx is cancelled.
// It always returns ctx.Err() at shutdown; connection failures are logged
// and retried, never surfaced.
func (a *Adapter) Start(ctx context.Context) error {
	a.logger.Info("ticker stream starting", slog.String("url", a.wsURL))
	defer a.logger.Info("ticker stream stopped")

	for {
		if err := a.runConn(ctx); err != nil && ctx.Err() == nil {
			a.logger.Warn("ticker stream dropped, reconnecting",
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

// subscribeRequest is the OKX v5 subscribe envelope.
type subscribeRequest struct {
	Op   string              `json:"op"`
	Args []map[string]string `json:"args"`
}

// tickerMessage is the shape of ticker pushes on the public channel.
type tickerMessage struct {
	Arg struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data []struct {
		InstID string `json:"instId"`
		Last   string `json:"last"`
		TS     string `json:"ts"` // unix milliseconds
	} `json:"data"`
}

// runConn dials once, subscribes, and reads until the connection drops or
// ctx is cancelled.
func (a *Adapter) runConn(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, a.wsURL, nil)
	if err != nil {
		return fmt.Errorf("okx: dial: %w", err)
	}
	defer conn.Close()

	args := make([]map[string]string, 0, len(a.pairs))
	for _, p := range a.pairs {
		args = append(args, map[string]string{
			"channel": "tickers",
			"instId":  instID(p),
		})
	}
	if err := conn.WriteJSON(subscribeRequest{Op: "subscribe", Args: args}); err != nil {
		return fmt.Errorf("okx: subscribe: %w", err)
	}
	a.logger.Info("subscribed to tickers", slog.Int("instruments", len(args)))

	// Unblock the blocking ReadMessage on shutdown.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("okx: read: %w", err)
		}
		a.handleMessage(data)
	}
}

func (a *Adapter) handleMessage(data []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return // subscription acks and pings are not ticker pushes
	}
	if msg.Arg.Channel != "tickers" {
		return
	}
	for _, d := range msg.Data {
		price, err := decimal.NewFromString(d.Last)
		if err != nil || !price.IsPositive() {
			continue
		}
		observedAt := time.Now().UTC()
		if ms, err := strconv.ParseInt(d.TS, 10, 64); err == nil {
			observedAt = time.UnixMilli(ms).UTC()
		}

		a.mu.Lock()
		a.ticks[d.InstID] = tick{price: price, observedAt: observedAt}
		a.mu.Unlock()
	}
}

// Compile-time interface check.
var _ venue.Adapter = (*Adapter)(nil)
