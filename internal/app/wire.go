package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/nice-okura/dex-arbitrage-bot/internal/blob/s3"
	"github.com/nice-okura/dex-arbitrage-bot/internal/cache/memory"
	"github.com/nice-okura/dex-arbitrage-bot/internal/cache/redis"
	"github.com/nice-okura/dex-arbitrage-bot/internal/config"
	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
	"github.com/nice-okura/dex-arbitrage-bot/internal/notify"
	"github.com/nice-okura/dex-arbitrage-bot/internal/pricestore"
	"github.com/nice-okura/dex-arbitrage-bot/internal/store/postgres"
	"github.com/nice-okura/dex-arbitrage-bot/internal/venue"
	"github.com/nice-okura/dex-arbitrage-bot/internal/venue/binance"
	"github.com/nice-okura/dex-arbitrage-bot/internal/venue/okx"
	"github.com/nice-okura/dex-arbitrage-bot/internal/venue/subgraph"
	"github.com/nice-okura/dex-arbitrage-bot/internal/venue/uniswapv2"
)

// Dependencies bundles everything the application loops need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	PriceStore *pricestore.Store
	Registry   *venue.Registry
	Pairs      []domain.TokenPair

	// Opps exposes the durable opportunity log for reads (startup recap,
	// archival); writes go through the price store.
	Opps domain.OpportunityStore

	Notifier *notify.Notifier
	Gate     *notify.Gate

	// Archiver is nil when cold-storage archival is disabled.
	Archiver *s3blob.Archiver

	// Starters are long-running adapter loops (streaming venues) that must
	// run alongside the collector.
	Starters []func(ctx context.Context) error
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function to be
// called on shutdown.
//
// Postgres is required: the durable tier is the system of record and the
// process must not run without it. Redis is not: a failed connection logs a
// warning and the price store starts on its in-memory fallback.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	pairs, err := cfg.MonitoredPairs()
	if err != nil {
		return nil, nil, fmt.Errorf("wire: pairs: %w", err)
	}
	deps.Pairs = pairs

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	historyStore := postgres.NewHistoryStore(pool)
	oppStore := postgres.NewOpportunityStore(pool)
	deps.Opps = oppStore

	// --- Redis (optional fast tier) ---
	var primary domain.SnapshotCache
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		logger.Warn("wire: redis unavailable, price store starts on in-memory fallback",
			slog.String("addr", cfg.Redis.Addr),
			slog.String("error", err.Error()),
		)
	} else {
		closers = append(closers, func() { _ = redisClient.Close() })
		primary = redis.NewSnapshotCache(redisClient)
	}

	deps.PriceStore = pricestore.New(pricestore.Options{
		Primary:          primary,
		Fallback:         memory.NewSnapshotCache(),
		History:          historyStore,
		Opps:             oppStore,
		HistoryQueueSize: cfg.Collector.HistoryQueueSize,
		Logger:           logger,
	})

	// --- Venue adapters ---
	registry, starters, venueClosers, err := buildVenues(cfg, pairs, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: venues: %w", err)
	}
	closers = append(closers, venueClosers...)
	deps.Registry = registry
	deps.Starters = starters

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.SlackWebhookURL != "" {
		senders = append(senders, notify.NewSlackSender(cfg.Notify.SlackWebhookURL))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	deps.Gate = notify.NewGate(
		deps.Notifier,
		deps.PriceStore,
		cfg.Detector.NotificationCooldown.Duration,
		logger,
	)

	// --- S3 cold storage (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			historyStore,
			oppStore,
			time.Duration(cfg.S3.RetentionDays)*24*time.Hour,
			cfg.S3.Interval.Duration,
			logger,
		)
	}

	return deps, cleanup, nil
}

// buildVenues constructs one adapter per configured venue and registers it.
// Streaming adapters contribute a starter; connection-holding adapters
// contribute a closer.
func buildVenues(
	cfg *config.Config,
	pairs []domain.TokenPair,
	logger *slog.Logger,
) (*venue.Registry, []func(ctx context.Context) error, []func(), error) {
	registry := venue.NewRegistry()
	var starters []func(ctx context.Context) error
	var closers []func()

	for _, vc := range cfg.Venues {
		v := domain.Venue{
			ID:   vc.ID,
			Kind: domain.VenueKind(vc.Kind),
			Name: vc.Name,
		}

		var adapter venue.Adapter
		switch vc.Type {
		case "subgraph":
			adapter = subgraph.New(vc.ID, vc.Endpoint)
		case "binance":
			adapter = binance.New(vc.ID, vc.Endpoint)
		case "okx":
			okxAdapter := okx.New(vc.ID, vc.Endpoint, pairs, logger)
			starters = append(starters, okxAdapter.Start)
			adapter = okxAdapter
		case "uniswap_v2":
			pools := make(map[domain.TokenPair]uniswapv2.Pool, len(vc.Pools))
			for _, pc := range vc.Pools {
				pair, err := domain.ParsePair(pc.Pair)
				if err != nil {
					return nil, nil, nil, fmt.Errorf("venue %s: %w", vc.ID, err)
				}
				pools[pair] = uniswapv2.Pool{
					Address:       common.HexToAddress(pc.Address),
					BaseDecimals:  int32(pc.BaseDecimals),
					QuoteDecimals: int32(pc.QuoteDecimals),
					BaseIsToken0:  pc.BaseIsToken0,
				}
			}
			uniAdapter, err := uniswapv2.New(vc.ID, vc.Endpoint, pools)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("venue %s: %w", vc.ID, err)
			}
			closers = append(closers, uniAdapter.Close)
			adapter = uniAdapter
		default:
			return nil, nil, nil, fmt.Errorf("venue %s: unknown type %q", vc.ID, vc.Type)
		}

		if err := registry.Register(v, adapter); err != nil {
			return nil, nil, nil, err
		}
	}

	return registry, starters, closers, nil
}
