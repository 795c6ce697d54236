// Package config defines the top-level configuration for the arbitrage
// monitor and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBBOT_* environment variables.
type Config struct {
	Pairs     []string        `toml:"pairs"`
	Venues    []VenueConfig   `toml:"venues"`
	Collector CollectorConfig `toml:"collector"`
	Detector  DetectorConfig  `toml:"detector"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
	Notify    NotifyConfig    `toml:"notify"`
	LogLevel  string          `toml:"log_level"`
}

// VenueConfig describes one DEX or CEX price source and how to reach it.
type VenueConfig struct {
	ID   string `toml:"id"`
	Kind string `toml:"kind"` // "dex" or "cex"
	Name string `toml:"name"`
	// Type selects the adapter implementation: "subgraph", "binance",
	// "okx" or "uniswap_v2".
	Type string `toml:"type"`
	// FeePct is the venue's taker fee as a percentage of trade value.
	FeePct float64 `toml:"fee_pct"`
	// Endpoint is the adapter's network target: subgraph GraphQL URL, REST
	// base URL, websocket URL, or Ethereum JSON-RPC URL depending on Type.
	Endpoint string `toml:"endpoint"`
	// Pools configures on-chain pool contracts for uniswap_v2 venues.
	Pools []PoolConfig `toml:"pools"`
}

// PoolConfig maps one monitored pair to an on-chain pool contract.
type PoolConfig struct {
	Pair          string `toml:"pair"`
	Address       string `toml:"address"`
	BaseDecimals  int    `toml:"base_decimals"`
	QuoteDecimals int    `toml:"quote_decimals"`
	// BaseIsToken0 records which side of the pool holds the base token.
	BaseIsToken0 bool `toml:"base_is_token0"`
}

// CollectorConfig holds price-collection loop parameters.
type CollectorConfig struct {
	// Interval is the nominal spacing between collection cycles.
	Interval duration `toml:"interval"`
	// CallTimeout bounds every single venue adapter call.
	CallTimeout duration `toml:"call_timeout"`
	// HistoryQueueSize bounds the buffered durable-history write queue.
	HistoryQueueSize int `toml:"history_queue_size"`
}

// DetectorConfig holds arbitrage-detection loop parameters. Percentage
// fields are percent of trade value ("0.5" means 0.5%).
type DetectorConfig struct {
	Interval duration `toml:"interval"`
	// ThresholdPct is the minimum net spread that qualifies.
	ThresholdPct float64 `toml:"threshold_pct"`
	// SlippagePct is the slippage tolerance subtracted from the raw spread.
	SlippagePct float64 `toml:"slippage_pct"`
	// TradeNotionalUSD is the notional used to convert spread to profit.
	TradeNotionalUSD float64 `toml:"trade_notional_usd"`
	// MinProfitUSD is the profit floor; spreads whose notional profit falls
	// below it never alert.
	MinProfitUSD float64 `toml:"min_profit_usd"`
	// NotificationCooldown is the minimum time between repeated alerts for
	// the same (pair, buy venue, sell venue) key.
	NotificationCooldown duration `toml:"notification_cooldown"`
}

// RedisConfig holds fast-tier connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds durable-tier connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds cold-storage archival parameters. The archiver is optional;
// when Enabled is false old rows are kept in Postgres untouched.
type S3Config struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	RetentionDays  int      `toml:"retention_days"`
	Interval       duration `toml:"interval"`
}

// NotifyConfig holds alert channel credentials.
type NotifyConfig struct {
	SlackWebhookURL   string   `toml:"slack_webhook_url"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "5s" or "1m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// validVenueTypes enumerates the accepted adapter types.
var validVenueTypes = map[string]bool{
	"subgraph":   true,
	"binance":    true,
	"okx":        true,
	"uniswap_v2": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Pairs: []string{"ETH/USDT"},
		Collector: CollectorConfig{
			Interval:         duration{10 * time.Second},
			CallTimeout:      duration{5 * time.Second},
			HistoryQueueSize: 1024,
		},
		Detector: DetectorConfig{
			Interval:             duration{15 * time.Second},
			ThresholdPct:         0.5,
			SlippagePct:          0.1,
			TradeNotionalUSD:     1000,
			MinProfitUSD:         5,
			NotificationCooldown: duration{5 * time.Minute},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:        false,
			Region:         "us-east-1",
			Bucket:         "arbbot-archive",
			UseSSL:         false,
			ForcePathStyle: true,
			RetentionDays:  30,
			Interval:       duration{24 * time.Hour},
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity"},
		},
		LogLevel: "info",
	}
}

// MonitoredPairs parses Config.Pairs into domain token pairs.
func (c *Config) MonitoredPairs() ([]domain.TokenPair, error) {
	pairs := make([]domain.TokenPair, 0, len(c.Pairs))
	for _, raw := range c.Pairs {
		p, err := domain.ParsePair(raw)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found. A non-nil error is fatal at startup;
// the process must not begin looping on a broken configuration.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Pairs
	if len(c.Pairs) == 0 {
		errs = append(errs, "pairs: at least one token pair must be configured")
	}
	for _, raw := range c.Pairs {
		if _, err := domain.ParsePair(raw); err != nil {
			errs = append(errs, fmt.Sprintf("pairs: %v", err))
		}
	}

	// Venues
	if len(c.Venues) < 2 {
		errs = append(errs, "venues: at least two venues are required to detect a spread")
	}
	seen := map[string]bool{}
	for i, v := range c.Venues {
		where := fmt.Sprintf("venues[%d]", i)
		if v.ID == "" {
			errs = append(errs, where+": id must not be empty")
		} else if seen[v.ID] {
			errs = append(errs, fmt.Sprintf("%s: duplicate id %q", where, v.ID))
		}
		seen[v.ID] = true
		if v.Kind != string(domain.VenueKindDEX) && v.Kind != string(domain.VenueKindCEX) {
			errs = append(errs, fmt.Sprintf("%s: kind must be \"dex\" or \"cex\", got %q", where, v.Kind))
		}
		if !validVenueTypes[v.Type] {
			errs = append(errs, fmt.Sprintf("%s: unknown type %q (valid: subgraph, binance, okx, uniswap_v2)", where, v.Type))
		}
		if v.FeePct < 0 {
			errs = append(errs, where+": fee_pct must not be negative")
		}
		switch v.Type {
		case "subgraph", "okx", "uniswap_v2":
			if v.Endpoint == "" {
				errs = append(errs, fmt.Sprintf("%s: endpoint is required for type %q", where, v.Type))
			}
		}
		if v.Type == "uniswap_v2" && len(v.Pools) == 0 {
			errs = append(errs, where+": at least one pool is required for type \"uniswap_v2\"")
		}
		for j, p := range v.Pools {
			if p.Address == "" {
				errs = append(errs, fmt.Sprintf("%s.pools[%d]: address must not be empty", where, j))
			}
			if _, err := domain.ParsePair(p.Pair); err != nil {
				errs = append(errs, fmt.Sprintf("%s.pools[%d]: %v", where, j, err))
			}
			if p.BaseDecimals <= 0 || p.QuoteDecimals <= 0 {
				errs = append(errs, fmt.Sprintf("%s.pools[%d]: token decimals must be positive", where, j))
			}
		}
	}

	// Collector
	if c.Collector.Interval.Duration <= 0 {
		errs = append(errs, "collector: interval must be positive")
	}
	if c.Collector.CallTimeout.Duration <= 0 {
		errs = append(errs, "collector: call_timeout must be positive")
	}
	if c.Collector.HistoryQueueSize < 1 {
		errs = append(errs, "collector: history_queue_size must be >= 1")
	}

	// Detector
	if c.Detector.Interval.Duration <= 0 {
		errs = append(errs, "detector: interval must be positive")
	}
	if c.Detector.ThresholdPct <= 0 {
		errs = append(errs, "detector: threshold_pct must be > 0")
	}
	if c.Detector.SlippagePct < 0 {
		errs = append(errs, "detector: slippage_pct must not be negative")
	}
	if c.Detector.TradeNotionalUSD <= 0 {
		errs = append(errs, "detector: trade_notional_usd must be > 0")
	}
	if c.Detector.MinProfitUSD < 0 {
		errs = append(errs, "detector: min_profit_usd must not be negative")
	}
	if c.Detector.NotificationCooldown.Duration <= 0 {
		errs = append(errs, "detector: notification_cooldown must be positive")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1 when enabled")
		}
		if c.S3.Interval.Duration <= 0 {
			errs = append(errs, "s3: interval must be positive when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
