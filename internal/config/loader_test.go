package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfigFile(t, `
pairs = ["ETH/USDT", "WBTC/USDT"]
log_level = "debug"

[collector]
interval = "30s"

[[venues]]
id = "uniswap"
kind = "dex"
name = "Uniswap"
type = "subgraph"
fee_pct = 0.3
endpoint = "https://example.com/subgraph"

[[venues]]
id = "binance"
kind = "cex"
name = "Binance"
type = "binance"
fee_pct = 0.1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"ETH/USDT", "WBTC/USDT"}, cfg.Pairs)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Collector.Interval.Duration)
	// Untouched fields keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Collector.CallTimeout.Duration)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	require.Len(t, cfg.Venues, 2)
	assert.Equal(t, "subgraph", cfg.Venues[0].Type)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARBBOT_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("ARBBOT_POSTGRES_PASSWORD", "s3cret")
	t.Setenv("ARBBOT_DETECTOR_THRESHOLD_PCT", "1.25")
	t.Setenv("ARBBOT_DETECTOR_NOTIFICATION_COOLDOWN", "10m")
	t.Setenv("ARBBOT_NOTIFY_EVENTS", "opportunity, degraded")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, "s3cret", cfg.Postgres.Password)
	assert.Equal(t, 1.25, cfg.Detector.ThresholdPct)
	assert.Equal(t, 10*time.Minute, cfg.Detector.NotificationCooldown.Duration)
	assert.Equal(t, []string{"opportunity", "degraded"}, cfg.Notify.Events)
}

func TestEnvOverridesIgnoreUnparsable(t *testing.T) {
	t.Setenv("ARBBOT_DETECTOR_THRESHOLD_PCT", "not-a-number")
	t.Setenv("ARBBOT_COLLECTOR_INTERVAL", "eventually")

	cfg := Defaults()
	before := cfg.Detector.ThresholdPct
	applyEnvOverrides(&cfg)

	assert.Equal(t, before, cfg.Detector.ThresholdPct)
	assert.Equal(t, Defaults().Collector.Interval.Duration, cfg.Collector.Interval.Duration)
}
