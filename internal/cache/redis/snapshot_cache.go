package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/nice-okura/dex-arbitrage-bot/internal/domain"
)

// keySetKey is the Redis set tracking every (venue, pair) that has a quote,
// so Snapshot can enumerate entries without a SCAN.
const keySetKey = "quote:keys"

// SnapshotCache implements domain.SnapshotCache using Redis hashes. Each
// (venue, pair) entry is a hash at "quote:{venue}:{BASE/QUOTE}"; hash writes
// are atomic per key, so a snapshot read never observes a half-written
// entry.
type SnapshotCache struct {
	rdb *redis.Client
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

func quoteKey(k domain.QuoteKey) string {
	return "quote:" + k.VenueID + ":" + k.Pair.String()
}

// PutQuote upserts the snapshot entry for the quote's (venue, pair) and
// registers the key in the enumeration set.
func (sc *SnapshotCache) PutQuote(ctx context.Context, q domain.PriceQuote) error {
	key := quoteKey(q.Key())
	fields := map[string]interface{}{
		"venue":     q.VenueID,
		"base":      q.Pair.Base,
		"quote":     q.Pair.Quote,
		"price":     q.Price.String(),
		"liquidity": q.Liquidity.String(),
		"pool_id":   q.PoolID,
		"ts":        strconv.FormatInt(q.ObservedAt.UnixNano(), 10),
	}

	pipe := sc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.SAdd(ctx, keySetKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: put quote %s/%s: %w", q.VenueID, q.Pair, err)
	}
	return nil
}

// Snapshot returns the full latest-quote view. Keys whose hash has vanished
// between the set read and the pipelined fetch are silently skipped.
func (sc *SnapshotCache) Snapshot(ctx context.Context) (map[domain.QuoteKey]domain.PriceQuote, error) {
	keys, err := sc.rdb.SMembers(ctx, keySetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: snapshot keys: %w", err)
	}
	if len(keys) == 0 {
		return map[domain.QuoteKey]domain.PriceQuote{}, nil
	}

	pipe := sc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(keys))
	for _, k := range keys {
		cmds[k] = pipe.HGetAll(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: snapshot pipeline: %w", err)
	}

	snap := make(map[domain.QuoteKey]domain.PriceQuote, len(keys))
	for k, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		q, err := parseQuote(k, vals)
		if err != nil {
			continue
		}
		snap[q.Key()] = q
	}
	return snap, nil
}

// parseQuote reconstructs a PriceQuote from its hash fields. The venue and
// pair come from the fields, not the key, so venue ids may contain any
// character including ':'.
func parseQuote(key string, vals map[string]string) (domain.PriceQuote, error) {
	venueID := vals["venue"]
	base, quote := vals["base"], vals["quote"]
	if venueID == "" || base == "" || quote == "" {
		return domain.PriceQuote{}, fmt.Errorf("redis: incomplete quote entry %q", key)
	}

	price, err := decimal.NewFromString(vals["price"])
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: parse price for %q: %w", key, err)
	}
	liquidity := decimal.Zero
	if s := vals["liquidity"]; s != "" {
		if l, err := decimal.NewFromString(s); err == nil {
			liquidity = l
		}
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: parse ts for %q: %w", key, err)
	}

	return domain.PriceQuote{
		VenueID:    venueID,
		Pair:       domain.TokenPair{Base: base, Quote: quote},
		Price:      price,
		Liquidity:  liquidity,
		PoolID:     vals["pool_id"],
		ObservedAt: time.Unix(0, tsNano),
	}, nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
