package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache wraps a Redis client for the fund/tech key layout in spec.md §6.
// A Cache built with an empty addr (see NewCache), or one built around
// an unreachable client, degrades silently to a direct-fetch miss on every Get, per the §5 backpressure
// note that Redis absence must never fail a run.
type Cache struct {
	client *redis.Client
	log    *zap.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache builds a Cache around addr/db. addr == "" returns a Cache
// whose Get always misses and whose Set is a no-op, so callers can wire
// it unconditionally without a nil check at every call site.
func NewCache(addr string, db int, log *zap.Logger) *Cache {
	if addr == "" {
		return &Cache{log: log}
	}
	return &Cache{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		log:    log,
	}
}

// Key layouts from spec.md §6.
func FundamentalsKey(symbol string, date time.Time) string {
	return fmt.Sprintf("fund:%s:%s", symbol, date.Format("2006-01-02"))
}

func IndicatorsKey(symbol string, date time.Time, period string) string {
	return fmt.Sprintf("tech:%s:%s:%s", symbol, date.Format("2006-01-02"), period)
}

// Get pipelines a GET and unmarshals into dst on a hit. It returns
// (false, nil) on a miss or when the cache is unavailable/disabled —
// callers should never distinguish "miss" from "degraded" since the
// direct-fetch fallback is identical either way.
func (c *Cache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	if c.client == nil {
		return false, nil
	}

	pipe := c.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		if err == redis.Nil {
			c.misses.Add(1)
			return false, nil
		}
		c.warn("cache get failed, degrading to direct fetch", key, err)
		c.misses.Add(1)
		return false, nil
	}

	raw, err := getCmd.Bytes()
	if err != nil {
		c.misses.Add(1)
		if err == redis.Nil {
			return false, nil
		}
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("unmarshal cached value for %s: %w", key, err)
	}
	c.hits.Add(1)
	return true, nil
}

// Set pipelines a SETEX of v under key with the given TTL. Failures are
// logged and swallowed: a cache write failure must never fail the
// collector call it's attached to.
func (c *Cache) Set(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.warn("cache marshal failed", key, err)
		return
	}

	pipe := c.client.Pipeline()
	pipe.SetEx(ctx, key, data, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.warn("cache set failed", key, err)
	}
}

// Enabled reports whether this Cache is backed by a real Redis client.
func (c *Cache) Enabled() bool { return c.client != nil }

// HitRate returns the fraction of Get calls that were cache hits since
// this Cache was constructed, for operator-facing inspection. Returns 0
// when no lookups have happened yet.
func (c *Cache) HitRate() float64 {
	hits, misses := c.hits.Load(), c.misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Close releases the underlying client, if any.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) warn(msg, key string, err error) {
	if c.log != nil {
		c.log.Warn(msg, zap.String("key", key), zap.Error(err))
	}
}
