// Package cache memoises query results in Redis. Keys combine the open
// index's fingerprint with the normalised query, so a rebuilt index never
// serves results computed against its predecessor.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/redis"
)

const keyPrefix = "bsbi:query:"

// Store is the key/value subset of *pkgredis.Client used by the cache.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached doc ids for plan. Store failures count as misses.
func (c *QueryCache) Get(ctx context.Context, fingerprint string, plan *parser.QueryPlan) ([]uint32, bool) {
	key := BuildKey(fingerprint, plan)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var ids []uint32
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.ObserveCache(true)
	return ids, true
}

func (c *QueryCache) Set(ctx context.Context, fingerprint string, plan *parser.QueryPlan, ids []uint32) {
	key := BuildKey(fingerprint, plan)
	if ids == nil {
		ids = []uint32{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns cached ids or runs compute once per key, sharing the
// result with concurrent callers. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	fingerprint string,
	plan *parser.QueryPlan,
	compute func() ([]uint32, error),
) ([]uint32, bool, error) {
	if ids, ok := c.Get(ctx, fingerprint, plan); ok {
		return ids, true, nil
	}
	key := BuildKey(fingerprint, plan)
	val, err, _ := c.group.Do(key, func() (any, error) {
		ids, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, fingerprint, plan, ids)
		return ids, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]uint32), false, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	c.metrics.ObserveCache(false)
}

// BuildKey derives the Redis key for plan against the index identified by
// fingerprint.
func BuildKey(fingerprint string, plan *parser.QueryPlan) string {
	hash := sha256.Sum256([]byte(plan.Normalized()))
	return fmt.Sprintf("%s%s:%x", keyPrefix, fingerprint, hash[:16])
}
