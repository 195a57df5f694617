// Package cache implements the two-tier context cache: an in-process LRU
// fast tier in front of a networked Redis shared tier. Reads check the fast
// tier first and promote shared-tier hits; writes go to both tiers
// best-effort. A circuit breaker guards every shared-tier operation so a
// failing Redis degrades the engine to fast-tier-only instead of stalling it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"context-engine/internal/circuitbreaker"
	"context-engine/internal/common/logging"
	"context-engine/internal/models"
	"context-engine/internal/redis"
)

// KeyPrefix is the namespace every cache key lives under. External tooling
// (pattern-based bulk invalidation) depends on this exact format.
const KeyPrefix = "context:"

// Key builds the cache key for a customer/agent/conversation triple:
// context:<customerId>:<agentType>[:<conversationId>].
func Key(customerID string, agentType models.AgentType, conversationID string) string {
	key := fmt.Sprintf("%s%s:%s", KeyPrefix, customerID, agentType)
	if conversationID != "" {
		key += ":" + conversationID
	}
	return key
}

// SharedTier is the networked key/value service backing the second cache
// tier. *redis.Client satisfies it; tests substitute fakes.
type SharedTier interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	Exists(ctx context.Context, key string) (bool, error)
	Health() error
}

// Options configures a ContextCache.
type Options struct {
	FastCapacity  int
	FastTTL       time.Duration
	SharedTTL     time.Duration
	WarmBatchSize int
}

// ContextCache is the two-tier cache for enriched context bundles.
type ContextCache struct {
	fast      *FastCache
	shared    SharedTier
	breaker   *circuitbreaker.Breaker
	sharedTTL time.Duration
	warmBatch int
	stats     *Stats
	logger    logging.Logger
}

// New creates a ContextCache. A nil shared tier disables the second tier
// entirely; the cache then runs fast-tier-only.
func New(opts Options, shared SharedTier, logger logging.Logger) *ContextCache {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if opts.SharedTTL <= 0 {
		opts.SharedTTL = 30 * time.Minute
	}
	if opts.WarmBatchSize <= 0 {
		opts.WarmBatchSize = 10
	}

	c := &ContextCache{
		fast:      NewFastCache(opts.FastCapacity, opts.FastTTL),
		shared:    shared,
		sharedTTL: opts.SharedTTL,
		warmBatch: opts.WarmBatchSize,
		stats:     &Stats{},
		logger:    logger,
	}
	c.fast.SetEvictionHook(func(string) { c.stats.recordEviction() })

	if shared != nil {
		c.breaker = circuitbreaker.New("shared-cache-tier", circuitbreaker.CacheTierConfig, logger)
	}

	return c
}

// Get looks a key up in the fast tier, then the shared tier. A shared-tier
// hit is promoted into the fast tier before returning. The returned context
// is flagged as a cache hit; the stored copy is never mutated.
func (c *ContextCache) Get(ctx context.Context, key string) (*models.EnrichedContext, bool) {
	c.stats.recordGet()

	if val, found := c.fast.Get(key); found {
		if ec, ok := val.(*models.EnrichedContext); ok {
			c.stats.recordFastHit()
			return ec.WithCacheHit(), true
		}
	}
	c.stats.recordFastMiss()

	if c.shared == nil {
		return nil, false
	}

	var payload string
	err := c.breaker.Execute(func() error {
		var getErr error
		payload, getErr = c.shared.Get(ctx, key)
		if redis.IsNotFound(getErr) {
			// A miss is a normal outcome, not a tier failure.
			return nil
		}
		return getErr
	})
	if err != nil {
		c.logger.Warn("Shared cache tier read failed",
			logging.String("key", key),
			logging.Err(err),
		)
		c.stats.recordSharedMiss()
		return nil, false
	}
	if payload == "" {
		c.stats.recordSharedMiss()
		return nil, false
	}

	var ec models.EnrichedContext
	if err := json.Unmarshal([]byte(payload), &ec); err != nil {
		c.logger.Warn("Discarding undecodable shared cache entry",
			logging.String("key", key),
			logging.Err(err),
		)
		c.stats.recordSharedMiss()
		return nil, false
	}
	c.stats.recordSharedHit()

	// Promote: write-through on read so the next lookup stays local.
	c.fast.Set(key, &ec)

	return ec.WithCacheHit(), true
}

// Set writes to both enabled tiers independently with their configured TTLs.
func (c *ContextCache) Set(ctx context.Context, key string, value *models.EnrichedContext) {
	c.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL writes to both enabled tiers with an explicit TTL, for entries
// whose contributing providers demand a shorter lifetime than the cache
// defaults. A non-positive TTL falls back to each tier's configured TTL; the
// shared tier never holds an entry longer than its configured TTL. A
// shared-tier failure is logged and swallowed; cache writes are best-effort.
func (c *ContextCache) SetWithTTL(ctx context.Context, key string, value *models.EnrichedContext, ttl time.Duration) {
	c.stats.recordSet()
	c.fast.SetWithTTL(key, value, ttl)

	if c.shared == nil {
		return
	}

	sharedTTL := c.sharedTTL
	if ttl > 0 && ttl < sharedTTL {
		sharedTTL = ttl
	}
	if err := c.breaker.Execute(func() error {
		return c.shared.Set(ctx, key, value, sharedTTL)
	}); err != nil {
		c.logger.Warn("Shared cache tier write failed",
			logging.String("key", key),
			logging.Err(err),
		)
	}
}

// Delete removes a key from both tiers.
func (c *ContextCache) Delete(ctx context.Context, key string) {
	c.fast.Delete(key)

	if c.shared == nil {
		return
	}

	if err := c.breaker.Execute(func() error {
		return c.shared.Delete(ctx, key)
	}); err != nil {
		c.logger.Warn("Shared cache tier delete failed",
			logging.String("key", key),
			logging.Err(err),
		)
	}
}

// Contains reports whether the key is cached in either tier without
// promoting or recording stats.
func (c *ContextCache) Contains(ctx context.Context, key string) bool {
	if c.fast.Contains(key) {
		return true
	}
	if c.shared == nil {
		return false
	}

	var exists bool
	err := c.breaker.Execute(func() error {
		var existsErr error
		exists, existsErr = c.shared.Exists(ctx, key)
		return existsErr
	})
	return err == nil && exists
}

// Clear empties the fast tier and deletes every shared-tier key under the
// cache namespace in bounded batches.
func (c *ContextCache) Clear(ctx context.Context) error {
	c.fast.Clear()

	if c.shared == nil {
		return nil
	}

	var deleted int
	err := c.breaker.Execute(func() error {
		var delErr error
		deleted, delErr = c.shared.DeleteByPrefix(ctx, KeyPrefix)
		return delErr
	})
	if err != nil {
		return err
	}

	c.logger.Info("Cleared shared cache tier namespace",
		logging.Int("deleted", deleted),
	)
	return nil
}

// WarmCache pre-populates the cache for a set of customers, running
// fixed-size batches concurrently. Already-cached identifiers are skipped.
// Fetch failures are logged, never aggregated into a hard error.
func (c *ContextCache) WarmCache(ctx context.Context, customerIDs []string, agentType models.AgentType,
	fetch func(ctx context.Context, customerID string) (*models.EnrichedContext, error)) {

	for start := 0; start < len(customerIDs); start += c.warmBatch {
		end := start + c.warmBatch
		if end > len(customerIDs) {
			end = len(customerIDs)
		}

		g, batchCtx := errgroup.WithContext(ctx)
		for _, customerID := range customerIDs[start:end] {
			customerID := customerID
			g.Go(func() error {
				key := Key(customerID, agentType, "")
				if c.Contains(batchCtx, key) {
					return nil
				}

				ec, err := fetch(batchCtx, customerID)
				if err != nil {
					c.logger.Warn("Cache warm fetch failed",
						logging.String("customer_id", customerID),
						logging.Err(err),
					)
					return nil
				}
				c.Set(batchCtx, key, ec)
				return nil
			})
		}
		// Workers never return errors; Wait only observes ctx cancellation.
		if err := g.Wait(); err != nil {
			return
		}
	}

	c.logger.Info("Cache warming complete",
		logging.Int("requested", len(customerIDs)),
		logging.String("agent_type", string(agentType)),
	)
}

// CleanupExpired sweeps expired entries out of the fast tier.
func (c *ContextCache) CleanupExpired() int {
	return c.fast.CleanupExpired()
}

// Stats returns a snapshot of the cache counters.
func (c *ContextCache) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

// ResetStats zeroes the cache counters.
func (c *ContextCache) ResetStats() {
	c.stats.Reset()
}

// FastLen returns the number of entries currently in the fast tier.
func (c *ContextCache) FastLen() int {
	return c.fast.Len()
}

// Health reports the availability of each tier.
func (c *ContextCache) Health() map[string]string {
	health := map[string]string{
		"fast_tier": "ok",
	}

	switch {
	case c.shared == nil:
		health["shared_tier"] = "disabled"
	case c.breaker.IsOpen():
		health["shared_tier"] = "circuit open"
	default:
		if err := c.shared.Health(); err != nil {
			health["shared_tier"] = "unavailable: " + strings.TrimSpace(err.Error())
		} else {
			health["shared_tier"] = "ok"
		}
	}

	return health
}
