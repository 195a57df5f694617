package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"context-engine/internal/cache"
	"context-engine/internal/common/logging"
)

// statsLogInterval is how often cache counters are written to the log.
const statsLogInterval = 5 * time.Minute

// maintenance runs the engine's periodic background work: sweeping expired
// entries out of the fast cache tier and logging cache statistics.
type maintenance struct {
	cron   *cron.Cron
	cache  *cache.ContextCache
	logger logging.Logger
}

func newMaintenance(contextCache *cache.ContextCache, cleanupInterval time.Duration, logger logging.Logger) *maintenance {
	m := &maintenance{
		cron:   cron.New(),
		cache:  contextCache,
		logger: logger,
	}

	// @every specs cannot fail to parse for positive durations.
	_, _ = m.cron.AddFunc(fmt.Sprintf("@every %s", cleanupInterval), m.sweepExpired)
	_, _ = m.cron.AddFunc(fmt.Sprintf("@every %s", statsLogInterval), m.logStats)

	return m
}

func (m *maintenance) start() {
	m.cron.Start()
	m.logger.Info("Cache maintenance scheduled")
}

// stop halts scheduling and waits for any running job, bounded by ctx.
func (m *maintenance) stop(ctx context.Context) {
	stopCtx := m.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline reached before maintenance jobs finished")
	}
}

func (m *maintenance) sweepExpired() {
	removed := m.cache.CleanupExpired()
	if removed > 0 {
		m.logger.Debug("Swept expired fast-tier entries",
			logging.Int("removed", removed),
		)
	}
}

func (m *maintenance) logStats() {
	stats := m.cache.Stats()
	m.logger.Info("Cache statistics",
		logging.Int64("gets", int64(stats.Gets)),
		logging.Int64("sets", int64(stats.Sets)),
		logging.Int64("fast_hits", int64(stats.FastHits)),
		logging.Int64("shared_hits", int64(stats.SharedHits)),
		logging.Int64("evictions", int64(stats.Evictions)),
		logging.Float64("overall_hit_rate", stats.OverallHitRate),
	)
}
