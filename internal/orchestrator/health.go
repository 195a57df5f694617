package orchestrator

import (
	"context"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"context-engine/internal/providers"
)

const (
	healthCacheKey        = "health"
	providerHealthTimeout = time.Second
	healthStatusOK        = "ok"
	healthStatusDegraded  = "degraded"
	healthStatusUnknown   = "unknown"
)

// HealthCheck reports orchestrator, cache and provider health without
// mutating any state. Provider probes are rate-limited by memoizing the
// report for a short window, so callers can poll this freely.
func (o *Orchestrator) HealthCheck(ctx context.Context) map[string]interface{} {
	if cached, found := o.health.Get(healthCacheKey); found {
		return cached.(map[string]interface{})
	}

	status := healthStatusOK

	cacheHealth := o.cache.Health()
	for _, tierStatus := range cacheHealth {
		if tierStatus != "ok" && tierStatus != "disabled" {
			status = healthStatusDegraded
		}
	}

	names := o.registry.Names()
	sort.Strings(names)

	providerHealth := make(map[string]string, len(names))
	for _, name := range names {
		reg, found := o.registry.Get(name)
		if !found {
			continue
		}
		if !reg.Metadata.Enabled {
			providerHealth[name] = "disabled"
			continue
		}

		checker, ok := reg.Provider.(providers.HealthChecker)
		if !ok {
			providerHealth[name] = healthStatusUnknown
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, providerHealthTimeout)
		err := checker.HealthCheck(probeCtx)
		cancel()
		if err != nil {
			providerHealth[name] = "error: " + err.Error()
			status = healthStatusDegraded
		} else {
			providerHealth[name] = healthStatusOK
		}
	}

	report := map[string]interface{}{
		"status":     status,
		"cache":      cacheHealth,
		"providers":  providerHealth,
		"checked_at": time.Now().UTC().Format(time.RFC3339),
	}

	o.health.Set(healthCacheKey, report, gocache.DefaultExpiration)
	return report
}
