// Package orchestrator coordinates a context enrichment call end to end:
// cache check, provider selection, priority-tiered fan-out with a shrinking
// timeout budget, aggregation, scoring, PII filtering and cache population.
package orchestrator

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"context-engine/internal/aggregator"
	"context-engine/internal/cache"
	"context-engine/internal/common/errors"
	"context-engine/internal/common/logging"
	"context-engine/internal/models"
	"context-engine/internal/piifilter"
	"context-engine/internal/registry"
	"context-engine/internal/scoring"
)

const (
	defaultTimeoutBudget   = 5 * time.Second
	defaultProviderTimeout = 2 * time.Second

	maxIdentifierLength = 256

	healthCacheTTL = 30 * time.Second
)

// Options configures an Orchestrator.
type Options struct {
	// DefaultTimeoutBudget bounds an enrichment call when the caller does not
	// supply a budget.
	DefaultTimeoutBudget time.Duration
	// ProviderDefaultTimeout bounds a single provider call whose metadata
	// carries no timeout.
	ProviderDefaultTimeout time.Duration
}

// EnrichOptions are the per-call knobs of Enrich.
type EnrichOptions struct {
	ConversationID string
	// ForceRefresh skips the cache read and always re-fetches.
	ForceRefresh bool
	// TimeoutBudget overrides the orchestrator's default budget.
	TimeoutBudget time.Duration
	// Providers restricts the call to an explicit provider subset instead of
	// the registry's agent-type lookup.
	Providers []string
}

// Orchestrator is the engine's single entry point for enrichment calls.
type Orchestrator struct {
	registry   *registry.Registry
	cache      *cache.ContextCache
	aggregator *aggregator.Aggregator
	scorer     *scoring.Scorer
	logger     logging.Logger

	defaultBudget   time.Duration
	providerTimeout time.Duration

	health *gocache.Cache
}

// New creates an Orchestrator over a registry and a cache.
func New(reg *registry.Registry, contextCache *cache.ContextCache, logger logging.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if opts.DefaultTimeoutBudget <= 0 {
		opts.DefaultTimeoutBudget = defaultTimeoutBudget
	}
	if opts.ProviderDefaultTimeout <= 0 {
		opts.ProviderDefaultTimeout = defaultProviderTimeout
	}

	return &Orchestrator{
		registry:        reg,
		cache:           contextCache,
		aggregator:      aggregator.New(logger),
		scorer:          scoring.New(),
		logger:          logger,
		defaultBudget:   opts.DefaultTimeoutBudget,
		providerTimeout: opts.ProviderDefaultTimeout,
		health:          gocache.New(healthCacheTTL, time.Minute),
	}
}

// Enrich produces the context bundle for a customer and agent type. Provider
// failures and timeouts never fail the call; they only reduce the relevance
// score. The two hard failures are invalid identifiers and a circular
// provider dependency.
func (o *Orchestrator) Enrich(ctx context.Context, customerID string, agentType models.AgentType, opts EnrichOptions) (*models.EnrichedContext, error) {
	start := time.Now()

	if err := validateIdentifier("customer id", customerID); err != nil {
		return nil, err
	}
	if !agentType.IsValid() {
		return nil, errors.ValidationError("unknown agent type").
			WithContext("agent_type", string(agentType))
	}
	if opts.ConversationID != "" {
		if err := validateIdentifier("conversation id", opts.ConversationID); err != nil {
			return nil, err
		}
	}

	budget := opts.TimeoutBudget
	if budget <= 0 {
		budget = o.defaultBudget
	}

	key := cache.Key(customerID, agentType, opts.ConversationID)
	if !opts.ForceRefresh {
		if ec, found := o.cache.Get(ctx, key); found {
			o.logger.Debug("Enrichment served from cache",
				logging.String("customer_id", customerID),
				logging.String("agent_type", string(agentType)),
			)
			return ec, nil
		}
	}

	selected, skipped, err := o.selectProviders(agentType, opts.Providers)
	if err != nil {
		return nil, err
	}

	if len(selected) == 0 {
		o.logger.Debug("No providers selected",
			logging.String("customer_id", customerID),
			logging.String("agent_type", string(agentType)),
		)
		return &models.EnrichedContext{
			CustomerID:      customerID,
			AgentType:       agentType,
			ConversationID:  opts.ConversationID,
			Data:            map[string]interface{}{},
			ProviderResults: skipped,
			EnrichedAt:      time.Now(),
			TotalLatency:    time.Since(start),
		}, nil
	}

	results := o.fanOut(ctx, selected, customerID, opts.ConversationID, start, budget)
	results = append(results, skipped...)

	merged := o.aggregator.Aggregate(results)
	score := o.scorer.Score(merged, agentType)
	filtered := piifilter.FilterForAgent(merged, agentType)

	ec := &models.EnrichedContext{
		CustomerID:      customerID,
		AgentType:       agentType,
		ConversationID:  opts.ConversationID,
		Data:            filtered,
		ProviderResults: results,
		EnrichedAt:      time.Now(),
		RelevanceScore:  score,
		TotalLatency:    time.Since(start),
	}

	o.cache.SetWithTTL(ctx, key, ec, bundleCacheTTL(selected))

	o.logger.Info("Enrichment complete",
		logging.String("customer_id", customerID),
		logging.String("agent_type", string(agentType)),
		logging.Int("providers", len(results)),
		logging.Float64("relevance_score", score),
		logging.Duration("latency", ec.TotalLatency),
	)

	return ec, nil
}

// selectProviders resolves which providers run for this call: the explicit
// subset when given, otherwise the registry's agent-type lookup, expanded
// with transitive dependencies in topological order. Providers that are
// registered but disabled come back as skipped results with status disabled.
func (o *Orchestrator) selectProviders(agentType models.AgentType, subset []string) ([]*registry.Registration, []models.ProviderResult, error) {
	var names []string
	var skipped []models.ProviderResult

	if len(subset) > 0 {
		for _, name := range subset {
			reg, found := o.registry.Get(name)
			if !found {
				o.logger.Warn("Requested provider is not registered",
					logging.String("provider", name),
				)
				continue
			}
			if !reg.Metadata.Enabled {
				skipped = append(skipped, disabledResult(name))
				continue
			}
			names = append(names, name)
		}
	} else {
		for _, reg := range o.registry.GetProvidersForAgent(agentType, false) {
			names = append(names, reg.Metadata.Name)
		}
	}

	if len(names) == 0 {
		return nil, skipped, nil
	}

	ordered, err := o.registry.ResolveDependencies(names)
	if err != nil {
		return nil, nil, err
	}

	selected := make([]*registry.Registration, 0, len(ordered))
	for _, name := range ordered {
		reg, found := o.registry.Get(name)
		if !found {
			continue
		}
		// Dependency expansion can pull in a disabled provider.
		if !reg.Metadata.Enabled {
			skipped = append(skipped, disabledResult(name))
			continue
		}
		selected = append(selected, reg)
	}
	return selected, skipped, nil
}

// InvalidateCache removes the cached context for a customer. When agentType
// is empty, the key for every known agent type is removed.
func (o *Orchestrator) InvalidateCache(ctx context.Context, customerID string, agentType models.AgentType, conversationID string) error {
	if err := validateIdentifier("customer id", customerID); err != nil {
		return err
	}

	if agentType == "" {
		for _, at := range models.AllAgentTypes() {
			o.cache.Delete(ctx, cache.Key(customerID, at, conversationID))
		}
		return nil
	}

	if !agentType.IsValid() {
		return errors.ValidationError("unknown agent type").
			WithContext("agent_type", string(agentType))
	}
	o.cache.Delete(ctx, cache.Key(customerID, agentType, conversationID))
	return nil
}

// WarmCache pre-populates the cache for a set of customers by running full
// enrichments for the ones not already cached.
func (o *Orchestrator) WarmCache(ctx context.Context, customerIDs []string, agentType models.AgentType) {
	o.cache.WarmCache(ctx, customerIDs, agentType,
		func(ctx context.Context, customerID string) (*models.EnrichedContext, error) {
			return o.Enrich(ctx, customerID, agentType, EnrichOptions{ForceRefresh: true})
		})
}

// CacheStats exposes the cache counters for the stats endpoint.
func (o *Orchestrator) CacheStats() cache.StatsSnapshot {
	return o.cache.Stats()
}

// bundleCacheTTL is the lifetime of a cached bundle: the smallest per-provider
// cache TTL among the providers that ran. Zero means no provider constrains
// the lifetime and the cache defaults apply.
func bundleCacheTTL(selected []*registry.Registration) time.Duration {
	var ttl time.Duration
	for _, reg := range selected {
		if reg.Metadata.CacheTTL <= 0 {
			continue
		}
		if ttl == 0 || reg.Metadata.CacheTTL < ttl {
			ttl = reg.Metadata.CacheTTL
		}
	}
	return ttl
}

func disabledResult(name string) models.ProviderResult {
	return models.ProviderResult{
		ProviderName: name,
		Status:       models.ProviderStatusDisabled,
		CompletedAt:  time.Now(),
	}
}

// validateIdentifier rejects identifiers that are empty, oversized, or would
// collide with the cache key delimiter.
func validateIdentifier(what, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.ValidationError(what + " must not be empty")
	}
	if len(value) > maxIdentifierLength {
		return errors.ValidationError(what + " exceeds maximum length")
	}
	if strings.ContainsAny(value, ": \t\n") {
		return errors.ValidationError(what + " contains invalid characters").
			WithContext("value", value)
	}
	return nil
}
