package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"context-engine/internal/aggregator"
	"context-engine/internal/cache"
	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/common/logging"
	"context-engine/internal/models"
	"context-engine/internal/providers"
	"context-engine/internal/registry"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *registry.Registry) {
	t.Helper()
	reg := registry.New(logging.GetGlobalLogger())
	contextCache := cache.New(cache.Options{
		FastCapacity: 100,
		FastTTL:      time.Minute,
	}, nil, logging.GetGlobalLogger())
	o := New(reg, contextCache, logging.GetGlobalLogger(), Options{
		DefaultTimeoutBudget:   2 * time.Second,
		ProviderDefaultTimeout: time.Second,
	})
	return o, reg
}

func registerStatic(reg *registry.Registry, name string, priority models.ProviderPriority, data map[string]interface{}) *providers.StaticProvider {
	p := providers.NewStaticProvider(name, data)
	reg.Register(p, registry.ProviderMetadata{
		Enabled:  true,
		Priority: priority,
	})
	return p
}

func TestEnrich_CacheHitSemantics(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	p := registerStatic(reg, "account", models.PriorityCritical, map[string]interface{}{
		"company_name": "Acme",
	})

	first, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, "Acme", first.Data["company_name"])

	second, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, "Acme", second.Data["company_name"])

	assert.Equal(t, 1, p.FetchCount(), "the provider runs exactly once across both calls")
}

func TestEnrich_ProviderCacheTTLBoundsEntryLifetime(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	p := providers.NewStaticProvider("account", map[string]interface{}{
		"company_name": "Acme",
	})
	reg.Register(p, registry.ProviderMetadata{
		Enabled:  true,
		Priority: models.PriorityCritical,
		CacheTTL: 30 * time.Millisecond,
	})

	_, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{})
	require.NoError(t, err)

	hit, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{})
	require.NoError(t, err)
	assert.True(t, hit.CacheHit)
	assert.Equal(t, 1, p.FetchCount())

	// Past the provider's cache TTL the entry expires even though the cache's
	// own default TTL has not elapsed.
	time.Sleep(60 * time.Millisecond)

	refetched, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{})
	require.NoError(t, err)
	assert.False(t, refetched.CacheHit)
	assert.Equal(t, 2, p.FetchCount())
}

func TestEnrich_ForceRefresh(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	p := registerStatic(reg, "account", models.PriorityCritical, map[string]interface{}{
		"company_name": "Acme",
	})

	_, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{})
	require.NoError(t, err)

	refreshed, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{ForceRefresh: true})
	require.NoError(t, err)
	assert.False(t, refreshed.CacheHit)
	assert.Equal(t, 2, p.FetchCount(), "forceRefresh bypasses a valid cache entry")
}

func TestEnrich_InvalidIdentifiers(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	tests := []struct {
		name       string
		customerID string
		agentType  models.AgentType
	}{
		{"empty customer id", "", models.AgentGeneral},
		{"colon in customer id", "cust:1", models.AgentGeneral},
		{"whitespace customer id", "cust 1", models.AgentGeneral},
		{"unknown agent type", "cust-1", models.AgentType("wizard")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Enrich(context.Background(), tt.customerID, tt.agentType, EnrichOptions{})
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
		})
	}

	t.Run("invalid conversation id", func(t *testing.T) {
		_, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{
			ConversationID: "conv:1",
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	})
}

func TestEnrich_EmptySelectionIsNotAnError(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	ec, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{})
	require.NoError(t, err)
	assert.Empty(t, ec.Data)
	assert.Empty(t, ec.ProviderResults)
	assert.False(t, ec.CacheHit)
}

func TestEnrich_FailingProviderDoesNotPoisonOthers(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	registerStatic(reg, "account", models.PriorityCritical, map[string]interface{}{
		"company_name": "Acme",
	})
	broken := providers.NewStaticProvider("billing", map[string]interface{}{
		"outstanding_balance": 120.0,
	}).WithError(fmt.Errorf("upstream 503"))
	reg.Register(broken, registry.ProviderMetadata{Enabled: true, Priority: models.PriorityHigh})

	ec, err := o.Enrich(context.Background(), "cust-1", models.AgentBilling, EnrichOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Acme", ec.Data["company_name"], "healthy provider data is aggregated")
	assert.NotContains(t, ec.Data, "outstanding_balance")

	byName := resultsByName(ec.ProviderResults)
	require.Contains(t, byName, "billing")
	assert.Equal(t, models.ProviderStatusFailed, byName["billing"].Status)
	assert.Contains(t, byName["billing"].Error, "upstream 503")
	assert.Equal(t, models.ProviderStatusSuccess, byName["account"].Status)
}

func TestEnrich_SlowProviderTimesOutWithoutBlockingCall(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	registerStatic(reg, "account", models.PriorityCritical, map[string]interface{}{
		"company_name": "Acme",
	})
	slow := providers.NewStaticProvider("social", map[string]interface{}{
		"twitter_followers": 4200.0,
	}).WithLatency(10 * time.Second)
	reg.Register(slow, registry.ProviderMetadata{
		Enabled:  true,
		Priority: models.PriorityLow,
		Timeout:  50 * time.Millisecond,
	})

	start := time.Now()
	ec, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{
		TimeoutBudget: time.Second,
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "the call is bounded by the budget")

	byName := resultsByName(ec.ProviderResults)
	assert.Equal(t, models.ProviderStatusTimeout, byName["social"].Status)
	assert.Equal(t, "Acme", ec.Data["company_name"])
}

func TestEnrich_ProviderTimeoutErrorReportedAsTimeout(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	timedOut := providers.NewStaticProvider("crm", map[string]interface{}{
		"company_name": "Acme",
	}).WithError(apperrors.TimeoutError("fetch from provider crm"))
	reg.Register(timedOut, registry.ProviderMetadata{Enabled: true, Priority: models.PriorityHigh})

	ec, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{})
	require.NoError(t, err)

	byName := resultsByName(ec.ProviderResults)
	require.Contains(t, byName, "crm")
	assert.Equal(t, models.ProviderStatusTimeout, byName["crm"].Status,
		"a provider's own timeout error counts as a timeout, not a failure")
}

func TestEnrich_ProviderSubset(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	account := registerStatic(reg, "account", models.PriorityCritical, map[string]interface{}{
		"company_name": "Acme",
	})
	billing := registerStatic(reg, "billing", models.PriorityHigh, map[string]interface{}{
		"outstanding_balance": 120.0,
	})
	require.NoError(t, reg.Disable("billing"))

	ec, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{
		Providers: []string{"account", "billing", "never-registered"},
	})
	require.NoError(t, err)

	byName := resultsByName(ec.ProviderResults)
	assert.Equal(t, models.ProviderStatusSuccess, byName["account"].Status)
	assert.Equal(t, models.ProviderStatusDisabled, byName["billing"].Status)
	assert.NotContains(t, byName, "never-registered")

	assert.Equal(t, 1, account.FetchCount())
	assert.Equal(t, 0, billing.FetchCount(), "disabled providers never run")
}

func TestEnrich_DependencyCycleIsFatal(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	a := providers.NewStaticProvider("a", map[string]interface{}{})
	b := providers.NewStaticProvider("b", map[string]interface{}{})
	reg.Register(a, registry.ProviderMetadata{Enabled: true, Dependencies: []string{"b"}})
	reg.Register(b, registry.ProviderMetadata{Enabled: true, Dependencies: []string{"a"}})

	_, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDependencyCycle))
}

func TestEnrich_PIIFilteredPerAgentType(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	registerStatic(reg, "account", models.PriorityCritical, map[string]interface{}{
		"email": "jane@example.com",
	})

	billing, err := o.Enrich(context.Background(), "cust-1", models.AgentBilling, EnrichOptions{})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", billing.Data["email"], "billing agents see raw PII")

	support, err := o.Enrich(context.Background(), "cust-1", models.AgentTechnicalSupport, EnrichOptions{})
	require.NoError(t, err)
	assert.Equal(t, "j***@example.com", support.Data["email"])

	sales, err := o.Enrich(context.Background(), "cust-1", models.AgentSales, EnrichOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, "jane@example.com", sales.Data["email"])
	assert.NotEqual(t, "j***@example.com", sales.Data["email"], "sales agents get full redaction")
}

func TestEnrich_AggregationMetadataAttached(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	registerStatic(reg, "account", models.PriorityCritical, map[string]interface{}{
		"company_name": "Acme",
	})

	ec, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{})
	require.NoError(t, err)

	meta, ok := ec.Data[aggregator.MetadataKey].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []string{"account"}, meta["providers_used"])
}

func TestEnrich_ConcurrentCallsNoCrossTalk(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	registerStatic(reg, "account", models.PriorityCritical, map[string]interface{}{
		"company_name": "Acme",
	})

	const customers = 100
	var wg sync.WaitGroup
	errs := make(chan error, customers)
	contexts := make(chan *models.EnrichedContext, customers)

	for i := 0; i < customers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			customerID := fmt.Sprintf("cust-%03d", i)
			ec, err := o.Enrich(context.Background(), customerID, models.AgentGeneral, EnrichOptions{})
			if err != nil {
				errs <- err
				return
			}
			if ec.CustomerID != customerID {
				errs <- fmt.Errorf("cross-talk: requested %s got %s", customerID, ec.CustomerID)
				return
			}
			if ec.Data["customer_id"] != customerID {
				errs <- fmt.Errorf("cross-talk in data: requested %s got %v", customerID, ec.Data["customer_id"])
				return
			}
			contexts <- ec
		}(i)
	}
	wg.Wait()
	close(errs)
	close(contexts)

	for err := range errs {
		t.Error(err)
	}
	assert.Len(t, contexts, customers)
}

func TestEnrich_ConversationIDIsPartOfIdentity(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	p := registerStatic(reg, "account", models.PriorityCritical, map[string]interface{}{
		"company_name": "Acme",
	})

	_, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{ConversationID: "conv-1"})
	require.NoError(t, err)
	second, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{ConversationID: "conv-2"})
	require.NoError(t, err)

	assert.False(t, second.CacheHit)
	assert.Equal(t, "conv-2", second.ConversationID)
	assert.Equal(t, 2, p.FetchCount(), "distinct conversations do not share cache entries")
}

func TestInvalidateCache(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	p := registerStatic(reg, "account", models.PriorityCritical, map[string]interface{}{
		"company_name": "Acme",
	})

	t.Run("single agent type", func(t *testing.T) {
		_, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{})
		require.NoError(t, err)

		require.NoError(t, o.InvalidateCache(context.Background(), "cust-1", models.AgentGeneral, ""))

		after, err := o.Enrich(context.Background(), "cust-1", models.AgentGeneral, EnrichOptions{})
		require.NoError(t, err)
		assert.False(t, after.CacheHit)
	})

	t.Run("all agent types", func(t *testing.T) {
		before := p.FetchCount()
		for _, at := range []models.AgentType{models.AgentGeneral, models.AgentBilling} {
			_, err := o.Enrich(context.Background(), "cust-2", at, EnrichOptions{})
			require.NoError(t, err)
		}

		require.NoError(t, o.InvalidateCache(context.Background(), "cust-2", "", ""))

		for _, at := range []models.AgentType{models.AgentGeneral, models.AgentBilling} {
			ec, err := o.Enrich(context.Background(), "cust-2", at, EnrichOptions{})
			require.NoError(t, err)
			assert.False(t, ec.CacheHit)
		}
		assert.Equal(t, before+4, p.FetchCount())
	})

	t.Run("invalid customer id", func(t *testing.T) {
		err := o.InvalidateCache(context.Background(), "", models.AgentGeneral, "")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	})
}

func TestHealthCheck(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	registerStatic(reg, "account", models.PriorityCritical, map[string]interface{}{})
	broken := providers.NewStaticProvider("billing", map[string]interface{}{}).
		WithError(fmt.Errorf("unreachable"))
	reg.Register(broken, registry.ProviderMetadata{Enabled: true, Priority: models.PriorityHigh})

	report := o.HealthCheck(context.Background())
	assert.Equal(t, "degraded", report["status"])

	providerHealth, ok := report["providers"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "ok", providerHealth["account"])
	assert.Contains(t, providerHealth["billing"], "error")

	// The report is memoized: fixing the provider does not show up
	// until the memo window lapses.
	reg.Unregister("billing")
	again := o.HealthCheck(context.Background())
	assert.Equal(t, "degraded", again["status"])
}

func TestWarmCache(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	p := registerStatic(reg, "account", models.PriorityCritical, map[string]interface{}{
		"company_name": "Acme",
	})

	ids := []string{"warm-1", "warm-2", "warm-3"}
	o.WarmCache(context.Background(), ids, models.AgentGeneral)
	assert.Equal(t, len(ids), p.FetchCount())

	for _, id := range ids {
		ec, err := o.Enrich(context.Background(), id, models.AgentGeneral, EnrichOptions{})
		require.NoError(t, err)
		assert.True(t, ec.CacheHit, id)
	}
}

func resultsByName(results []models.ProviderResult) map[string]models.ProviderResult {
	byName := make(map[string]models.ProviderResult, len(results))
	for _, r := range results {
		byName[r.ProviderName] = r
	}
	return byName
}
