// Package models defines the shared types exchanged between the context
// enrichment components: agent types, provider priorities, provider results
// and the enriched context envelope returned to callers.
package models

import (
	"time"
)

// AgentType identifies the category of downstream consumer requesting
// context. It selects which providers run and which PII filter level applies.
type AgentType string

const (
	AgentGeneral          AgentType = "general"
	AgentTechnicalSupport AgentType = "technical-support"
	AgentBilling          AgentType = "billing"
	AgentSales            AgentType = "sales"
	AgentCustomerSuccess  AgentType = "customer-success"
	AgentEscalation       AgentType = "escalation"
	AgentAnalytics        AgentType = "analytics"
	AgentSecurity         AgentType = "security"
)

// AllAgentTypes returns every known agent type. The slice is a copy and safe
// to modify.
func AllAgentTypes() []AgentType {
	return []AgentType{
		AgentGeneral,
		AgentTechnicalSupport,
		AgentBilling,
		AgentSales,
		AgentCustomerSuccess,
		AgentEscalation,
		AgentAnalytics,
		AgentSecurity,
	}
}

// IsValid reports whether the agent type is one of the known values.
func (a AgentType) IsValid() bool {
	switch a {
	case AgentGeneral, AgentTechnicalSupport, AgentBilling, AgentSales,
		AgentCustomerSuccess, AgentEscalation, AgentAnalytics, AgentSecurity:
		return true
	}
	return false
}

// ProviderPriority orders providers into execution tiers. Lower values run
// first and get a larger share of the timeout budget.
type ProviderPriority int

const (
	PriorityCritical ProviderPriority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
	PriorityOptional
)

func (p ProviderPriority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	case PriorityOptional:
		return "optional"
	default:
		return "unknown"
	}
}

// PIIFilterLevel controls how aggressively sensitive fields are masked
// before context reaches an agent.
type PIIFilterLevel string

const (
	// PIIFilterNone passes data through unchanged (elevated privilege).
	PIIFilterNone PIIFilterLevel = "none"
	// PIIFilterPartial masks values while keeping enough to identify them.
	PIIFilterPartial PIIFilterLevel = "partial"
	// PIIFilterFull replaces sensitive values with a redaction token.
	PIIFilterFull PIIFilterLevel = "full"
)

// ProviderStatus is the outcome of a single provider invocation.
type ProviderStatus string

const (
	ProviderStatusSuccess  ProviderStatus = "success"
	ProviderStatusFailed   ProviderStatus = "failed"
	ProviderStatusTimeout  ProviderStatus = "timeout"
	ProviderStatusDisabled ProviderStatus = "disabled"
)

// ProviderResult records one provider's execution outcome during an
// enrichment call. A result with status success always carries a non-nil
// data snapshot. Results are immutable after creation.
type ProviderResult struct {
	ProviderName string                 `json:"provider_name"`
	Status       ProviderStatus         `json:"status"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Latency      time.Duration          `json:"latency"`
	CompletedAt  time.Time              `json:"completed_at"`
}

// EnrichedContext is the externally visible artifact of an enrichment call.
// It is stored by value in the cache and never mutated after creation; a
// cache hit returns a flagged copy rather than the stored instance.
type EnrichedContext struct {
	CustomerID      string                 `json:"customer_id"`
	AgentType       AgentType              `json:"agent_type"`
	ConversationID  string                 `json:"conversation_id,omitempty"`
	Data            map[string]interface{} `json:"data"`
	ProviderResults []ProviderResult       `json:"provider_results"`
	EnrichedAt      time.Time              `json:"enriched_at"`
	CacheHit        bool                   `json:"cache_hit"`
	RelevanceScore  float64                `json:"relevance_score"`
	TotalLatency    time.Duration          `json:"total_latency"`
}

// WithCacheHit returns a copy of the context flagged as a cache hit. The
// underlying data snapshot is shared; callers treat it as read-only.
func (e *EnrichedContext) WithCacheHit() *EnrichedContext {
	clone := *e
	clone.CacheHit = true
	return &clone
}
