// Package registry implements the provider registry: the central directory
// mapping agent types to ordered provider lists and the authority for
// enabling and disabling providers at runtime.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"context-engine/internal/common/errors"
	"context-engine/internal/common/logging"
	"context-engine/internal/models"
	"context-engine/internal/providers"
)

// ProviderMetadata is the per-provider record owned exclusively by the
// registry. It is mutated only through Register/Enable/Disable.
type ProviderMetadata struct {
	Name         string                  `json:"name"`
	Enabled      bool                    `json:"enabled"`
	Priority     models.ProviderPriority `json:"priority"`
	AgentTypes   []models.AgentType      `json:"agent_types,omitempty"` // nil means all agent types
	CacheTTL     time.Duration           `json:"cache_ttl"`
	Timeout      time.Duration           `json:"timeout"`
	Dependencies []string                `json:"dependencies,omitempty"`
}

// Registration pairs a provider instance with its metadata.
type Registration struct {
	Provider providers.Provider
	Metadata ProviderMetadata
}

// Registry is a read-mostly directory of providers. Registration mutation
// never happens concurrently with an in-flight enrichment, but reads are
// safe under concurrent use regardless.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Registration
	logger  logging.Logger
}

// New creates an empty registry.
func New(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Registry{
		entries: make(map[string]*Registration),
		logger:  logger,
	}
}

// Register adds a provider under its metadata. Registration is idempotent by
// provider name: a repeat registration replaces the previous one and logs a
// warning. Metadata defaults: name from the provider, enabled true.
func (r *Registry) Register(provider providers.Provider, meta ProviderMetadata) {
	if meta.Name == "" {
		meta.Name = provider.Name()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[meta.Name]; exists {
		r.logger.Warn("Replacing previously registered provider",
			logging.String("provider", meta.Name),
		)
	}

	r.entries[meta.Name] = &Registration{
		Provider: provider,
		Metadata: meta,
	}
}

// Unregister removes a provider from the registry. Unknown names are a
// logged no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; !exists {
		r.logger.Warn("Unregister of unknown provider",
			logging.String("provider", name),
		)
		return
	}
	delete(r.entries, name)
}

// Get returns the registration for a provider name.
func (r *Registry) Get(name string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[name]
	return reg, ok
}

// Names returns all registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.entries)
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// GetProvidersForAgent returns the providers applicable to an agent type,
// sorted ascending by priority tier (critical first) with name as the
// tiebreak so the order is reproducible. Disabled providers are filtered out
// unless includeDisabled is set.
func (r *Registry) GetProvidersForAgent(agentType models.AgentType, includeDisabled bool) []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var regs []*Registration
	for _, reg := range r.entries {
		if !includeDisabled && !reg.Metadata.Enabled {
			continue
		}
		if !appliesTo(reg.Metadata, agentType) {
			continue
		}
		regs = append(regs, reg)
	}

	sort.Slice(regs, func(i, j int) bool {
		if regs[i].Metadata.Priority != regs[j].Metadata.Priority {
			return regs[i].Metadata.Priority < regs[j].Metadata.Priority
		}
		return regs[i].Metadata.Name < regs[j].Metadata.Name
	})

	return regs
}

// Enable marks a provider as enabled. Returns a not-found error for unknown
// names.
func (r *Registry) Enable(name string) error {
	return r.setEnabled(name, true)
}

// Disable marks a provider as disabled without unregistering it.
func (r *Registry) Disable(name string) error {
	return r.setEnabled(name, false)
}

// IsEnabled reports whether a provider is registered and enabled.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, exists := r.entries[name]
	return exists && reg.Metadata.Enabled
}

func (r *Registry) setEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, exists := r.entries[name]
	if !exists {
		return errors.NotFoundError("provider " + name)
	}
	reg.Metadata.Enabled = enabled
	return nil
}

func appliesTo(meta ProviderMetadata, agentType models.AgentType) bool {
	if meta.AgentTypes == nil {
		return true
	}
	for _, a := range meta.AgentTypes {
		if a == agentType {
			return true
		}
	}
	return false
}
