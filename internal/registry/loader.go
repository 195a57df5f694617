package registry

import (
	"encoding/json"
	"os"
	"time"

	"context-engine/internal/common/errors"
	"context-engine/internal/common/logging"
	"context-engine/internal/models"
	"context-engine/internal/providers"
)

// ProviderDefinition is one entry of the provider configuration file.
type ProviderDefinition struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"` // "http" or "static"
	Enabled      *bool    `json:"enabled,omitempty"`
	Priority     string   `json:"priority,omitempty"`
	AgentTypes   []string `json:"agent_types,omitempty"`
	CacheTTL     string   `json:"cache_ttl,omitempty"`
	Timeout      string   `json:"timeout,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`

	// http providers
	BaseURL   string  `json:"base_url,omitempty"`
	APIKey    string  `json:"api_key,omitempty"`
	RateLimit float64 `json:"rate_limit,omitempty"`
	RateBurst int     `json:"rate_burst,omitempty"`

	// static providers
	Data map[string]interface{} `json:"data,omitempty"`
}

// LoadFromFile registers every provider defined in a JSON configuration file
// and returns how many were registered. A malformed file or definition fails
// the whole load; configuration mistakes should surface at startup, not
// during the first enrichment.
func (r *Registry) LoadFromFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.ConfigError("cannot read provider config file").
			WithContext("path", path).
			WithContext("error", err.Error())
	}

	var defs []ProviderDefinition
	if err := json.Unmarshal(raw, &defs); err != nil {
		return 0, errors.ConfigError("provider config file is not valid JSON").
			WithContext("path", path).
			WithContext("error", err.Error())
	}

	for _, def := range defs {
		if err := r.registerDefinition(def); err != nil {
			return 0, err
		}
	}

	r.logger.Info("Loaded provider configuration",
		logging.String("path", path),
		logging.Int("providers", len(defs)),
	)
	return len(defs), nil
}

func (r *Registry) registerDefinition(def ProviderDefinition) error {
	if def.Name == "" {
		return errors.ConfigError("provider definition is missing a name")
	}

	var provider providers.Provider
	switch def.Type {
	case "http":
		timeout, err := parseOptionalDuration(def.Timeout)
		if err != nil {
			return errors.ConfigError("invalid timeout in provider definition").
				WithContext("provider", def.Name).
				WithContext("timeout", def.Timeout)
		}
		provider, err = providers.NewHTTPProvider(providers.HTTPProviderConfig{
			Name:      def.Name,
			BaseURL:   def.BaseURL,
			APIKey:    def.APIKey,
			Timeout:   timeout,
			RateLimit: def.RateLimit,
			RateBurst: def.RateBurst,
		}, r.logger)
		if err != nil {
			return err
		}
	case "static":
		provider = providers.NewStaticProvider(def.Name, def.Data)
	default:
		return errors.ConfigError("unknown provider type").
			WithContext("provider", def.Name).
			WithContext("type", def.Type)
	}

	priority, err := parsePriority(def.Priority)
	if err != nil {
		return errors.ConfigError("unknown provider priority").
			WithContext("provider", def.Name).
			WithContext("priority", def.Priority)
	}

	agentTypes, err := parseAgentTypes(def.AgentTypes)
	if err != nil {
		return errors.ConfigError("unknown agent type in provider definition").
			WithContext("provider", def.Name).
			WithContext("error", err.Error())
	}

	cacheTTL, err := parseOptionalDuration(def.CacheTTL)
	if err != nil {
		return errors.ConfigError("invalid cache_ttl in provider definition").
			WithContext("provider", def.Name).
			WithContext("cache_ttl", def.CacheTTL)
	}
	timeout, err := parseOptionalDuration(def.Timeout)
	if err != nil {
		return errors.ConfigError("invalid timeout in provider definition").
			WithContext("provider", def.Name).
			WithContext("timeout", def.Timeout)
	}

	enabled := true
	if def.Enabled != nil {
		enabled = *def.Enabled
	}

	r.Register(provider, ProviderMetadata{
		Name:         def.Name,
		Enabled:      enabled,
		Priority:     priority,
		AgentTypes:   agentTypes,
		CacheTTL:     cacheTTL,
		Timeout:      timeout,
		Dependencies: def.Dependencies,
	})
	return nil
}

func parsePriority(value string) (models.ProviderPriority, error) {
	switch value {
	case "", "medium":
		return models.PriorityMedium, nil
	case "critical":
		return models.PriorityCritical, nil
	case "high":
		return models.PriorityHigh, nil
	case "low":
		return models.PriorityLow, nil
	case "optional":
		return models.PriorityOptional, nil
	default:
		return 0, errors.ConfigError("unknown priority " + value)
	}
}

func parseAgentTypes(values []string) ([]models.AgentType, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]models.AgentType, 0, len(values))
	for _, v := range values {
		at := models.AgentType(v)
		if !at.IsValid() {
			return nil, errors.ValidationError("unknown agent type " + v)
		}
		out = append(out, at)
	}
	return out, nil
}

func parseOptionalDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	return time.ParseDuration(value)
}
