// Package config provides configuration management for the context
// enrichment engine. It handles loading configuration from environment
// variables with sensible defaults and validates the configuration to ensure
// the engine starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - PROVIDER_CONFIG_PATH: Optional JSON file describing HTTP providers
//
// Redis (shared cache tier) Configuration:
//   - SHARED_CACHE_ENABLED: Enable the Redis shared tier (default: true)
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Cache Configuration:
//   - FAST_CACHE_SIZE: Fast tier capacity in entries (default: 1000)
//   - FAST_CACHE_TTL: Fast tier entry TTL (default: 5m)
//   - SHARED_CACHE_TTL: Shared tier entry TTL (default: 30m)
//   - CACHE_CLEANUP_INTERVAL: Expired-entry sweep interval (default: 1m)
//   - WARM_BATCH_SIZE: Concurrent batch size for cache warming (default: 10)
//
// Enrichment Configuration:
//   - ENRICH_TIMEOUT_BUDGET: Total timeout budget per enrichment (default: 5s)
//   - PROVIDER_DEFAULT_TIMEOUT: Per-provider timeout when unset (default: 2s)
//
// API Rate Limiting:
//   - API_RATE_LIMIT: Requests per second per client, 0 disables (default: 0)
//   - API_RATE_BURST: Burst size per client (default: 20)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all configuration values for the context enrichment engine.
// Load it with Load() and check it with Validate() before use.
type Config struct {
	// Application settings
	Port               string `validate:"required"`
	LogLevel           string
	ProviderConfigPath string

	// Redis configuration for the shared cache tier
	SharedCacheEnabled bool
	RedisAddress       string `validate:"required"`
	RedisPassword      string
	RedisDB            int `validate:"gte=0,lte=15"`
	RedisPoolSize      int `validate:"gt=0"`

	// Cache configuration
	FastCacheSize        int           `validate:"gt=0"`
	FastCacheTTL         time.Duration `validate:"gt=0"`
	SharedCacheTTL       time.Duration `validate:"gt=0"`
	CacheCleanupInterval time.Duration `validate:"gt=0"`
	WarmBatchSize        int           `validate:"gt=0"`

	// Enrichment configuration
	EnrichTimeoutBudget    time.Duration `validate:"gt=0"`
	ProviderDefaultTimeout time.Duration `validate:"gt=0"`

	// API rate limiting, per client. Zero disables it.
	APIRateLimit float64 `validate:"gte=0"`
	APIRateBurst int     `validate:"gte=0"`
}

// Load creates a new Config instance with values loaded from environment
// variables. Call Validate() on the result before use.
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ProviderConfigPath: getEnv("PROVIDER_CONFIG_PATH", ""),

		SharedCacheEnabled: getBoolEnv("SHARED_CACHE_ENABLED", true),
		RedisAddress:       getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getIntEnv("REDIS_DB", 0),
		RedisPoolSize:      getIntEnv("REDIS_POOL_SIZE", 10),

		FastCacheSize:        getIntEnv("FAST_CACHE_SIZE", 1000),
		FastCacheTTL:         getDurationEnv("FAST_CACHE_TTL", 5*time.Minute),
		SharedCacheTTL:       getDurationEnv("SHARED_CACHE_TTL", 30*time.Minute),
		CacheCleanupInterval: getDurationEnv("CACHE_CLEANUP_INTERVAL", time.Minute),
		WarmBatchSize:        getIntEnv("WARM_BATCH_SIZE", 10),

		EnrichTimeoutBudget:    getDurationEnv("ENRICH_TIMEOUT_BUDGET", 5*time.Second),
		ProviderDefaultTimeout: getDurationEnv("PROVIDER_DEFAULT_TIMEOUT", 2*time.Second),

		APIRateLimit: getFloatEnv("API_RATE_LIMIT", 0),
		APIRateBurst: getIntEnv("API_RATE_BURST", 20),
	}
}

// Validate performs validation on the configuration to ensure all values are
// usable before the engine starts.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.ProviderConfigPath != "" {
		if _, err := os.Stat(c.ProviderConfigPath); err != nil {
			return fmt.Errorf("PROVIDER_CONFIG_PATH is not readable: %w", err)
		}
	}

	if c.FastCacheTTL > c.SharedCacheTTL {
		return fmt.Errorf("FAST_CACHE_TTL must not exceed SHARED_CACHE_TTL")
	}

	if c.ProviderDefaultTimeout > c.EnrichTimeoutBudget {
		return fmt.Errorf("PROVIDER_DEFAULT_TIMEOUT must not exceed ENRICH_TIMEOUT_BUDGET")
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// getEnv retrieves an environment variable value or returns a default value
// if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a
// default value when unset or unparsable.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable value or returns a
// default value when unset or unparsable.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getFloatEnv retrieves a float environment variable value or returns a
// default value when unset or unparsable.
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable value or returns
// a default value when unset or unparsable.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
