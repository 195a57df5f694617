// Package app wires the context engine together: configuration, logging,
// cache tiers, provider registry, orchestrator and the HTTP surface.
package app

import (
	"context"

	"context-engine/internal/cache"
	"context-engine/internal/common/logging"
	"context-engine/internal/config"
	"context-engine/internal/orchestrator"
	"context-engine/internal/redis"
	"context-engine/internal/registry"
)

// App holds the long-lived components of the engine.
type App struct {
	Config       *config.Config
	Logger       logging.Logger
	Redis        *redis.Client
	Cache        *cache.ContextCache
	Registry     *registry.Registry
	Orchestrator *orchestrator.Orchestrator

	maintenance *maintenance
}

// New builds the engine from configuration. A Redis that is unreachable at
// startup is not fatal: the cache degrades to fast-tier-only with a warning.
func New(cfg *config.Config) (*App, error) {
	logger := logging.GetGlobalLogger()

	var redisClient *redis.Client
	var sharedTier cache.SharedTier
	if cfg.SharedCacheEnabled {
		client, err := redis.NewClient(&redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
		})
		if err != nil {
			logger.Warn("Shared cache tier unreachable, running fast-tier-only",
				logging.String("address", cfg.RedisAddress),
				logging.Err(err),
			)
		} else {
			redisClient = client
			sharedTier = client
		}
	} else {
		logger.Info("Shared cache tier disabled by configuration")
	}

	contextCache := cache.New(cache.Options{
		FastCapacity:  cfg.FastCacheSize,
		FastTTL:       cfg.FastCacheTTL,
		SharedTTL:     cfg.SharedCacheTTL,
		WarmBatchSize: cfg.WarmBatchSize,
	}, sharedTier, logger)

	reg := registry.New(logger)
	if cfg.ProviderConfigPath != "" {
		count, err := reg.LoadFromFile(cfg.ProviderConfigPath)
		if err != nil {
			return nil, err
		}
		logger.Info("Providers registered from configuration",
			logging.Int("count", count),
		)
	}

	o := orchestrator.New(reg, contextCache, logger, orchestrator.Options{
		DefaultTimeoutBudget:   cfg.EnrichTimeoutBudget,
		ProviderDefaultTimeout: cfg.ProviderDefaultTimeout,
	})

	a := &App{
		Config:       cfg,
		Logger:       logger,
		Redis:        redisClient,
		Cache:        contextCache,
		Registry:     reg,
		Orchestrator: o,
	}
	a.maintenance = newMaintenance(contextCache, cfg.CacheCleanupInterval, logger)

	return a, nil
}

// Start kicks off background maintenance.
func (a *App) Start() {
	a.maintenance.start()
}

// Shutdown stops background work and closes external connections.
func (a *App) Shutdown(ctx context.Context) {
	a.maintenance.stop(ctx)

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("Error closing Redis connection",
				logging.Err(err),
			)
		}
	}
	a.Logger.Info("Engine shut down")
}
