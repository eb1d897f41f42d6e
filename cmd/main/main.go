package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-search-service/src/cache"
	"stock-search-service/src/config"
	"stock-search-service/src/interfaces"
	"stock-search-service/src/logger"
	"stock-search-service/src/network"
	"stock-search-service/src/provider/yahoo"
	"stock-search-service/src/resilience"
	"stock-search-service/src/search"
	"stock-search-service/src/server"
	"stock-search-service/src/storage"
	"stock-search-service/src/utils"
)

// -----------------------------------------------------------------------------

const (
	statsBroadcastInterval = 5 * time.Second
	cleanupInterval        = 1 * time.Hour
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config.LogLevel, config.Name)

	// 2. Relational tier (L2)
	var db interfaces.IDatabase

	switch config.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(config.MConfig, appLogger)
	default:
		// Default to SQLite
		db, err = storage.NewSQLiteDB(config.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}

	// 3. In-process tier (L0)
	memCache, err := cache.NewMemoryCache(config.Cache.MaxSize, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init memory cache: %v", err)
	}

	tiers := []search.Tier{
		{
			Repo: cache.NewMemoryTier(memCache, time.Duration(config.Cache.CacheTTLSeconds)*time.Second),
			TTL:  time.Duration(config.Cache.CacheTTLSeconds) * time.Second,
		},
	}

	// 4. Distributed tier (L1), optional
	if config.Redis.Enabled {
		redisCache := cache.NewRedisCache(config.Redis, appLogger)

		pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
		err := redisCache.Ping(pingCtx)
		cancelPing()

		if err != nil {
			appLogger.Warning("Redis unreachable, running without L1 tier: %v", err)
		} else {
			tiers = append(tiers, search.Tier{
				Repo: redisCache,
				TTL:  time.Duration(config.Redis.CacheTTLSeconds) * time.Second,
			})
		}
	}

	tiers = append(tiers, search.Tier{
		Repo: db,
		TTL:  time.Duration(config.Storage.CacheTTLSeconds) * time.Second,
	})

	// 5. Provider with protection layer
	var networkManager interfaces.INetworkManager = network.NewNetworkManager(config.MConfig, appLogger)

	limiter := resilience.NewRateLimiter(
		config.Limiter.MaxRequests,
		time.Duration(config.Limiter.WindowSeconds)*time.Second,
	)
	breaker := resilience.NewCircuitBreaker(
		config.Provider.Name,
		config.Breaker.FailureThreshold,
		time.Duration(config.Breaker.RecoveryTimeoutSeconds)*time.Second,
		appLogger,
	)

	var provider interfaces.IStockProvider = yahoo.NewProvider(config.MConfig, networkManager, limiter, breaker, appLogger)

	// 6. Search orchestrator
	ttlPolicy := utils.NewTTLPolicy(config.Provider.ClosedMarketTTLFactor, appLogger)
	history := search.NewHistoryTracker(db, appLogger)
	scorer := search.NewScorer(config.Scoring.PopularityWeight)

	searchService := search.NewService(
		config.MConfig,
		tiers,
		provider,
		history,
		scorer,
		ttlPolicy,
		memCache,
		breaker,
		limiter,
		appLogger,
	)
	defer searchService.Close()

	// 7. Cache warmup from search history
	if config.Warmup.Enabled {
		warmCtx, cancelWarm := context.WithTimeout(context.Background(), 30*time.Second)
		loaded, err := searchService.WarmCache(warmCtx)
		cancelWarm()
		if err != nil {
			appLogger.Warning("Cache warmup failed: %v", err)
		} else {
			appLogger.Info("Cache warmup done, %d stocks preloaded", loaded)
		}
	}

	// 8. Start Server
	var srv interfaces.IDataExchanger = server.NewFastAPIServer(config.MConfig, searchService, appLogger)

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 9. Main Loop (stats stream + periodic cleanup)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	statsTicker := time.NewTicker(statsBroadcastInterval)
	defer statsTicker.Stop()
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	appLogger.Info("Service ready on %s:%d", config.Host, config.Port)

	for {
		select {
		case <-statsTicker.C:
			snapshot := searchService.Snapshot()
			srv.Broadcast(&snapshot)

		case <-cleanupTicker.C:
			removed, err := searchService.Cleanup(ctx)
			if err != nil {
				appLogger.Warning("Periodic cleanup failed: %v", err)
				continue
			}
			appLogger.Info("Periodic cleanup removed %d expired entries", removed)

		case <-quit:
			appLogger.Info("Shutting down...")
			cancel()
			srv.Stop()
			return
		}
	}
}
