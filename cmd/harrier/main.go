// Harrier - Recommendation serving with built-in quality monitoring.
// Copyright (c) 2025 opensource.retail
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/opensource-retail/harrier/internal/api"
	"github.com/opensource-retail/harrier/internal/bus"
	"github.com/opensource-retail/harrier/internal/cache"
	"github.com/opensource-retail/harrier/internal/degrade"
	"github.com/opensource-retail/harrier/internal/domain"
	"github.com/opensource-retail/harrier/internal/engine"
	"github.com/opensource-retail/harrier/internal/featurestore"
	"github.com/opensource-retail/harrier/internal/monitor"
	"github.com/opensource-retail/harrier/internal/source"
	"github.com/opensource-retail/harrier/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HARRIER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()
	if os.Getenv("HARRIER_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"feature_store", cfg.FeatureStore.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize the feature snapshot store. Serving is impossible
	// without a product snapshot, so failures are fatal.
	store, err := featurestore.New(cfg.FeatureStore)
	if err != nil {
		slog.Error("failed to load feature snapshot", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("feature store initialized",
		"driver", cfg.FeatureStore.Driver,
		"snapshot_version", store.Version(),
		"members", store.MemberCount(),
		"products", store.ProductCount(),
	)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize the scoring artifact and candidate sources
	scorer := source.NewBaselineScorer(store)

	ruleSource, err := source.NewRuleSource(store, source.DefaultBoostRules(), cfg.Engine.CandidatePool)
	if err != nil {
		slog.Error("failed to compile boost rules", "error", err)
		os.Exit(1)
	}

	sources := []source.Source{
		source.NewMLSource(scorer, store, cfg.Engine.CandidatePool),
		source.NewCFSource(nil, store, cfg.Engine.CandidatePool),
		source.NewPopularitySource(store),
		source.NewDiversitySource(store),
		ruleSource,
	}
	slog.Info("candidate sources initialized",
		"count", len(sources),
		"boost_rules", ruleSource.RulesCount(),
	)

	// Initialize degradation strategy and engine
	strategy := degrade.New(store, cfg.Degradation)
	eng := engine.New(cfg.Engine, store, cacheImpl, scorer, strategy, sources)
	slog.Info("recommendation engine initialized",
		"model_version", scorer.Version(),
		"top_k", cfg.Engine.TopK,
	)

	// Initialize quality monitor and its worker
	mon := monitor.New()
	monWorker := worker.NewWorker(busImpl, mon)
	if err := monWorker.Start(); err != nil {
		slog.Error("failed to start monitoring worker", "error", err)
		os.Exit(1)
	}
	slog.Info("monitoring worker started")

	// Initialize Server
	srv := api.NewServer(cfg.Server, eng, mon, busImpl, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the monitoring worker first
	if err := monWorker.Stop(); err != nil {
		slog.Error("failed to stop monitoring worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("harrier shutdown complete")
}

// applyEnvOverrides lets deployment environments adjust the tier
// defaults without a config file.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("HARRIER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HARRIER_DB_DRIVER"); v != "" {
		cfg.FeatureStore.Driver = v
	}
	if v := os.Getenv("HARRIER_SQLITE_PATH"); v != "" {
		cfg.FeatureStore.SQLitePath = v
	}
	if v := os.Getenv("HARRIER_POSTGRES_HOST"); v != "" {
		cfg.FeatureStore.PostgresHost = v
	}
	if v := os.Getenv("HARRIER_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.FeatureStore.PostgresPort = port
		}
	}
	if v := os.Getenv("HARRIER_POSTGRES_USER"); v != "" {
		cfg.FeatureStore.PostgresUser = v
	}
	if v := os.Getenv("HARRIER_POSTGRES_PASSWORD"); v != "" {
		cfg.FeatureStore.PostgresPassword = v
	}
	if v := os.Getenv("HARRIER_POSTGRES_DB"); v != "" {
		cfg.FeatureStore.PostgresDB = v
	}
	if v := os.Getenv("HARRIER_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("HARRIER_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("HARRIER_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("HARRIER_NATS_TOKEN"); v != "" {
		cfg.EventBus.NATSToken = v
	}
	if v := os.Getenv("HARRIER_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			cfg.Engine.TopK = k
		}
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                  HARRIER")
	fmt.Println("       Recommendation Serving Engine")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /api/v1/recommendations              - Serve recommendations")
	fmt.Println("    GET  /api/v1/models/info                  - Model and snapshot metadata")
	fmt.Println("    GET  /api/v1/monitoring/statistics        - Request timing statistics")
	fmt.Println("    GET  /api/v1/monitoring/records           - Recent quality records")
	fmt.Println("    GET  /api/v1/monitoring/alerts            - Recent alerts")
	fmt.Println("    GET  /api/v1/monitoring/reports/hourly    - Hourly quality report")
	fmt.Println("    GET  /api/v1/monitoring/reports/daily     - Daily quality report")
	fmt.Println("    GET  /api/v1/degradation/thresholds       - Degradation thresholds")
	fmt.Println("    PUT  /api/v1/degradation/thresholds       - Update thresholds")
	fmt.Println("    GET  /health                              - Health check")
	fmt.Println()
}
