package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/streamgate/internal/api"
	"github.com/dom/streamgate/internal/api/handlers"
	"github.com/dom/streamgate/internal/config"
	"github.com/dom/streamgate/internal/extractor"
	"github.com/dom/streamgate/internal/repository"
	"github.com/dom/streamgate/internal/repository/memory"
	"github.com/dom/streamgate/internal/repository/postgres"
	repoRedis "github.com/dom/streamgate/internal/repository/redis"
	"github.com/dom/streamgate/internal/service"
	"github.com/dom/streamgate/internal/telemetry"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		logrus.Fatalf("failed to initialize metrics: %v", err)
	}
	metrics.Install()

	// Initialize storage
	var repos *repository.Repositories
	if cfg.UsesMemoryStore() {
		logrus.Warn("[main] using in-memory store, data is lost on restart")
		repos = memory.NewRepositories()
	} else {
		db, err := postgres.NewConnection(cfg.DatabaseURL)
		if err != nil {
			logrus.Fatalf("failed to connect to database: %v", err)
		}
		if err := postgres.Migrate(db); err != nil {
			logrus.Fatalf("failed to migrate database: %v", err)
		}
		repos = postgres.NewRepositories(db)
	}

	health := handlers.HealthChecks{"database": repos.Health}

	// Source cache and rate counters live in redis when configured
	var cache repository.SourceCache
	var counter repository.RateCounter
	if cfg.RedisAddr != "" {
		redisClient := repoRedis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer redisClient.Close()

		cache = repoRedis.NewSourceCache(redisClient)
		counter = repoRedis.NewRateCounter(redisClient)
		health["cache"] = repoRedis.NewHealthChecker(redisClient)
	} else {
		logrus.Warn("[main] REDIS_ADDR not set, source caching and rate limiting are disabled")
	}

	// Initialize services
	services, err := service.NewServices(repos, cache, extractor.NewYtDlp(cfg.YtDlpPath), cfg)
	if err != nil {
		logrus.Fatalf("failed to initialize services: %v", err)
	}

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	if err := services.Catalog.EnsureSeeded(seedCtx); err != nil {
		logrus.WithError(err).Error("[main] failed to seed catalog")
	}
	cancelSeed()

	// Initialize router
	router := api.NewRouter(services, health, counter, cfg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler)
	mux.Handle("/", router)

	// No write timeout: streams run as long as the client keeps reading
	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logrus.WithField("port", cfg.Port).Info("[main] server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("[main] shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Fatalf("server forced to shutdown: %v", err)
	}
	if err := metrics.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("[main] failed to flush metrics")
	}

	logrus.Info("[main] server stopped")
}
