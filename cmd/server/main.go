package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/application/job"
	"github.com/damon-houk/cbr-rates-service/internal/application/service"
	"github.com/damon-houk/cbr-rates-service/internal/config"
	"github.com/damon-houk/cbr-rates-service/internal/domain/repository"
	domainservice "github.com/damon-houk/cbr-rates-service/internal/domain/service"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/cache"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/db"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/feed"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/handler"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/logger"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/metrics"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/queue"
	"github.com/dgraph-io/badger/v3"
)

const shutdownTimeout = 15 * time.Second

func main() {
	log := logger.GetDefaultLogger()

	cfg, err := config.LoadConfig(log)
	if err != nil {
		log.Fatal("Failed to load configuration", map[string]interface{}{"error": err.Error()})
	}

	log = logger.NewJSONLogger(os.Stdout, cfg.LogLevel).WithField("service", "cbr-rates")
	logger.SetDefaultLogger(log)

	log.Info("Starting CBR rates service", map[string]interface{}{
		"port":          cfg.Port,
		"store_driver":  cfg.StoreDriver,
		"cache_backend": cfg.CacheBackend,
		"feed_url":      cfg.FeedURL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup BadgerDB when the store or the cache lives there
	var badgerDB *badger.DB
	if cfg.UsesBadger() {
		if err := os.MkdirAll(cfg.BadgerPath, 0755); err != nil {
			log.Fatal("Failed to create database directory", map[string]interface{}{"error": err.Error()})
		}

		badgerOpts := badger.DefaultOptions(cfg.BadgerPath)
		badgerOpts.Logger = nil

		badgerDB, err = badger.Open(badgerOpts)
		if err != nil {
			log.Fatal("Failed to open database", map[string]interface{}{"error": err.Error()})
		}

		defer func() {
			if err := badgerDB.Close(); err != nil {
				log.Error("Error closing BadgerDB", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	// Initialize repositories
	var (
		rates repository.RateRepository
		meta  repository.JobMetadataRepository
	)
	switch cfg.StoreDriver {
	case config.StorePostgres:
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatal("Failed to apply migrations", map[string]interface{}{"error": err.Error()})
		}

		pool, err := db.NewPgxPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to connect to PostgreSQL", map[string]interface{}{"error": err.Error()})
		}
		defer pool.Close()

		rates = db.NewPgxRateRepository(pool)
		meta = db.NewPgxJobMetadataRepository(pool)
	default:
		rates = db.NewBadgerRateRepository(badgerDB)
		meta = db.NewBadgerJobMetadataRepository(badgerDB)
	}

	// Initialize cache
	var rateCache domainservice.RateCache
	switch cfg.CacheBackend {
	case config.CacheBadger:
		rateCache = cache.NewBadgerRateCache(badgerDB)
	default:
		memCache := cache.NewMemoryRateCache()
		memCache.StartJanitor(ctx, time.Minute, log)
		rateCache = memCache
	}

	m := metrics.NewMetrics()

	// Background work
	tasks := queue.New(cfg.QueueSize, cfg.QueueWorkers, log)
	tasks.Start(context.Background())

	fetcher := feed.NewClient(cfg.FeedURL, &http.Client{Timeout: cfg.FeedTimeout}, log)
	refresh := job.NewRefreshJob(rateCache, rates, meta, fetcher, feed.NewParser(), tasks, job.Config{
		JobName:        job.DefaultJobName,
		SourceEncoding: cfg.FeedEncoding,
		CacheTTL:       cfg.CacheTTL,
		MaxAttempts:    cfg.RefreshMaxAttempts,
		Backoff:        cfg.RefreshBackoff,
	}, log).WithMetrics(m)

	if cfg.RefreshDailyAt != "" {
		trigger, err := job.NewDailyTrigger(refresh, tasks, cfg.RefreshDailyAt, log)
		if err != nil {
			log.Fatal("Invalid daily refresh time", map[string]interface{}{"error": err.Error()})
		}
		go trigger.Run(ctx)
	}

	// Warm the cache on startup
	if err := tasks.Enqueue(refresh.Task(1)); err != nil {
		log.Warn("Initial refresh not enqueued", map[string]interface{}{"error": err.Error()})
	}

	// Initialize services and handlers
	query := service.NewQueryService(rateCache, tasks, func() domainservice.Task {
		return refresh.Task(1)
	}, log).WithMetrics(m)

	router := handler.NewRouter(
		handler.NewRatesHandler(query, log),
		handler.NewHealthHandler(meta, rates, refresh.Name(), log),
		m, log,
	)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", map[string]interface{}{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received", nil)
	case err := <-serverErr:
		if err != nil {
			log.Error("Server failed", map[string]interface{}{"error": err.Error()})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	tasks.Stop()

	log.Info("Server stopped", nil)
}
