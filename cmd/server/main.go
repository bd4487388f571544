package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/snpedia-variant-pipeline/internal/api"
	"github.com/snpedia-variant-pipeline/internal/config"
	"github.com/snpedia-variant-pipeline/internal/database"
	"github.com/snpedia-variant-pipeline/internal/domain"
	"github.com/snpedia-variant-pipeline/internal/queue"
	"github.com/snpedia-variant-pipeline/internal/repository"
	"github.com/snpedia-variant-pipeline/internal/service"
	"github.com/snpedia-variant-pipeline/pkg/external"
)

// jobs claimed this long ago were orphaned by a previous crash
const staleJobAge = 15 * time.Minute

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()
	databaseURL := configManager.GetDatabaseURL()

	runner, err := database.NewMigrationRunner(databaseURL, cfg.Database.MigrationsPath, logger)
	if err != nil {
		return err
	}
	if err := runner.Up(ctx); err != nil {
		runner.Close()
		return err
	}
	runner.Close()

	db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg.Database), logger)
	if err != nil {
		return err
	}
	defer db.Close()
	repo := repository.NewVariantRepository(db.Pool, logger)

	queueDB, err := queue.OpenPostgres(databaseURL)
	if err != nil {
		return err
	}
	defer queueDB.Close()
	fetchQueue, err := queue.NewSQLQueue(queueDB, queue.DialectPostgres, cfg.Queue.MaxAttempts, logger)
	if err != nil {
		return err
	}
	fetchQueue.SetRetryDelay(cfg.Queue.RetryDelay)
	if n, err := fetchQueue.RequeueStale(ctx, staleJobAge); err != nil {
		logger.WithError(err).Warn("Failed to requeue stale jobs")
	} else if n > 0 {
		logger.WithField("count", n).Info("Requeued stale jobs")
	}

	healthChecks := map[string]api.HealthCheck{"database": db.Health}

	var pageCache external.PageCache = external.NewMemoryPageCache(cfg.Cache.MemoryItems, cfg.Cache.MemoryTTL)
	if cfg.Cache.RedisURL != "" {
		redisCache, err := external.NewRedisPageCache(cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, using in-memory page cache only")
		} else {
			defer redisCache.Close()
			pageCache = external.NewTieredPageCache(pageCache, redisCache)
			healthChecks["redis"] = redisCache.Ping
		}
	}

	var enricher domain.CitationEnricher
	if cfg.PubMed.Enabled {
		enricher = external.NewPubMedClient(cfg.PubMed, logger)
	}

	extractor := service.NewExtractionService(logger)
	fetcher := external.NewSNPediaClient(cfg.SNPedia, pageCache, logger)
	syncer := service.NewSyncService(fetcher, extractor, enricher, repo, fetchQueue, cfg.Queue, logger)

	server := api.NewServer(cfg.Server, api.Dependencies{
		Extractor:    extractor,
		Store:        repo,
		Queue:        fetchQueue,
		HealthChecks: healthChecks,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return syncer.Run(gctx) })
	g.Go(func() error { return server.Start(gctx) })
	return g.Wait()
}
