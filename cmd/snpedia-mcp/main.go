// Package main serves the pipeline MCP tools over stdio, backed by Postgres.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/snpedia-variant-pipeline/internal/config"
	"github.com/snpedia-variant-pipeline/internal/database"
	"github.com/snpedia-variant-pipeline/internal/domain"
	"github.com/snpedia-variant-pipeline/internal/mcp"
	"github.com/snpedia-variant-pipeline/internal/queue"
	"github.com/snpedia-variant-pipeline/internal/repository"
	"github.com/snpedia-variant-pipeline/internal/service"
	"github.com/snpedia-variant-pipeline/pkg/external"
)

func main() {
	log.SetOutput(os.Stderr)

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	// stdout carries the MCP protocol
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configManager, logger); err != nil && ctx.Err() == nil {
		logger.WithError(err).Fatal("MCP server failed")
	}
	logger.Info("SNPedia MCP server stopped")
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()
	databaseURL := configManager.GetDatabaseURL()

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

	var pageCache external.PageCache = external.NewMemoryPageCache(cfg.Cache.MemoryItems, cfg.Cache.MemoryTTL)
	if cfg.Cache.RedisURL != "" {
		if redisCache, err := external.NewRedisPageCache(cfg.Cache); err != nil {
			logger.WithError(err).Warn("Redis unavailable, using in-memory page cache only")
		} else {
			defer redisCache.Close()
			pageCache = external.NewTieredPageCache(pageCache, redisCache)
		}
	}

	var enricher domain.CitationEnricher
	if cfg.PubMed.Enabled {
		enricher = external.NewPubMedClient(cfg.PubMed, logger)
	}

	extractor := service.NewExtractionService(logger)
	fetcher := external.NewSNPediaClient(cfg.SNPedia, pageCache, logger)
	syncer := service.NewSyncService(fetcher, extractor, enricher, repo, fetchQueue, cfg.Queue, logger)

	server, err := mcp.NewServer(mcp.Dependencies{
		Extractor: extractor,
		Store:     repo,
		Queue:     fetchQueue,
		Syncer:    syncer,
	}, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return syncer.Run(gctx) })
	g.Go(func() error { return server.Run(gctx, nil) })
	return g.Wait()
}
