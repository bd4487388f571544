package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	litecfg "github.com/snpedia-variant-pipeline/internal/config"
	"github.com/snpedia-variant-pipeline/internal/domain"
	"github.com/snpedia-variant-pipeline/internal/queue"
	"github.com/snpedia-variant-pipeline/internal/service"
	"github.com/snpedia-variant-pipeline/internal/store"
	"github.com/snpedia-variant-pipeline/pkg/external"
)

// LiteServer is a lightweight MCP server that requires no external databases.
// It uses an in-memory page cache and one SQLite file for records and the fetch queue.
type LiteServer struct {
	config  *litecfg.LiteConfig
	server  *Server
	store   *store.SQLiteStore
	queue   *queue.SQLQueue
	cache   *external.MemoryPageCache
	fetcher domain.PageFetcher
	syncer  *service.SyncService
	logger  *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// WithFetcher replaces the SNPedia client, e.g. with a local mirror.
func WithFetcher(fetcher domain.PageFetcher) LiteServerOption {
	return func(s *LiteServer) error {
		if fetcher == nil {
			return errors.New("fetcher must not be nil")
		}
		s.fetcher = fetcher
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{config: cfg}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.logger == nil {
		logger, err := litecfg.NewLogger(cfg.LoggingConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		server.logger = logger
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	variantStore, err := store.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to create variant store: %w", err)
	}
	server.store = variantStore

	queueCfg := cfg.QueueConfig()
	fetchQueue, err := queue.NewSQLQueue(variantStore.DB(), queue.DialectSQLite, queueCfg.MaxAttempts, server.logger)
	if err != nil {
		variantStore.Close()
		return nil, fmt.Errorf("failed to create fetch queue: %w", err)
	}
	fetchQueue.SetRetryDelay(queueCfg.RetryDelay)
	server.queue = fetchQueue

	server.cache = external.NewMemoryPageCache(cfg.CacheMaxItems, cfg.CacheTTL)
	if server.fetcher == nil {
		server.fetcher = external.NewSNPediaClient(cfg.SNPediaConfig(), server.cache, server.logger)
	}
	enricher := external.NewPubMedClient(cfg.PubMedConfig(), server.logger)

	extractor := service.NewExtractionService(server.logger)
	server.syncer = service.NewSyncService(server.fetcher, extractor, enricher, variantStore, fetchQueue, queueCfg, server.logger)

	mcpServer, err := NewServer(Dependencies{
		Extractor: extractor,
		Store:     variantStore,
		Queue:     fetchQueue,
		Syncer:    server.syncer,
	}, server.logger)
	if err != nil {
		variantStore.Close()
		return nil, err
	}
	server.server = mcpServer

	server.logger.WithField("db_path", cfg.DBPath()).Info("Lite server initialized successfully")
	return server, nil
}

// Start runs the sync worker in the background and serves MCP over stdio
// until the client disconnects or ctx is done.
func (s *LiteServer) Start(ctx context.Context) error {
	return s.Serve(ctx, &mcp.StdioTransport{})
}

// Serve is Start over an arbitrary transport.
func (s *LiteServer) Serve(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("Starting SNPedia pipeline MCP server (lite)...")

	workerCtx, stopWorkers := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := s.syncer.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.WithError(err).Error("Sync worker stopped")
		}
	}()

	err := s.server.Run(ctx, transport)
	stopWorkers()
	<-workerDone
	return err
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close variant store")
			return err
		}
	}
	return nil
}

// Store returns the variant store for external access.
func (s *LiteServer) Store() *store.SQLiteStore {
	return s.store
}

// Queue returns the fetch queue for external access.
func (s *LiteServer) Queue() *queue.SQLQueue {
	return s.queue
}

// Cache returns the page cache for external access.
func (s *LiteServer) Cache() *external.MemoryPageCache {
	return s.cache
}
