// Package cli implements the snpedia command line tool.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/snpedia-variant-pipeline/internal/config"
	"github.com/snpedia-variant-pipeline/internal/domain"
	"github.com/snpedia-variant-pipeline/internal/queue"
	"github.com/snpedia-variant-pipeline/internal/store"
)

// Version is injected at build time via ldflags
var Version = "dev"

// RootOptions holds global CLI flags
type RootOptions struct {
	DataDir      string
	LogLevel     string
	OutputFormat string
	Timeout      time.Duration
}

// Dependencies lets callers replace network-facing services. Zero values use
// the real SNPedia and PubMed clients.
type Dependencies struct {
	Fetcher  domain.PageFetcher
	Enricher domain.CitationEnricher
}

// NewRootCommand creates the root command with every subcommand registered
func NewRootCommand(deps Dependencies) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "snpedia",
		Short: "Extract, store and query normalized SNPedia variant records",
		Long: `snpedia turns SNPedia variant pages into normalized records.

Pages can be extracted from local files, or queued and fetched from SNPedia
into a local SQLite database under the data directory.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.DataDir, "data-dir", "", "data directory (default: $SNPEDIA_DATA_DIR or ~/.snpedia-pipeline)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "json", "output format (json, table)")
	pf.DurationVar(&opts.Timeout, "timeout", 0, "overall operation timeout (0 for none)")

	cmd.AddCommand(
		newExtractCmd(opts),
		newRiskCmd(opts),
		newReportCmd(opts),
		newIngestCmd(opts),
		newSyncCmd(opts, deps),
		newStatusCmd(opts),
		newExportCmd(opts),
		newMigrateCmd(opts),
		newSetupCmd(opts),
	)

	return cmd
}

// Execute runs the root command with a signal-aware context
func Execute(ctx context.Context) int {
	cmd := NewRootCommand(Dependencies{})
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (o *RootOptions) logger() *logrus.Logger {
	logger, err := config.NewLogger(domain.LoggingConfig{Level: o.LogLevel, Format: "text", Output: "stderr"})
	if err != nil {
		logger, _ = config.NewLogger(domain.LoggingConfig{Level: "warn", Format: "text", Output: "stderr"})
	}
	return logger
}

func (o *RootOptions) liteConfig() *config.LiteConfig {
	cfg := config.LoadLiteConfig()
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	cfg.LogLevel = o.LogLevel
	return cfg
}

func (o *RootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.Timeout > 0 {
		return context.WithTimeout(ctx, o.Timeout)
	}
	return context.WithCancel(ctx)
}

// liteEnv is the local SQLite store and fetch queue under the data directory
type liteEnv struct {
	cfg    *config.LiteConfig
	store  *store.SQLiteStore
	queue  *queue.SQLQueue
	logger *logrus.Logger
}

func (o *RootOptions) openLite() (*liteEnv, error) {
	cfg := o.liteConfig()
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	logger := o.logger()

	variantStore, err := store.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return nil, err
	}
	fetchQueue, err := queue.NewSQLQueue(variantStore.DB(), queue.DialectSQLite, cfg.QueueConfig().MaxAttempts, logger)
	if err != nil {
		variantStore.Close()
		return nil, err
	}
	fetchQueue.SetRetryDelay(cfg.QueueConfig().RetryDelay)
	return &liteEnv{cfg: cfg, store: variantStore, queue: fetchQueue, logger: logger}, nil
}

func (e *liteEnv) Close() error {
	return e.store.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
