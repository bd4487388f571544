// Package config provides configuration management.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the SQLite file and exports

	// Cache settings
	CacheMaxItems int           // Maximum pages in memory cache
	CacheTTL      time.Duration // Page cache TTL

	// SNPedia settings
	SNPediaBaseURL string // MediaWiki API endpoint
	NCBIAPIKey     string // Optional: NCBI API key for higher PubMed rate limits

	// Sync worker
	PollInterval time.Duration // How often idle workers poll the queue
	Workers      int           // Concurrent sync workers

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".snpedia-pipeline")

	return &LiteConfig{
		DataDir:        dataDir,
		CacheMaxItems:  1000,
		CacheTTL:       24 * time.Hour,
		SNPediaBaseURL: "https://bots.snpedia.com/api.php",
		PollInterval:   30 * time.Second,
		Workers:        1,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("SNPEDIA_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("SNPEDIA_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("SNPEDIA_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("SNPEDIA_BASE_URL"); v != "" {
		cfg.SNPediaBaseURL = v
	}
	cfg.NCBIAPIKey = os.Getenv("NCBI_API_KEY")

	if v := os.Getenv("SNPEDIA_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("SNPEDIA_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}

	if v := os.Getenv("SNPEDIA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SNPEDIA_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// DBPath returns the path to the SQLite database.
func (c *LiteConfig) DBPath() string {
	return filepath.Join(c.DataDir, "snpedia.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// SNPediaConfig maps the lite settings onto the client configuration
func (c *LiteConfig) SNPediaConfig() domain.SNPediaConfig {
	return domain.SNPediaConfig{
		BaseURL:    c.SNPediaBaseURL,
		Timeout:    30 * time.Second,
		RateLimit:  1,
		RetryCount: 3,
	}
}

// PubMedConfig maps the lite settings onto the PubMed client configuration
func (c *LiteConfig) PubMedConfig() domain.PubMedConfig {
	rateLimit := 3
	if c.NCBIAPIKey != "" {
		rateLimit = 10
	}
	return domain.PubMedConfig{
		Enabled:   true,
		APIKey:    c.NCBIAPIKey,
		Timeout:   30 * time.Second,
		RateLimit: rateLimit,
	}
}

// QueueConfig maps the lite settings onto the sync worker configuration
func (c *LiteConfig) QueueConfig() domain.QueueConfig {
	return domain.QueueConfig{
		PollInterval: c.PollInterval,
		Workers:      c.Workers,
		MaxAttempts:  3,
		RetryDelay:   time.Minute,
	}
}

// LoggingConfig returns logging settings; stdout belongs to the MCP stdio transport.
func (c *LiteConfig) LoggingConfig() domain.LoggingConfig {
	return domain.LoggingConfig{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		Output: "stderr",
	}
}
