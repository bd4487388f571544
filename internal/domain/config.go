package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Cache       CacheConfig    `mapstructure:"cache"`
	SNPedia     SNPediaConfig  `mapstructure:"snpedia"`
	PubMed      PubMedConfig   `mapstructure:"pubmed"`
	Queue       QueueConfig    `mapstructure:"queue"`
	Logging     LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// CacheConfig represents page cache configuration.
// An empty RedisURL disables the Redis tier.
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	MemoryItems int           `mapstructure:"memory_items"`
	MemoryTTL   time.Duration `mapstructure:"memory_ttl"`
}

// SNPediaConfig represents the SNPedia MediaWiki API configuration
type SNPediaConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	UserAgent  string        `mapstructure:"user_agent"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
}

// PubMedConfig represents PubMed API configuration
type PubMedConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Email     string        `mapstructure:"email"` // Required by NCBI
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit int           `mapstructure:"rate_limit"`
}

// QueueConfig represents fetch queue and sync worker configuration
type QueueConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	Workers        int           `mapstructure:"workers"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	KeepRawContent bool          `mapstructure:"keep_raw_content"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
