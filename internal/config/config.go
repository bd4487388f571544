package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. SNPEDIA_DATABASE_HOST
const EnvPrefix = "SNPEDIA"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// NewManager loads config.yaml from the usual search paths, then the environment
func NewManager() (*Manager, error) {
	return NewManagerFromFile("")
}

// NewManagerFromFile loads an explicit config file; an empty path searches the defaults
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{configFile: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/snpedia-pipeline/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// the file is optional; defaults and environment variables suffice
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values. Every key needs a default so
// AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "20s")
	v.SetDefault("server.max_body_bytes", 4<<20)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "snpedia")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "")

	// Cache defaults
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")
	v.SetDefault("cache.memory_items", 1000)
	v.SetDefault("cache.memory_ttl", "1h")

	// SNPedia defaults
	v.SetDefault("snpedia.base_url", "https://bots.snpedia.com/api.php")
	v.SetDefault("snpedia.user_agent", "snpedia-variant-pipeline/1.0")
	v.SetDefault("snpedia.timeout", "30s")
	v.SetDefault("snpedia.rate_limit", 1)
	v.SetDefault("snpedia.retry_count", 3)

	// PubMed defaults
	v.SetDefault("pubmed.enabled", true)
	v.SetDefault("pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/")
	v.SetDefault("pubmed.api_key", "")
	v.SetDefault("pubmed.email", "")
	v.SetDefault("pubmed.timeout", "30s")
	v.SetDefault("pubmed.rate_limit", 3)

	// Queue defaults
	v.SetDefault("queue.poll_interval", "30s")
	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.retry_delay", "1m")
	v.SetDefault("queue.keep_raw_content", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if config.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if config.Database.Username == "" {
		return fmt.Errorf("database username is required")
	}

	if _, err := url.ParseRequestURI(config.SNPedia.BaseURL); err != nil {
		return fmt.Errorf("invalid SNPedia base URL: %w", err)
	}
	if config.SNPedia.RateLimit <= 0 {
		return fmt.Errorf("SNPedia rate limit must be positive")
	}
	if config.PubMed.Enabled && config.PubMed.BaseURL == "" {
		return fmt.Errorf("PubMed base URL is required when PubMed is enabled")
	}

	if config.Queue.Workers <= 0 {
		return fmt.Errorf("queue workers must be positive")
	}
	if config.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue max attempts must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the URL form used by migrations and lib/pq
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.Username, db.Password),
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     db.Database,
		RawQuery: "sslmode=" + db.SSLMode,
	}
	return u.String()
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}

var _ domain.ConfigManager = (*Manager)(nil)
