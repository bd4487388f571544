package domain

import (
	"context"
	"time"
)

// PageFetcher supplies both representations of a SNPedia page.
// It returns ErrPageNotFound when the page does not exist.
type PageFetcher interface {
	FetchPage(ctx context.Context, variantID string) (*RawPage, error)
}

// VariantStore persists normalized records keyed by ID.
// Upsert overwrites scalar fields and replaces child collections wholesale.
type VariantStore interface {
	Upsert(ctx context.Context, record *NormalizedVariantRecord) error
	Get(ctx context.Context, id string) (*NormalizedVariantRecord, error)
	ListByGene(ctx context.Context, gene string, limit, offset int) ([]*NormalizedVariantRecord, error)
	Close() error
}

// JobStatus is the state of a fetch queue entry
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
	JobNotFound   JobStatus = "not_found"
)

// FetchJob is one claimed fetch queue entry
type FetchJob struct {
	VariantID  string    `json:"variant_id"`
	Status     JobStatus `json:"status"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FetchQueue decides which variants are (re)fetched.
// DequeueNext returns ErrQueueEmpty when nothing is pending.
type FetchQueue interface {
	Enqueue(ctx context.Context, variantIDs ...string) error
	DequeueNext(ctx context.Context) (*FetchJob, error)
	MarkResult(ctx context.Context, variantID string, status JobStatus, jobErr error) error
}

// CitationEnricher looks up titles for citation identifiers
type CitationEnricher interface {
	FetchTitles(ctx context.Context, ids []string) (map[string]string, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
