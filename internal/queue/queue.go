// Package queue implements the fetch queue that decides which SNPedia pages
// are (re)fetched. It runs on database/sql against SQLite or Postgres.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

// Dialect selects placeholder syntax
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// maxClaimAttempts bounds how often DequeueNext retries after losing a claim race
const maxClaimAttempts = 5

// defaultRetryDelay is how long a re-armed job waits before it can be claimed again
const defaultRetryDelay = time.Minute

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS fetch_queue (
	variant_id TEXT PRIMARY KEY,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	enqueued_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_queue_pending ON fetch_queue(status, enqueued_at);
`

// SQLQueue implements domain.FetchQueue
type SQLQueue struct {
	db          *sql.DB
	dialect     Dialect
	maxAttempts int
	retryDelay  time.Duration
	log         *logrus.Logger
	now         func() time.Time
}

// NewSQLQueue wraps an open database. The Postgres table comes from migrations;
// the SQLite table is created here.
func NewSQLQueue(db *sql.DB, dialect Dialect, maxAttempts int, logger *logrus.Logger) (*SQLQueue, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if logger == nil {
		logger = logrus.New()
	}
	q := &SQLQueue{
		db:          db,
		dialect:     dialect,
		maxAttempts: maxAttempts,
		retryDelay:  defaultRetryDelay,
		log:         logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if dialect == DialectSQLite {
		if _, err := db.Exec(sqliteSchema); err != nil {
			return nil, fmt.Errorf("failed to create queue schema: %w", err)
		}
	}
	return q, nil
}

// SetRetryDelay sets how long a job that already ran waits in pending before
// DequeueNext hands it out again. Non-positive values are ignored.
func (q *SQLQueue) SetRetryDelay(d time.Duration) {
	if d > 0 {
		q.retryDelay = d
	}
}

// OpenPostgres opens a lib/pq connection pool for the queue
func OpenPostgres(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// rebind rewrites ? placeholders to $n for Postgres
func (q *SQLQueue) rebind(query string) string {
	if q.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Enqueue inserts new jobs or re-arms finished ones to pending.
// Jobs currently in progress are left alone.
func (q *SQLQueue) Enqueue(ctx context.Context, variantIDs ...string) error {
	ids := make([]string, 0, len(variantIDs))
	for _, raw := range variantIDs {
		id := domain.CanonicalVariantID(raw)
		if id == "" {
			return domain.NewValidationError("variant_ids", "must be rs or i identifiers", raw)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, q.rebind(`
		INSERT INTO fetch_queue (variant_id, status, attempts, last_error, enqueued_at, updated_at)
		VALUES (?, 'pending', 0, '', ?, ?)
		ON CONFLICT (variant_id) DO UPDATE SET
			status = 'pending',
			attempts = 0,
			last_error = '',
			enqueued_at = excluded.enqueued_at,
			updated_at = excluded.updated_at
		WHERE fetch_queue.status <> 'in_progress'`))
	if err != nil {
		return fmt.Errorf("failed to prepare enqueue: %w", err)
	}
	defer stmt.Close()

	now := q.now()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, now, now); err != nil {
			return fmt.Errorf("failed to enqueue %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit enqueue: %w", err)
	}

	q.log.WithField("count", len(ids)).Debug("Variants enqueued")
	return nil
}

// DequeueNext claims the oldest pending job. The status guard on the claiming
// UPDATE keeps two workers from taking the same job. Jobs re-armed after a
// failure or a stale requeue are skipped until the retry delay has passed
// since their last update.
func (q *SQLQueue) DequeueNext(ctx context.Context) (*domain.FetchJob, error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		var job domain.FetchJob
		err := q.db.QueryRowContext(ctx, q.rebind(`
			SELECT variant_id, attempts, enqueued_at FROM fetch_queue
			WHERE status = 'pending' AND (attempts = 0 OR updated_at <= ?)
			ORDER BY enqueued_at, variant_id
			LIMIT 1`), q.now().Add(-q.retryDelay)).Scan(&job.VariantID, &job.Attempts, &job.EnqueuedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrQueueEmpty
		}
		if err != nil {
			return nil, fmt.Errorf("failed to select pending job: %w", err)
		}

		now := q.now()
		res, err := q.db.ExecContext(ctx, q.rebind(`
			UPDATE fetch_queue SET status = 'in_progress', attempts = attempts + 1, updated_at = ?
			WHERE variant_id = ? AND status = 'pending'`), now, job.VariantID)
		if err != nil {
			return nil, fmt.Errorf("failed to claim job: %w", err)
		}
		claimed, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to claim job: %w", err)
		}
		if claimed == 0 {
			continue
		}

		job.Status = domain.JobInProgress
		job.Attempts++
		job.UpdatedAt = now
		return &job, nil
	}
	return nil, domain.ErrQueueEmpty
}

// MarkResult records the outcome of a job. Failed jobs that still have
// attempts left go back to pending.
func (q *SQLQueue) MarkResult(ctx context.Context, variantID string, status domain.JobStatus, jobErr error) error {
	switch status {
	case domain.JobDone, domain.JobFailed, domain.JobNotFound:
	default:
		return domain.NewValidationError("status", "must be done, failed or not_found", status)
	}

	lastError := ""
	if jobErr != nil {
		lastError = jobErr.Error()
	}

	res, err := q.db.ExecContext(ctx, q.rebind(`
		UPDATE fetch_queue SET
			status = CASE WHEN ? = 'failed' AND attempts < ? THEN 'pending' ELSE ? END,
			last_error = ?,
			updated_at = ?
		WHERE variant_id = ?`),
		string(status), q.maxAttempts, string(status), lastError, q.now(), variantID)
	if err != nil {
		return fmt.Errorf("failed to mark job %s: %w", variantID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s: %w", variantID, domain.ErrNotFound)
	}
	return nil
}

// RequeueStale returns in-progress jobs untouched for longer than olderThan
// to pending, e.g. after a worker crash.
func (q *SQLQueue) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := q.db.ExecContext(ctx, q.rebind(`
		UPDATE fetch_queue SET status = 'pending', updated_at = ?
		WHERE status = 'in_progress' AND updated_at < ?`),
		q.now(), q.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats counts jobs per status
func (q *SQLQueue) Stats(ctx context.Context) (map[domain.JobStatus]int, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM fetch_queue GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to query queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[domain.JobStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan queue stats: %w", err)
		}
		stats[domain.JobStatus(status)] = count
	}
	return stats, rows.Err()
}

// Get returns one job's current state
func (q *SQLQueue) Get(ctx context.Context, variantID string) (*domain.FetchJob, error) {
	var job domain.FetchJob
	var status string
	err := q.db.QueryRowContext(ctx, q.rebind(`
		SELECT variant_id, status, attempts, last_error, enqueued_at, updated_at
		FROM fetch_queue WHERE variant_id = ?`), variantID).
		Scan(&job.VariantID, &status, &job.Attempts, &job.LastError, &job.EnqueuedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", variantID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}
