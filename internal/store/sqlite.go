// Package store is the single-file SQLite record store used by the lite binaries.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

// SQLiteStore implements domain.VariantStore on a local SQLite file
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens the database file, creating it and its schema if needed
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time; sqlite serializes writes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS variants (
		id TEXT PRIMARY KEY,
		gene TEXT NOT NULL DEFAULT '',
		max_magnitude REAL,
		record TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS variant_traits (
		variant_id TEXT NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
		trait TEXT NOT NULL,
		PRIMARY KEY (variant_id, trait)
	);

	CREATE INDEX IF NOT EXISTS idx_variants_gene ON variants(gene COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_variant_traits_trait ON variant_traits(trait COLLATE NOCASE);
	`

	_, err := db.Exec(schema)
	return err
}

// DB exposes the underlying handle so the fetch queue can share the file
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Upsert replaces the stored record and its trait index
func (s *SQLiteStore) Upsert(ctx context.Context, record *domain.NormalizedVariantRecord) error {
	if record == nil || record.ID == "" {
		return domain.NewValidationError("id", "record id is required", nil)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO variants (id, gene, max_magnitude, record, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			gene = excluded.gene,
			max_magnitude = excluded.max_magnitude,
			record = excluded.record,
			updated_at = excluded.updated_at
	`, record.ID, record.Gene, record.MaxMagnitude, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert variant: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM variant_traits WHERE variant_id = ?", record.ID); err != nil {
		return fmt.Errorf("failed to clear traits: %w", err)
	}
	for _, trait := range record.Traits {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO variant_traits (variant_id, trait) VALUES (?, ?)",
			record.ID, trait)
		if err != nil {
			return fmt.Errorf("failed to insert trait: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Get returns domain.ErrNotFound when the record is missing
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.NormalizedVariantRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT record FROM variants WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("variant %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get variant: %w", err)
	}
	return decodeRecord(data)
}

// ListByGene returns records for a gene ordered by descending max magnitude
func (s *SQLiteStore) ListByGene(ctx context.Context, gene string, limit, offset int) ([]*domain.NormalizedVariantRecord, error) {
	return s.list(ctx, `
		SELECT record FROM variants
		WHERE gene = ? COLLATE NOCASE
		ORDER BY max_magnitude IS NULL, max_magnitude DESC, id
		LIMIT ? OFFSET ?
	`, strings.TrimSpace(gene), limit, offset)
}

// ListByTrait returns records linked to a trait, case-insensitively
func (s *SQLiteStore) ListByTrait(ctx context.Context, trait string, limit, offset int) ([]*domain.NormalizedVariantRecord, error) {
	return s.list(ctx, `
		SELECT v.record FROM variants v
		JOIN variant_traits t ON t.variant_id = v.id
		WHERE t.trait = ? COLLATE NOCASE
		ORDER BY v.max_magnitude IS NULL, v.max_magnitude DESC, v.id
		LIMIT ? OFFSET ?
	`, strings.TrimSpace(trait), limit, offset)
}

// Count returns the number of stored records
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM variants").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count variants: %w", err)
	}
	return n, nil
}

// Export writes every record as one JSON document per line
func (s *SQLiteStore) Export(ctx context.Context, w io.Writer) (int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT record FROM variants ORDER BY id")
	if err != nil {
		return 0, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return n, fmt.Errorf("failed to scan variant: %w", err)
		}
		if _, err := io.WriteString(w, data+"\n"); err != nil {
			return n, fmt.Errorf("failed to write record: %w", err)
		}
		n++
	}
	return n, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...interface{}) ([]*domain.NormalizedVariantRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	records := []*domain.NormalizedVariantRecord{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		record, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func decodeRecord(data string) (*domain.NormalizedVariantRecord, error) {
	var record domain.NormalizedVariantRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to decode stored record: %w", err)
	}
	return &record, nil
}
