package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

// annotations groups the free-text fields stored together in one JSONB column
type annotations struct {
	GenotypeEffects   []domain.GenotypeEffect `json:"genotype_effects"`
	RelatedVariantIDs []string                `json:"related_variant_ids"`
	ClinicalNotes     []string                `json:"clinical_notes,omitempty"`
}

// querier is satisfied by both the pool and a transaction
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// VariantRepository persists normalized SNPedia records in Postgres
type VariantRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewVariantRepository creates a new variant repository
func NewVariantRepository(db *pgxpool.Pool, logger *logrus.Logger) *VariantRepository {
	return &VariantRepository{
		db:  db,
		log: logger,
	}
}

const upsertVariantSQL = `
	INSERT INTO snpedia_variants (
		id, gene, chromosome, position, summary, max_magnitude, risk_allele, gmaf,
		orientation, reference_allele, assembly, dbsnp_build, gender_specific,
		clinical_info, population_data, annotations, provenance, raw_html, raw_wikitext
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
	)
	ON CONFLICT (id) DO UPDATE SET
		gene = EXCLUDED.gene,
		chromosome = EXCLUDED.chromosome,
		position = EXCLUDED.position,
		summary = EXCLUDED.summary,
		max_magnitude = EXCLUDED.max_magnitude,
		risk_allele = EXCLUDED.risk_allele,
		gmaf = EXCLUDED.gmaf,
		orientation = EXCLUDED.orientation,
		reference_allele = EXCLUDED.reference_allele,
		assembly = EXCLUDED.assembly,
		dbsnp_build = EXCLUDED.dbsnp_build,
		gender_specific = EXCLUDED.gender_specific,
		clinical_info = EXCLUDED.clinical_info,
		population_data = EXCLUDED.population_data,
		annotations = EXCLUDED.annotations,
		provenance = EXCLUDED.provenance,
		raw_html = EXCLUDED.raw_html,
		raw_wikitext = EXCLUDED.raw_wikitext,
		updated_at = NOW()`

var childTables = []string{"variant_genotypes", "variant_citations", "variant_traits", "variant_links"}

// Upsert writes the record and replaces its child rows in one transaction
func (r *VariantRepository) Upsert(ctx context.Context, record *domain.NormalizedVariantRecord) error {
	if record == nil || record.ID == "" {
		return domain.NewValidationError("id", "record id is required", nil)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var rawHTML, rawWikitext *string
	if record.RawContent != nil {
		rawHTML, rawWikitext = &record.RawContent.HTML, &record.RawContent.Wikitext
	}
	var clinical *domain.ClinicalInfo
	if !record.ClinicalInfo.IsEmpty() {
		clinical = record.ClinicalInfo
	}

	_, err = tx.Exec(ctx, upsertVariantSQL,
		record.ID,
		record.Gene,
		record.Chromosome,
		record.Position,
		record.Summary,
		record.MaxMagnitude,
		record.RiskAllele,
		record.GMAF,
		record.Orientation,
		record.ReferenceAllele,
		record.Assembly,
		record.DBSNPBuild,
		string(record.GenderSpecific),
		clinical,
		record.PopulationData,
		annotations{
			GenotypeEffects:   nonNil(record.GenotypeEffects),
			RelatedVariantIDs: nonNil(record.RelatedVariantIDs),
			ClinicalNotes:     record.ClinicalNotes,
		},
		record.Provenance,
		rawHTML,
		rawWikitext,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"variant_id": record.ID,
			"error":      err,
		}).Error("Failed to upsert variant")
		return fmt.Errorf("upserting variant: %w", err)
	}

	for _, table := range childTables {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE variant_id = $1", record.ID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	batch := &pgx.Batch{}
	for i, g := range record.Genotypes {
		batch.Queue(`INSERT INTO variant_genotypes (variant_id, ordinal, genotype, magnitude, summary, risk_color)
			VALUES ($1, $2, $3, $4, $5, $6)`, record.ID, i, g.Genotype, g.Magnitude, g.Summary, string(g.RiskColor))
	}
	for i, c := range record.Citations {
		batch.Queue(`INSERT INTO variant_citations (variant_id, ordinal, pmid, title)
			VALUES ($1, $2, $3, $4)`, record.ID, i, c.ID, c.Title)
	}
	for i, trait := range record.Traits {
		batch.Queue(`INSERT INTO variant_traits (variant_id, ordinal, trait)
			VALUES ($1, $2, $3)`, record.ID, i, trait)
	}
	for i, link := range record.ExternalLinks {
		batch.Queue(`INSERT INTO variant_links (variant_id, ordinal, name, url)
			VALUES ($1, $2, $3, $4)`, record.ID, i, link.Name, link.URL)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting child rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"variant_id": record.ID,
		"gene":       record.Gene,
		"genotypes":  len(record.Genotypes),
	}).Debug("Variant upserted")

	return nil
}

const selectVariantSQL = `
	SELECT id, COALESCE(gene, ''), COALESCE(chromosome, ''), position, COALESCE(summary, ''),
		max_magnitude, COALESCE(risk_allele, ''), gmaf, COALESCE(orientation, ''),
		COALESCE(reference_allele, ''), COALESCE(assembly, ''), COALESCE(dbsnp_build, ''),
		COALESCE(gender_specific, ''), clinical_info, population_data, annotations, provenance,
		raw_html, raw_wikitext
	FROM snpedia_variants`

// Get retrieves one record with its child collections
func (r *VariantRepository) Get(ctx context.Context, id string) (*domain.NormalizedVariantRecord, error) {
	records, err := r.queryRecords(ctx, selectVariantSQL+" WHERE id = $1", id)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"variant_id": id,
			"error":      err,
		}).Error("Failed to get variant")
		return nil, fmt.Errorf("getting variant: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("variant %s: %w", id, domain.ErrNotFound)
	}
	return records[0], nil
}

// ListByGene returns records for a gene ordered by descending max magnitude
func (r *VariantRepository) ListByGene(ctx context.Context, gene string, limit, offset int) ([]*domain.NormalizedVariantRecord, error) {
	query := selectVariantSQL + `
		WHERE LOWER(gene) = LOWER($1)
		ORDER BY max_magnitude DESC NULLS LAST, id
		LIMIT $2 OFFSET $3`

	records, err := r.queryRecords(ctx, query, strings.TrimSpace(gene), limit, offset)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"gene":  gene,
			"error": err,
		}).Error("Failed to list variants by gene")
		return nil, fmt.Errorf("listing variants by gene: %w", err)
	}
	return records, nil
}

// ListByTrait returns records carrying a trait, case-insensitively
func (r *VariantRepository) ListByTrait(ctx context.Context, trait string, limit, offset int) ([]*domain.NormalizedVariantRecord, error) {
	query := selectVariantSQL + `
		WHERE id IN (SELECT variant_id FROM variant_traits WHERE LOWER(trait) = LOWER($1))
		ORDER BY max_magnitude DESC NULLS LAST, id
		LIMIT $2 OFFSET $3`

	records, err := r.queryRecords(ctx, query, strings.TrimSpace(trait), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing variants by trait: %w", err)
	}
	return records, nil
}

// Close is a no-op; the pool belongs to database.DB
func (r *VariantRepository) Close() error {
	return nil
}

func (r *VariantRepository) queryRecords(ctx context.Context, query string, args ...any) ([]*domain.NormalizedVariantRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.NormalizedVariantRecord
	byID := make(map[string]*domain.NormalizedVariantRecord)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning variant row: %w", err)
		}
		records = append(records, record)
		byID[record.ID] = record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating variant rows: %w", err)
	}
	rows.Close()

	if len(records) == 0 {
		return records, nil
	}
	if err := loadChildren(ctx, r.db, byID); err != nil {
		return nil, err
	}
	return records, nil
}

func scanRecord(row pgx.Row) (*domain.NormalizedVariantRecord, error) {
	var (
		record      domain.NormalizedVariantRecord
		gender      string
		notes       annotations
		rawHTML     *string
		rawWikitext *string
	)
	err := row.Scan(
		&record.ID,
		&record.Gene,
		&record.Chromosome,
		&record.Position,
		&record.Summary,
		&record.MaxMagnitude,
		&record.RiskAllele,
		&record.GMAF,
		&record.Orientation,
		&record.ReferenceAllele,
		&record.Assembly,
		&record.DBSNPBuild,
		&gender,
		&record.ClinicalInfo,
		&record.PopulationData,
		&notes,
		&record.Provenance,
		&rawHTML,
		&rawWikitext,
	)
	if err != nil {
		return nil, err
	}

	record.GenderSpecific = domain.GenderSpecificity(gender)
	record.GenotypeEffects = nonNil(notes.GenotypeEffects)
	record.RelatedVariantIDs = nonNil(notes.RelatedVariantIDs)
	record.ClinicalNotes = notes.ClinicalNotes
	if rawHTML != nil || rawWikitext != nil {
		record.RawContent = &domain.RawContent{HTML: deref(rawHTML), Wikitext: deref(rawWikitext)}
	}
	record.Genotypes = []domain.GenotypeEntry{}
	record.Citations = []domain.Citation{}
	record.Traits = []string{}
	record.ExternalLinks = []domain.ExternalLink{}
	return &record, nil
}

// loadChildren fills the child collections of every record in byID
func loadChildren(ctx context.Context, q querier, byID map[string]*domain.NormalizedVariantRecord) error {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := q.Query(ctx, `SELECT variant_id, genotype, magnitude, summary, risk_color
		FROM variant_genotypes WHERE variant_id = ANY($1) ORDER BY variant_id, ordinal`, ids)
	if err != nil {
		return fmt.Errorf("loading genotypes: %w", err)
	}
	var g domain.GenotypeEntry
	var color, variantID string
	_, err = pgx.ForEachRow(rows, []any{&variantID, &g.Genotype, &g.Magnitude, &g.Summary, &color}, func() error {
		g.RiskColor = domain.RiskColor(color)
		byID[variantID].Genotypes = append(byID[variantID].Genotypes, g)
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading genotypes: %w", err)
	}

	rows, err = q.Query(ctx, `SELECT variant_id, pmid, title
		FROM variant_citations WHERE variant_id = ANY($1) ORDER BY variant_id, ordinal`, ids)
	if err != nil {
		return fmt.Errorf("loading citations: %w", err)
	}
	var c domain.Citation
	_, err = pgx.ForEachRow(rows, []any{&variantID, &c.ID, &c.Title}, func() error {
		byID[variantID].Citations = append(byID[variantID].Citations, c)
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading citations: %w", err)
	}

	rows, err = q.Query(ctx, `SELECT variant_id, trait
		FROM variant_traits WHERE variant_id = ANY($1) ORDER BY variant_id, ordinal`, ids)
	if err != nil {
		return fmt.Errorf("loading traits: %w", err)
	}
	var trait string
	_, err = pgx.ForEachRow(rows, []any{&variantID, &trait}, func() error {
		byID[variantID].Traits = append(byID[variantID].Traits, trait)
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading traits: %w", err)
	}

	rows, err = q.Query(ctx, `SELECT variant_id, name, url
		FROM variant_links WHERE variant_id = ANY($1) ORDER BY variant_id, ordinal`, ids)
	if err != nil {
		return fmt.Errorf("loading links: %w", err)
	}
	var link domain.ExternalLink
	_, err = pgx.ForEachRow(rows, []any{&variantID, &link.Name, &link.URL}, func() error {
		byID[variantID].ExternalLinks = append(byID[variantID].ExternalLinks, link)
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading links: %w", err)
	}
	return nil
}

// IsNotFound reports whether err means the variant is not stored
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
