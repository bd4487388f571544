package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/snpedia-variant-pipeline/internal/database"
	"github.com/snpedia-variant-pipeline/internal/domain"
)

// generateTestPassword creates a random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) (*database.DB, func()) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    testPassword,
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: 30 * time.Minute,
		SSLMode:     "disable",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	runner, err := database.NewMigrationRunner(config.URL(), "", logger)
	require.NoError(t, err)
	require.NoError(t, runner.Up(ctx))
	require.NoError(t, runner.Close())

	db, err := database.NewConnection(ctx, config, logger)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}
	return db, cleanup
}

func sampleRecord() *domain.NormalizedVariantRecord {
	position := int64(11856378)
	magnitude := 3.2
	gmaf := 0.24
	return &domain.NormalizedVariantRecord{
		ID:           "rs1801133",
		Gene:         "MTHFR",
		Chromosome:   "1",
		Position:     &position,
		Summary:      "folate metabolism",
		MaxMagnitude: &magnitude,
		Genotypes: []domain.GenotypeEntry{
			{Genotype: "A;A", Magnitude: 3.2, Summary: "increased risk", RiskColor: domain.RiskColorRed},
			{Genotype: "A;G", Magnitude: 1.1, Summary: "carrier", RiskColor: domain.RiskColorWhite},
		},
		RiskAllele:   "A",
		ClinicalInfo: &domain.ClinicalInfo{Significance: "drug response", OMIMID: "607093"},
		PopulationData: &domain.PopulationData{
			Populations:    []string{"CEU"},
			Frequencies:    map[string]map[string]float64{"CEU": {"geno1": 0.1, "geno2": 0.9}},
			GenotypeLabels: map[string]string{"geno1": "(A;A)", "geno2": "(G;G)"},
		},
		GMAF:              &gmaf,
		ExternalLinks:     []domain.ExternalLink{{Name: "dbSNP", URL: "https://www.ncbi.nlm.nih.gov/snp/rs1801133"}},
		Citations:         []domain.Citation{{ID: "12345", Title: "Some Study"}},
		Orientation:       "minus",
		Traits:            []string{"folate deficiency"},
		GenotypeEffects:   []domain.GenotypeEffect{{VariantID: "rs1801131", Genotype: "(C;C)", Effect: "compound"}},
		RelatedVariantIDs: []string{"rs1801131"},
		GenderSpecific:    domain.GenderBoth,
		Provenance:        domain.Provenance{HasStructuralData: true, HasTemplateData: true, GenotypeCount: 2, ExternalLinkCount: 1},
		RawContent:        &domain.RawContent{HTML: "<p/>", Wikitext: "{{Rsnum}}"},
	}
}

func TestVariantRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewVariantRepository(db.Pool, logger)
	ctx := context.Background()

	t.Run("upsert and get", func(t *testing.T) {
		record := sampleRecord()
		require.NoError(t, repo.Upsert(ctx, record))

		got, err := repo.Get(ctx, "rs1801133")
		require.NoError(t, err)
		assert.Equal(t, record, got)
	})

	t.Run("upsert replaces child collections", func(t *testing.T) {
		record := sampleRecord()
		record.Genotypes = record.Genotypes[:1]
		record.Citations = []domain.Citation{}
		record.Traits = []string{"homocysteine"}
		record.RawContent = nil
		require.NoError(t, repo.Upsert(ctx, record))

		got, err := repo.Get(ctx, "rs1801133")
		require.NoError(t, err)
		assert.Len(t, got.Genotypes, 1)
		assert.Empty(t, got.Citations)
		assert.Equal(t, []string{"homocysteine"}, got.Traits)
		assert.Nil(t, got.RawContent)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, "rs0")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.True(t, IsNotFound(err))
	})

	t.Run("list by gene orders by magnitude", func(t *testing.T) {
		low := 0.5
		require.NoError(t, repo.Upsert(ctx, &domain.NormalizedVariantRecord{ID: "rs1801131", Gene: "MTHFR", MaxMagnitude: &low}))
		require.NoError(t, repo.Upsert(ctx, &domain.NormalizedVariantRecord{ID: "rs7412", Gene: "APOE"}))

		records, err := repo.ListByGene(ctx, "mthfr", 10, 0)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "rs1801133", records[0].ID)
		assert.Equal(t, "rs1801131", records[1].ID)
		assert.Empty(t, records[1].Genotypes)

		page, err := repo.ListByGene(ctx, "MTHFR", 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "rs1801131", page[0].ID)
	})

	t.Run("list by trait", func(t *testing.T) {
		records, err := repo.ListByTrait(ctx, "Homocysteine", 10, 0)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "rs1801133", records[0].ID)
	})

	t.Run("rejects record without id", func(t *testing.T) {
		var validationErr *domain.ValidationError
		assert.ErrorAs(t, repo.Upsert(ctx, &domain.NormalizedVariantRecord{}), &validationErr)
	})
}
