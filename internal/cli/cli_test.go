package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

const testWikitext = `{{Rsnum|Gene=MTHFR|Summary=folate metabolism}}
Carriers may develop [[folate deficiency]] {{PMID|12345}}.`

const testHTML = `<table>
<tr><th>Geno</th><th>Mag</th><th>Summary</th></tr>
<tr><td>(A;A)</td><td>0.5</td><td>common</td></tr>
<tr><td>(A;G)</td><td>3.2</td><td>increased risk</td></tr>
</table>`

const testReport = "# rsid\tchromosome\tposition\tgenotype\n" +
	"rs1801133\t1\t11856378\tAG\n" +
	"rs404\t1\t100\tCC\n" +
	"rs500\t2\t200\t--\n"

type stubFetcher map[string]*domain.RawPage

func (f stubFetcher) FetchPage(_ context.Context, id string) (*domain.RawPage, error) {
	if page, ok := f[id]; ok {
		return page, nil
	}
	return nil, domain.ErrPageNotFound
}

type stubEnricher struct{}

func (stubEnricher) FetchTitles(_ context.Context, ids []string) (map[string]string, error) {
	titles := make(map[string]string, len(ids))
	for _, id := range ids {
		titles[id] = "Title " + id
	}
	return titles, nil
}

func testDeps() Dependencies {
	return Dependencies{
		Fetcher: stubFetcher{
			"rs1801133": {VariantID: "rs1801133", Title: "Rs1801133", HTML: testHTML, Wikitext: testWikitext},
		},
		Enricher: stubEnricher{},
	}
}

func run(t *testing.T, dataDir string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(testDeps())
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--data-dir", dataDir, "--log-level", "error"}, args...))
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func runErr(t *testing.T, dataDir string, args ...string) error {
	t.Helper()
	cmd := NewRootCommand(testDeps())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--data-dir", dataDir, "--log-level", "error"}, args...))
	return cmd.ExecuteContext(context.Background())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestExtractCommand(t *testing.T) {
	dir := t.TempDir()
	htmlPath := writeFile(t, dir, "page.html", testHTML)
	wikiPath := writeFile(t, dir, "page.wiki", testWikitext)

	out := run(t, dir, "extract", "--id", "rs1801133", "--html", htmlPath, "--wikitext", wikiPath)

	record := decode[domain.NormalizedVariantRecord](t, out)
	assert.Equal(t, "rs1801133", record.ID)
	assert.Equal(t, "MTHFR", record.Gene)
	assert.Len(t, record.Genotypes, 2)
	assert.Nil(t, record.RawContent)

	out = run(t, dir, "extract", "--wikitext", wikiPath, "--raw")
	record = decode[domain.NormalizedVariantRecord](t, out)
	require.NotNil(t, record.RawContent)
	assert.Equal(t, testWikitext, record.RawContent.Wikitext)
}

func TestExtractCommand_Errors(t *testing.T) {
	dir := t.TempDir()

	assert.Error(t, runErr(t, dir, "extract"))
	assert.Error(t, runErr(t, dir, "extract", "--html", filepath.Join(dir, "missing.html")))
	assert.Error(t, runErr(t, dir, "extract", "unexpected-arg"))
}

func TestRiskCommand_FromFiles(t *testing.T) {
	dir := t.TempDir()
	htmlPath := writeFile(t, dir, "page.html", testHTML)

	out := run(t, dir, "risk", "rs1801133", "--html", htmlPath, "--genotype", "GA")

	result := decode[riskOutput](t, out)
	assert.Equal(t, "rs1801133", result.VariantID)
	require.Len(t, result.Risks, 2)
	assert.Equal(t, domain.LOW_RISK, result.Risks[0].RiskLevel)
	assert.Equal(t, domain.HIGH_RISK, result.Risks[1].RiskLevel)
	require.NotNil(t, result.Interpretation)
	assert.Equal(t, domain.HIGH_RISK, result.Interpretation.UserRisk)
}

func TestRiskCommand_Errors(t *testing.T) {
	dir := t.TempDir()

	assert.Error(t, runErr(t, dir, "risk"))
	assert.Error(t, runErr(t, dir, "risk", "BRCA1"))
	assert.ErrorContains(t, runErr(t, dir, "risk", "rs1"), "not in the local database")
}

func TestLiteWorkflow(t *testing.T) {
	dir := t.TempDir()
	reportPath := writeFile(t, dir, "genome.txt", testReport)

	ingest := decode[map[string]any](t, run(t, dir, "ingest", reportPath))
	assert.Equal(t, float64(2), ingest["queued"])
	assert.Equal(t, float64(1), ingest["skipped"])
	assert.Equal(t, "23andme", ingest["format"])

	synced := decode[map[string]any](t, run(t, dir, "sync"))
	assert.Equal(t, float64(2), synced["processed"])
	assert.Equal(t, map[string]any{"done": float64(1), "not_found": float64(1)}, synced["queue"])

	status := decode[map[string]any](t, run(t, dir, "status"))
	assert.Equal(t, float64(1), status["variants"])

	report := decode[reportOutput](t, run(t, dir, "report", reportPath))
	assert.Equal(t, 2, report.Calls)
	assert.Equal(t, 1, report.Stored)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, Finding{
		VariantID: "rs1801133",
		Gene:      "MTHFR",
		Genotype:  "(A;G)",
		Magnitude: 3.2,
		RiskLevel: domain.HIGH_RISK,
		Summary:   "increased risk",
	}, report.Findings[0])

	report = decode[reportOutput](t, run(t, dir, "report", reportPath, "--min-magnitude", "4"))
	assert.Empty(t, report.Findings)

	table := run(t, dir, "risk", "rs1801133", "--genotype", "AG", "-o", "table")
	assert.Contains(t, table, "GENOTYPE")
	assert.Contains(t, table, "(A;G) *")
	assert.Contains(t, table, "HIGH")

	exportPath := filepath.Join(dir, "export.jsonl")
	run(t, dir, "export", exportPath)
	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	exported := decode[domain.NormalizedVariantRecord](t, lines[0])
	assert.Equal(t, "rs1801133", exported.ID)
	require.Len(t, exported.Citations, 1)
	assert.Equal(t, "Title 12345", exported.Citations[0].Title)
}

func TestIngestCommand_Limit(t *testing.T) {
	dir := t.TempDir()
	reportPath := writeFile(t, dir, "genome.txt", testReport)

	ingest := decode[map[string]any](t, run(t, dir, "ingest", reportPath, "--limit", "1"))
	assert.Equal(t, float64(1), ingest["queued"])

	status := decode[map[string]any](t, run(t, dir, "status"))
	assert.Equal(t, map[string]any{"pending": float64(1)}, status["queue"])
}

func TestMigrateCommand_RejectsUnknownDirection(t *testing.T) {
	assert.Error(t, runErr(t, t.TempDir(), "migrate", "sideways"))
}

func TestSetupCommands(t *testing.T) {
	dir := t.TempDir()
	clientConfig := filepath.Join(dir, "client", "config.json")
	binary := writeFile(t, dir, "snpedia-mcp-lite", "#!/bin/sh\n")
	require.NoError(t, os.Chmod(binary, 0755))

	run(t, dir, "setup", "install", "--client-config", clientConfig, "--binary", binary)

	status := decode[map[string]any](t, run(t, dir, "setup", "status", "--client-config", clientConfig))
	assert.Equal(t, true, status["configured"])
	assert.Equal(t, binary, status["binary_path"])
	assert.Equal(t, dir, status["data_dir"])

	removed := decode[map[string]bool](t, run(t, dir, "setup", "remove", "--client-config", clientConfig))
	assert.True(t, removed["removed"])
}
