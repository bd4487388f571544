package service

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

const scenarioHTML = `<table>
<tr><th>Geno</th><th>Mag</th><th>Summary</th></tr>
<tr><td>(A;A)</td><td>0.5</td><td>common</td></tr>
<tr><td>(A;G)</td><td>3.2</td><td>increased risk</td></tr>
</table>`

const scenarioWikitext = `{{Rsnum|Gene=MTHFR|Summary=folate metabolism}}
Carriers may develop [[folate deficiency]] {{PMID|12345|title=Some Study}}.`

func newTestExtractionService() *ExtractionService {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	return NewExtractionService(logger)
}

func TestExtract_Scenario(t *testing.T) {
	svc := newTestExtractionService()

	record := svc.Extract(domain.ExtractionInput{
		VariantID: "rs1801133",
		HTML:      scenarioHTML,
		Wikitext:  scenarioWikitext,
	})

	assert.Equal(t, "rs1801133", record.ID)
	assert.Equal(t, "MTHFR", record.Gene)
	assert.Equal(t, "folate metabolism", record.Summary)
	require.Len(t, record.Genotypes, 2)
	assert.Equal(t, 0.5, record.Genotypes[0].Magnitude)
	assert.Equal(t, 3.2, record.Genotypes[1].Magnitude)
	require.NotNil(t, record.MaxMagnitude)
	assert.Equal(t, 3.2, *record.MaxMagnitude)
	assert.Equal(t, []string{"folate deficiency"}, record.Traits)
	assert.Equal(t, []domain.Citation{{ID: "12345", Title: "Some Study"}}, record.Citations)
	assert.Equal(t, domain.Provenance{
		HasStructuralData: false,
		HasTemplateData:   true,
		GenotypeCount:     2,
		ExternalLinkCount: 0,
	}, record.Provenance)
	require.NotNil(t, record.RawContent)
	assert.Equal(t, scenarioHTML, record.RawContent.HTML)
	assert.Equal(t, scenarioWikitext, record.RawContent.Wikitext)
}

func TestExtract_ScenarioWithDisplayedID(t *testing.T) {
	svc := newTestExtractionService()

	record := svc.Extract(domain.ExtractionInput{
		VariantID: "Rs1801133",
		HTML:      "<p>rs1801133</p>" + scenarioHTML,
		Wikitext:  scenarioWikitext,
	})

	assert.True(t, record.Provenance.HasStructuralData)
	assert.Equal(t, "rs1801133", record.ID)
}

func TestExtract_InputKeyOutranksPageIDs(t *testing.T) {
	logger, hook := test.NewNullLogger()
	svc := NewExtractionService(logger)

	tests := []struct {
		name     string
		input    domain.ExtractionInput
		expected string
	}{
		{
			name: "related variant mentioned first",
			input: domain.ExtractionInput{
				VariantID: "rs1801133",
				HTML:      "<p>Often tested together with rs1801131.</p>" + scenarioHTML,
				Wikitext:  scenarioWikitext,
			},
			expected: "rs1801133",
		},
		{
			name: "template names another variant",
			input: domain.ExtractionInput{
				VariantID: "rs1801133",
				Wikitext:  "{{Rsnum|rsid=1801131|Gene=MTHFR}}",
			},
			expected: "rs1801133",
		},
		{
			name:     "no input key uses the page id",
			input:    domain.ExtractionInput{HTML: "<p>rs1801131</p>"},
			expected: "rs1801131",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, svc.Extract(tt.input).ID)
		})
	}

	var mismatches int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["page_id"] == "rs1801131" {
			mismatches++
		}
	}
	assert.Equal(t, 2, mismatches)
}

func TestExtract_Idempotent(t *testing.T) {
	svc := newTestExtractionService()
	input := domain.ExtractionInput{VariantID: "rs1801133", HTML: scenarioHTML, Wikitext: scenarioWikitext}

	assert.Equal(t, svc.Extract(input), svc.Extract(input))
}

func TestExtract_GracefulDegradation(t *testing.T) {
	svc := newTestExtractionService()

	record := svc.Extract(domain.ExtractionInput{
		VariantID: "rs42",
		HTML:      "<div><p>nothing to see</p></div>",
		Wikitext:  "Plain prose with {{unbalanced braces and no templates.",
	})

	require.NotNil(t, record)
	assert.Equal(t, "rs42", record.ID, "falls back to the input key")
	assert.Empty(t, record.Genotypes)
	assert.Empty(t, record.Citations)
	assert.Empty(t, record.Gene)
	assert.Empty(t, record.Chromosome)
	assert.Nil(t, record.Position)
	assert.Nil(t, record.MaxMagnitude)
	assert.Equal(t, domain.Provenance{}, record.Provenance)
}

func TestExtract_EmptyInput(t *testing.T) {
	record := newTestExtractionService().Extract(domain.ExtractionInput{})

	require.NotNil(t, record)
	assert.Empty(t, record.ID)
	assert.Equal(t, domain.Provenance{}, record.Provenance)
}

func TestExtract_ConcurrentCallsAreIndependent(t *testing.T) {
	svc := newTestExtractionService()
	input := domain.ExtractionInput{VariantID: "rs1801133", HTML: scenarioHTML, Wikitext: scenarioWikitext}
	want := svc.Extract(input)

	var wg sync.WaitGroup
	results := make([]*domain.NormalizedVariantRecord, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Extract(input)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestGuarded_RecoversAndLogs(t *testing.T) {
	logger, hook := test.NewNullLogger()
	svc := NewExtractionService(logger)

	result := guarded(svc, "structural", "rs1", func() *domain.StructuralExtraction {
		panic("boom")
	})

	assert.Nil(t, result)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "structural", hook.LastEntry().Data["stage"])
	assert.Equal(t, "boom", hook.LastEntry().Data["panic"])
}
