package markup

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

const mthfrPage = `<html><body>
<table style="border: 1px solid; background-color: #FFFFC0;">
  <tr><td>Rs1801133 is a common variant in MTHFR  with reduced enzyme activity.</td></tr>
</table>
<table class="smwtable">
  <tr><th>Geno</th><th>Mag</th><th>Summary</th></tr>
  <tr><td><a href="/index.php/Rs1801133(A;A)">(A;A)</a></td><td style="background: #ff8080">3.2</td><td>2x higher homocysteine</td></tr>
  <tr><td>(A;G)</td><td style="background: #ffffff">1.1</td><td>slightly reduced activity</td></tr>
  <tr><td>(G;G)</td><td style="background:#80FF80">0</td><td>common in clinvar</td></tr>
  <tr><td>(T;T)</td><td>n/a</td><td>no magnitude</td></tr>
  <tr><td>(C;C)</td><td>2</td></tr>
</table>
<table>
  <tr><td>Gene:</td><td><a href="/index.php/MTHFR">MTHFR</a> (methylenetetrahydrofolate reductase)</td></tr>
  <tr><td>Chromosome</td><td>1</td></tr>
  <tr><td>Position</td><td>11,796,321</td></tr>
  <tr><td>Position</td><td>999</td></tr>
  <tr><td>GMAF</td><td>0.2456</td></tr>
  <tr><td>Orientation</td><td>minus</td></tr>
  <tr><td>dbSNP</td><td><a href="https://www.ncbi.nlm.nih.gov/snp/rs1801133">rs1801133</a></td></tr>
  <tr><td>ClinVar</td><td><a href="/wiki/local">local</a> <a href="http://www.ncbi.nlm.nih.gov/clinvar/?term=rs1801133">link</a></td></tr>
</table>
<table>
  <caption>ClinVar</caption>
  <tr><td>Clinical significance</td><td>drug response</td></tr>
  <tr><td>Disease</td><td>Homocystinuria</td></tr>
  <tr><td>Disease</td><td>ignored second disease</td></tr>
</table>
<p>See <a href="https://www.omim.org/entry/607093#0003">OMIM</a>.</p>
<ul>
  <li><a href="https://www.ncbi.nlm.nih.gov/pubmed/9545397">9545397</a> A second mutation in MTHFR associated with decreased enzyme activity</li>
  <li><a href="http://www.ncbi.nlm.nih.gov/pubmed/9545397">9545397</a></li>
  <li><a href="https://pubmed.ncbi.nlm.nih.gov/11111/">Folate and homocysteine review</a></li>
  <li><a href="https://pubmed.ncbi.nlm.nih.gov/22222/">22222</a> short</li>
</ul>
<script>
var chart = { labels: ['CEU', 'HCB', 'JPT', 'YRI'],
  series: [ {name: '(A;A)', data: [10, 5, 12, 0]}, {name: '(A;G)', data: [43, 45, 44, 20]}, {name: '(G;G)', data: [47, 50, 44, 80]} ] };
</script>
</body></html>`

func TestExtractStructural(t *testing.T) {
	result := ExtractStructural(mthfrPage)
	require.NotNil(t, result)

	assert.Equal(t, "rs1801133", result.ID)
	assert.Equal(t, "MTHFR", result.Gene)
	assert.Equal(t, "1", result.Chromosome)
	require.NotNil(t, result.Position)
	assert.Equal(t, int64(11796321), *result.Position)
	require.NotNil(t, result.GMAF)
	assert.InDelta(t, 0.2456, *result.GMAF, 1e-9)
	assert.Equal(t, "minus", result.Orientation)
	assert.Equal(t, "Rs1801133 is a common variant in MTHFR with reduced enzyme activity.", result.Summary)
}

func TestExtractGenotypes(t *testing.T) {
	result := ExtractStructural(mthfrPage)

	expected := []domain.GenotypeEntry{
		{Genotype: "A;A", Magnitude: 3.2, Summary: "2x higher homocysteine", RiskColor: domain.RiskColorRed},
		{Genotype: "A;G", Magnitude: 1.1, Summary: "slightly reduced activity", RiskColor: domain.RiskColorWhite},
		{Genotype: "G;G", Magnitude: 0, Summary: "common in clinvar", RiskColor: domain.RiskColorGreen},
	}
	assert.Equal(t, expected, result.Genotypes)
}

func TestExtractGenotypes_MultipleTablesAndNesting(t *testing.T) {
	html := `<table><tr><td>
	  <table><tr><td>geno</td><td>mag</td><td>summary</td></tr>
	    <tr><td>(A;A)</td><td>1</td><td>first</td></tr></table>
	</td></tr></table>
	<table><tr><th>Summary</th><th>Magnitude</th><th>Genotype</th></tr>
	  <tr><td>(A;A)</td><td>4</td><td>second</td></tr></table>`

	result := ExtractStructural(html)

	require.Len(t, result.Genotypes, 2)
	assert.Equal(t, "first", result.Genotypes[0].Summary)
	assert.Equal(t, "second", result.Genotypes[1].Summary)
	assert.Equal(t, domain.RiskColorUnknown, result.Genotypes[1].RiskColor)
}

func TestExtractExternalLinks(t *testing.T) {
	result := ExtractStructural(mthfrPage)

	expected := []domain.ExternalLink{
		{Name: "dbSNP", URL: "https://www.ncbi.nlm.nih.gov/snp/rs1801133"},
		{Name: "ClinVar", URL: "http://www.ncbi.nlm.nih.gov/clinvar/?term=rs1801133"},
	}
	assert.Equal(t, expected, result.ExternalLinks)
}

func TestExtractCitations(t *testing.T) {
	result := ExtractStructural(mthfrPage)

	expected := []domain.Citation{
		{ID: "9545397", Title: "A second mutation in MTHFR associated with decreased enzyme activity"},
		{ID: "11111", Title: "Folate and homocysteine review"},
		{ID: "22222"},
	}
	assert.Equal(t, expected, result.Citations)
}

func TestExtractCitations_TitleBackfill(t *testing.T) {
	html := `<p><a href="https://pubmed.ncbi.nlm.nih.gov/42">42</a></p>
	<p><a href="https://pubmed.ncbi.nlm.nih.gov/42">A later descriptive title</a></p>
	<p><a href="https://pubmed.ncbi.nlm.nih.gov/42">Ignored third title</a></p>`

	result := ExtractStructural(html)

	assert.Equal(t, []domain.Citation{{ID: "42", Title: "A later descriptive title"}}, result.Citations)
}

func TestExtractCitations_HrefForms(t *testing.T) {
	tests := []struct {
		name     string
		href     string
		expected []domain.Citation
	}{
		{"legacy path", "https://www.ncbi.nlm.nih.gov/pubmed/9545397", []domain.Citation{{ID: "9545397"}}},
		{"new host with query", "https://pubmed.ncbi.nlm.nih.gov/11111/?from=snpedia", []domain.Citation{{ID: "11111"}}},
		{"entrez list_uids", "http://www.ncbi.nlm.nih.gov/entrez/query.fcgi?cmd=Retrieve&db=PubMed&list_uids=16100", []domain.Citation{{ID: "16100"}}},
		{"search by rsid", "https://www.ncbi.nlm.nih.gov/pubmed?term=rs1801133", nil},
		{"new host search", "https://pubmed.ncbi.nlm.nih.gov/?term=rs1801133", nil},
		{"gopubmed search", "http://www.gopubmed.org/search?q=rs1801133", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractStructural(`<p><a href="` + tt.href + `">search</a></p>`)
			if tt.expected == nil {
				assert.Empty(t, result.Citations)
				return
			}
			require.Len(t, result.Citations, 1)
			assert.Equal(t, tt.expected[0].ID, result.Citations[0].ID)
		})
	}
}

func TestExtractClinicalInfo(t *testing.T) {
	result := ExtractStructural(mthfrPage)

	require.NotNil(t, result.ClinicalInfo)
	assert.Equal(t, "drug response", result.ClinicalInfo.Significance)
	assert.Equal(t, "Homocystinuria", result.ClinicalInfo.Disease)
	assert.Equal(t, "607093", result.ClinicalInfo.OMIMID)
}

func TestExtractClinicalInfo_OMIMHrefForms(t *testing.T) {
	tests := []struct {
		name     string
		href     string
		expected string
	}{
		{"entry", "https://www.omim.org/entry/607093#0003", "607093"},
		{"ncbi path", "http://www.ncbi.nlm.nih.gov/omim/607093", "607093"},
		{"dispomim", "http://www.ncbi.nlm.nih.gov/entrez/dispomim.cgi?id=236250", "236250"},
		{"search by rsid", "https://www.omim.org/search?search=rs1801133", ""},
		{"ncbi search", "http://www.ncbi.nlm.nih.gov/omim?term=rs1801133", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ExtractStructural(`<p><a href="` + tt.href + `">OMIM</a></p>`).ClinicalInfo
			if tt.expected == "" {
				assert.Nil(t, info)
				return
			}
			require.NotNil(t, info)
			assert.Equal(t, tt.expected, info.OMIMID)
		})
	}
}

func TestExtractClinicalInfo_IgnoresOtherTables(t *testing.T) {
	html := `<table><tr><td>Disease</td><td>not clinical</td></tr></table>`
	assert.Nil(t, ExtractStructural(html).ClinicalInfo)
}

func TestExtractPopulationData(t *testing.T) {
	result := ExtractStructural(mthfrPage)

	require.NotNil(t, result.PopulationData)
	pop := result.PopulationData
	assert.Equal(t, []string{"CEU", "HCB", "JPT", "YRI"}, pop.Populations)
	assert.InDelta(t, 0.10, pop.Frequencies["CEU"]["geno1"], 1e-9)
	assert.InDelta(t, 0.43, pop.Frequencies["CEU"]["geno2"], 1e-9)
	assert.InDelta(t, 0.80, pop.Frequencies["YRI"]["geno3"], 1e-9)
	assert.Equal(t, map[string]string{"geno1": "(A;A)", "geno2": "(A;G)", "geno3": "(G;G)"}, pop.GenotypeLabels)
}

func TestParsePopulationScript(t *testing.T) {
	tests := []struct {
		name   string
		script string
		valid  bool
	}{
		{
			name:   "JSON arrays of fractions",
			script: `draw({"labels": ["CEU", "YRI"], "series": [[0.25, 0.5], [0.75, 0.5]]});`,
			valid:  true,
		},
		{
			name:   "Series length mismatch",
			script: `x = {labels: ['CEU', 'YRI'], series: [[0.25], [0.75, 0.5]]};`,
			valid:  false,
		},
		{
			name:   "Non-numeric value",
			script: `x = {labels: ['CEU'], series: [['high']]};`,
			valid:  false,
		},
		{
			name:   "Out of range",
			script: `x = {labels: ['CEU'], series: [[150]]};`,
			valid:  false,
		},
		{
			name:   "Negative value",
			script: `x = {labels: ['CEU'], series: [[-0.1]]};`,
			valid:  false,
		},
		{
			name:   "Duplicate labels",
			script: `x = {labels: ['CEU', 'CEU'], series: [[0.1, 0.2]]};`,
			valid:  false,
		},
		{
			name:   "Unterminated series",
			script: `x = {labels: ['CEU'], series: [[0.1]`,
			valid:  false,
		},
		{
			name:   "No labels",
			script: `x = {series: [[0.1]]};`,
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := parsePopulationScript(tt.script)
			if tt.valid {
				require.NotNil(t, data)
				assert.Equal(t, []string{"CEU", "YRI"}, data.Populations)
				assert.InDelta(t, 0.75, data.Frequencies["CEU"]["geno2"], 1e-9)
				assert.Nil(t, data.GenotypeLabels)
			} else {
				assert.Nil(t, data)
			}
		})
	}
}

func TestParsePopulationScript_ColonsInsideStrings(t *testing.T) {
	script := `chart({labels: ['CEU', 'YRI'], series: [
		{name: 'note, x: y', data: [0.25, 0.5]},
		{name: "it's {a, b: c}", data: [0.75, 0.5]}
	]});`

	data := parsePopulationScript(script)

	require.NotNil(t, data)
	assert.Equal(t, []string{"CEU", "YRI"}, data.Populations)
	assert.Equal(t, map[string]string{"geno1": "note, x: y", "geno2": "it's {a, b: c}"}, data.GenotypeLabels)
	assert.InDelta(t, 0.25, data.Frequencies["CEU"]["geno1"], 1e-9)
}

func TestToJSON(t *testing.T) {
	tests := []struct {
		name     string
		literal  string
		expected string
	}{
		{"single quotes", `['a', 'b']`, `["a", "b"]`},
		{"bare keys", `[{name: 'x', data: [1]}]`, `[{"name": "x", "data": [1]}]`},
		{"escaped quote", `['it\'s']`, `["it's"]`},
		{"double quote inside single", `['say "hi"']`, `["say \"hi\""]`},
		{"key-like text in string", `['a, b: c']`, `["a, b: c"]`},
		{"bare literals", `[null, true]`, `[null, true]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, toJSON(tt.literal))
		})
	}
}

func TestExtractStructural_Empty(t *testing.T) {
	for _, html := range []string{"", "<p>no tables here</p>", "<table><tr><td>unclosed"} {
		result := ExtractStructural(html)
		require.NotNil(t, result)
		assert.Empty(t, result.ID)
		assert.Empty(t, result.Genotypes)
		assert.Empty(t, result.Citations)
		assert.Nil(t, result.Position)
		assert.Nil(t, result.PopulationData)
		assert.Nil(t, result.ClinicalInfo)
	}
}

func TestExtractDisplayedID_IgnoresScriptsAndLeavesDocumentIntact(t *testing.T) {
	html := `<script>var id = "rs999";</script><p>Variant Rs42 here</p>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	assert.Equal(t, "rs42", extractDisplayedID(doc))
	assert.Equal(t, 1, doc.Find("script").Length())
}
