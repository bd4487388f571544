package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/snpedia-variant-pipeline/internal/domain"
	"github.com/snpedia-variant-pipeline/pkg/wikitext"
)

// Template names recognised on variant pages
const (
	RsnumTemplate      = "Rsnum"
	SNP23andMeTemplate = "23andMe SNP"
	PMIDAutoTemplate   = "PMID Auto"
	ClinVarTemplate    = "ClinVar"
)

// maxGenotypeLabels bounds the geno1..genoN template fields
const maxGenotypeLabels = 5

// Recognised template keys. The first non-empty key in each list wins.
var (
	idKeys              = []string{"rsid", "iid", "id"}
	geneKeys            = []string{"gene", "gene_s"}
	chromosomeKeys      = []string{"chromosome"}
	positionKeys        = []string{"position"}
	summaryKeys         = []string{"summary"}
	gmafKeys            = []string{"gmaf"}
	orientationKeys     = []string{"orientation", "stabilizedorientation"}
	referenceAlleleKeys = []string{"referenceallele", "reference allele", "ref"}
	assemblyKeys        = []string{"assembly", "genomebuild"}
	dbSNPBuildKeys      = []string{"dbsnpbuild", "dbsnp build"}

	pmidKeys  = []string{"pmid", "1"}
	titleKeys = []string{"title", "2"}

	significanceKeys = []string{"clinsig", "significance", "clinical significance"}
	diseaseKeys      = []string{"disease", "diseases", "disname"}
	omimKeys         = []string{"omim", "omimid"}
)

// ExtractTemplateFields maps the page's variant, citation and clinical templates onto a
// typed partial record. Malformed values are dropped rather than defaulted.
func ExtractTemplateFields(text string) domain.TemplateExtraction {
	var out domain.TemplateExtraction

	fields, ok := wikitext.ExtractTemplate(text, RsnumTemplate)
	if !ok {
		fields, ok = wikitext.ExtractTemplate(text, SNP23andMeTemplate)
	}
	if ok {
		out.Found = true
		out.ID = domain.CanonicalVariantID(firstField(fields, idKeys))
		out.Gene = firstField(fields, geneKeys)
		out.Chromosome = firstField(fields, chromosomeKeys)
		out.Position = parsePosition(firstField(fields, positionKeys))
		out.Summary = firstField(fields, summaryKeys)
		out.GMAF = parseUnitInterval(firstField(fields, gmafKeys))
		out.Orientation = firstField(fields, orientationKeys)
		out.ReferenceAllele = firstField(fields, referenceAlleleKeys)
		out.Assembly = firstField(fields, assemblyKeys)
		out.DBSNPBuild = firstField(fields, dbSNPBuildKeys)
		out.GenotypeLabels = genotypeLabels(fields)
	}

	for _, cite := range wikitext.ExtractTemplates(text, PMIDAutoTemplate) {
		id := firstField(cite, pmidKeys)
		if !isNumeric(id) {
			continue
		}
		out.Citations = append(out.Citations, domain.Citation{ID: id, Title: firstField(cite, titleKeys)})
	}

	if clinvar, ok := wikitext.ExtractTemplate(text, ClinVarTemplate); ok {
		info := &domain.ClinicalInfo{
			Significance: firstField(clinvar, significanceKeys),
			Disease:      firstField(clinvar, diseaseKeys),
			OMIMID:       firstField(clinvar, omimKeys),
		}
		if !info.IsEmpty() {
			out.ClinicalInfo = info
		}
	}

	return out
}

// genotypeLabels reads geno1..geno5
func genotypeLabels(fields wikitext.Fields) map[string]string {
	var labels map[string]string
	for i := 1; i <= maxGenotypeLabels; i++ {
		key := fmt.Sprintf("geno%d", i)
		value := fields.Get(key)
		if value == "" {
			continue
		}
		if labels == nil {
			labels = make(map[string]string, maxGenotypeLabels)
		}
		labels[key] = value
	}
	return labels
}

func firstField(fields wikitext.Fields, keys []string) string {
	for _, key := range keys {
		if v := fields.Get(key); v != "" {
			return v
		}
	}
	return ""
}

func parsePosition(raw string) *int64 {
	pos, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""), 10, 64)
	if err != nil || pos < 1 {
		return nil
	}
	return &pos
}

func parseUnitInterval(raw string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f != f || f < 0 || f > 1 {
		return nil
	}
	return &f
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
