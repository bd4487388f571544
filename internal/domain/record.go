package domain

import (
	"strings"
)

// RiskColor is the colour marker SNPedia puts on a genotype's magnitude cell
type RiskColor string

const (
	RiskColorGreen   RiskColor = "green"
	RiskColorWhite   RiskColor = "white"
	RiskColorRed     RiskColor = "red"
	RiskColorUnknown RiskColor = "unknown"
)

// GenderSpecificity records whether a variant's effect is described as sex specific
type GenderSpecificity string

const (
	GenderMale   GenderSpecificity = "male"
	GenderFemale GenderSpecificity = "female"
	GenderBoth   GenderSpecificity = "both"
)

// NormalizedVariantRecord is the single normalized view of one SNPedia variant page.
// Empty strings and nil pointers mean "unknown", never zero.
type NormalizedVariantRecord struct {
	ID                string            `json:"id"`
	Gene              string            `json:"gene,omitempty"`
	Chromosome        string            `json:"chromosome,omitempty"`
	Position          *int64            `json:"position,omitempty"`
	Summary           string            `json:"summary,omitempty"`
	Genotypes         []GenotypeEntry   `json:"genotypes"`
	MaxMagnitude      *float64          `json:"max_magnitude,omitempty"`
	RiskAllele        string            `json:"risk_allele,omitempty"`
	ClinicalInfo      *ClinicalInfo     `json:"clinical_info,omitempty"`
	PopulationData    *PopulationData   `json:"population_data,omitempty"`
	GMAF              *float64          `json:"gmaf,omitempty"`
	ExternalLinks     []ExternalLink    `json:"external_links"`
	Citations         []Citation        `json:"citations"`
	Orientation       string            `json:"orientation,omitempty"`
	ReferenceAllele   string            `json:"reference_allele,omitempty"`
	Assembly          string            `json:"assembly,omitempty"`
	DBSNPBuild        string            `json:"dbsnp_build,omitempty"`
	Traits            []string          `json:"traits"`
	GenotypeEffects   []GenotypeEffect  `json:"genotype_effects"`
	RelatedVariantIDs []string          `json:"related_variant_ids"`
	GenderSpecific    GenderSpecificity `json:"gender_specific,omitempty"`
	ClinicalNotes     []string          `json:"clinical_notes,omitempty"`
	Provenance        Provenance        `json:"provenance"`
	RawContent        *RawContent       `json:"raw_content,omitempty"`
}

// GenotypeEntry is one row of a genotype/magnitude/summary table
type GenotypeEntry struct {
	Genotype  string    `json:"genotype"`
	Magnitude float64   `json:"magnitude"`
	Summary   string    `json:"summary"`
	RiskColor RiskColor `json:"risk_color"`
}

// ClinicalInfo holds clinical database annotations for a variant
type ClinicalInfo struct {
	Significance string `json:"significance,omitempty"`
	Disease      string `json:"disease,omitempty"`
	OMIMID       string `json:"omim_id,omitempty"`
}

// IsEmpty reports whether no clinical field is known
func (c *ClinicalInfo) IsEmpty() bool {
	return c == nil || (c.Significance == "" && c.Disease == "" && c.OMIMID == "")
}

// PopulationData holds per-population genotype frequencies.
// Frequencies is keyed by population label, then by series key (geno1, geno2, ...).
type PopulationData struct {
	Populations    []string                      `json:"populations"`
	Frequencies    map[string]map[string]float64 `json:"frequencies"`
	GenotypeLabels map[string]string             `json:"genotype_labels,omitempty"`
}

// ExternalLink is a named link to another database
type ExternalLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Citation is a PubMed reference
type Citation struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// GenotypeEffect is a genotype-specific cross reference found in page text
type GenotypeEffect struct {
	VariantID string `json:"variant_id"`
	Genotype  string `json:"genotype"`
	Effect    string `json:"effect"`
}

// Provenance describes which extraction sources contributed to a record
type Provenance struct {
	HasStructuralData bool `json:"has_structural_data"`
	HasTemplateData   bool `json:"has_template_data"`
	GenotypeCount     int  `json:"genotype_count"`
	ExternalLinkCount int  `json:"external_link_count"`
}

// RawContent carries the original page inputs for audit
type RawContent struct {
	HTML     string `json:"html"`
	Wikitext string `json:"wikitext"`
}

// RawPage is a fetched SNPedia page, both representations of one revision
type RawPage struct {
	VariantID string `json:"variant_id"`
	Title     string `json:"title"`
	HTML      string `json:"html"`
	Wikitext  string `json:"wikitext"`
}

// CanonicalVariantID lowercases an identifier and prefixes bare numbers with "rs".
// It returns "" for values that are not rs or i identifiers.
func CanonicalVariantID(raw string) string {
	id := strings.ToLower(strings.TrimSpace(raw))
	if id == "" {
		return ""
	}
	if isDigits(id) {
		return "rs" + id
	}
	for _, prefix := range []string{"rs", "i"} {
		if strings.HasPrefix(id, prefix) && isDigits(id[len(prefix):]) {
			return id
		}
	}
	return ""
}

func isDigits(s string) bool {
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
