package domain

// StructuralExtraction is what the rendered-HTML extractor found.
// Every field is optional.
type StructuralExtraction struct {
	ID             string
	Gene           string
	Chromosome     string
	Position       *int64
	Summary        string
	GMAF           *float64
	Orientation    string
	Genotypes      []GenotypeEntry
	ExternalLinks  []ExternalLink
	Citations      []Citation
	PopulationData *PopulationData
	ClinicalInfo   *ClinicalInfo
}

// TemplateExtraction is what the wikitext template fields provided.
// Found reports whether the primary variant template was present at all.
type TemplateExtraction struct {
	Found           bool
	ID              string
	Gene            string
	Chromosome      string
	Position        *int64
	Summary         string
	GMAF            *float64
	Orientation     string
	ReferenceAllele string
	Assembly        string
	DBSNPBuild      string
	// GenotypeLabels holds the geno1..geno5 template fields, keyed "geno1".
	GenotypeLabels map[string]string
	Citations      []Citation
	ClinicalInfo   *ClinicalInfo
}

// FreeTextAnnotations is what the heuristic free-text rules found in the wikitext body
type FreeTextAnnotations struct {
	Traits            []string
	GenotypeEffects   []GenotypeEffect
	RelatedVariantIDs []string
	Citations         []Citation
	RiskAllele        string
	GenderSpecific    GenderSpecificity
	ClinicalNotes     []string
}

// ExtractionInput is the unit of work for the extraction pipeline
type ExtractionInput struct {
	VariantID string `json:"variant_id"`
	HTML      string `json:"html"`
	Wikitext  string `json:"wikitext"`
}
