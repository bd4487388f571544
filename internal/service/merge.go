package service

import (
	"strings"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

// MergeExtractions combines the three partial extractions into one record.
// Template values win over structural ones field by field; genotypes, links and
// population data are structural only; annotations come from free text only.
// Any argument may be nil.
func MergeExtractions(
	structural *domain.StructuralExtraction,
	template *domain.TemplateExtraction,
	freeText *domain.FreeTextAnnotations,
) *domain.NormalizedVariantRecord {
	if structural == nil {
		structural = &domain.StructuralExtraction{}
	}
	if template == nil {
		template = &domain.TemplateExtraction{}
	}
	if freeText == nil {
		freeText = &domain.FreeTextAnnotations{}
	}

	record := &domain.NormalizedVariantRecord{
		ID:                mergeID(template.ID, structural.ID),
		Gene:              preferString(template.Gene, structural.Gene),
		Chromosome:        preferString(template.Chromosome, structural.Chromosome),
		Position:          preferInt(template.Position, structural.Position),
		Summary:           preferString(template.Summary, structural.Summary),
		GMAF:              preferFloat(template.GMAF, structural.GMAF),
		Orientation:       preferString(template.Orientation, structural.Orientation),
		ReferenceAllele:   template.ReferenceAllele,
		Assembly:          template.Assembly,
		DBSNPBuild:        template.DBSNPBuild,
		ClinicalInfo:      mergeClinicalInfo(template.ClinicalInfo, structural.ClinicalInfo),
		PopulationData:    mergePopulationData(structural.PopulationData, template.GenotypeLabels),
		Genotypes:         dedupeGenotypes(structural.Genotypes),
		ExternalLinks:     append([]domain.ExternalLink{}, structural.ExternalLinks...),
		Citations:         mergeCitations(structural.Citations, template.Citations, freeText.Citations),
		RiskAllele:        freeText.RiskAllele,
		Traits:            normalizeTraits(freeText.Traits),
		GenotypeEffects:   append([]domain.GenotypeEffect{}, freeText.GenotypeEffects...),
		RelatedVariantIDs: uniqueStrings(freeText.RelatedVariantIDs),
		GenderSpecific:    freeText.GenderSpecific,
		ClinicalNotes:     uniqueStrings(freeText.ClinicalNotes),
	}
	if len(record.ClinicalNotes) == 0 {
		record.ClinicalNotes = nil
	}

	record.MaxMagnitude = maxMagnitude(record.Genotypes)
	record.Provenance = domain.Provenance{
		HasStructuralData: structural.ID != "",
		HasTemplateData:   template.Found,
		GenotypeCount:     len(record.Genotypes),
		ExternalLinkCount: len(record.ExternalLinks),
	}
	return record
}

// mergeID uses the template id only when it canonicalises to something non-empty
func mergeID(templateID, structuralID string) string {
	if id := domain.CanonicalVariantID(templateID); id != "" {
		return id
	}
	if id := domain.CanonicalVariantID(structuralID); id != "" {
		return id
	}
	return strings.ToLower(strings.TrimSpace(structuralID))
}

func preferString(template, structural string) string {
	if template != "" {
		return template
	}
	return structural
}

func preferInt(template, structural *int64) *int64 {
	if template != nil {
		v := *template
		return &v
	}
	if structural != nil {
		v := *structural
		return &v
	}
	return nil
}

func preferFloat(template, structural *float64) *float64 {
	if template != nil {
		v := *template
		return &v
	}
	if structural != nil {
		v := *structural
		return &v
	}
	return nil
}

func mergeClinicalInfo(template, structural *domain.ClinicalInfo) *domain.ClinicalInfo {
	if template == nil {
		template = &domain.ClinicalInfo{}
	}
	if structural == nil {
		structural = &domain.ClinicalInfo{}
	}
	merged := &domain.ClinicalInfo{
		Significance: preferString(template.Significance, structural.Significance),
		Disease:      preferString(template.Disease, structural.Disease),
		OMIMID:       preferString(template.OMIMID, structural.OMIMID),
	}
	if merged.IsEmpty() {
		return nil
	}
	return merged
}

// mergePopulationData copies the structural series and labels them, template labels first
func mergePopulationData(structural *domain.PopulationData, templateLabels map[string]string) *domain.PopulationData {
	if structural == nil || len(structural.Populations) == 0 {
		return nil
	}

	merged := &domain.PopulationData{
		Populations: append([]string{}, structural.Populations...),
		Frequencies: make(map[string]map[string]float64, len(structural.Frequencies)),
	}
	seriesKeys := make(map[string]bool)
	for population, freqs := range structural.Frequencies {
		copied := make(map[string]float64, len(freqs))
		for key, value := range freqs {
			copied[key] = value
			seriesKeys[key] = true
		}
		merged.Frequencies[population] = copied
	}

	labels := make(map[string]string)
	for key, label := range structural.GenotypeLabels {
		labels[key] = label
	}
	for key, label := range templateLabels {
		if seriesKeys[key] {
			labels[key] = label
		}
	}
	if len(labels) > 0 {
		merged.GenotypeLabels = labels
	}
	return merged
}

// dedupeGenotypes keeps encounter order and drops only exact genotype+summary repeats
func dedupeGenotypes(entries []domain.GenotypeEntry) []domain.GenotypeEntry {
	out := make([]domain.GenotypeEntry, 0, len(entries))
	seen := make(map[[2]string]bool, len(entries))
	for _, entry := range entries {
		key := [2]string{entry.Genotype, entry.Summary}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, entry)
	}
	return out
}

// mergeCitations concatenates the sources, keeps the first entry per id and
// backfills its title from later duplicates.
func mergeCitations(sources ...[]domain.Citation) []domain.Citation {
	out := []domain.Citation{}
	index := make(map[string]int)
	for _, source := range sources {
		for _, c := range source {
			id := strings.TrimSpace(c.ID)
			if id == "" {
				continue
			}
			if i, seen := index[id]; seen {
				if out[i].Title == "" {
					out[i].Title = c.Title
				}
				continue
			}
			index[id] = len(out)
			out = append(out, domain.Citation{ID: id, Title: c.Title})
		}
	}
	return out
}

func normalizeTraits(traits []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(traits))
	for _, trait := range traits {
		trait = strings.ToLower(strings.TrimSpace(trait))
		if trait == "" || seen[trait] {
			continue
		}
		seen[trait] = true
		out = append(out, trait)
	}
	return out
}

func uniqueStrings(values []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func maxMagnitude(genotypes []domain.GenotypeEntry) *float64 {
	if len(genotypes) == 0 {
		return nil
	}
	highest := genotypes[0].Magnitude
	for _, g := range genotypes[1:] {
		if g.Magnitude > highest {
			highest = g.Magnitude
		}
	}
	return &highest
}
