package service

import (
	"github.com/snpedia-variant-pipeline/internal/domain"
	"github.com/snpedia-variant-pipeline/pkg/genome"
)

// BuildInterpretationRequest projects a record onto the fields an interpretation
// service needs. When userGenotype is given and matches a table row, that row and
// its risk tier are attached.
func BuildInterpretationRequest(record *domain.NormalizedVariantRecord, userGenotype string) *domain.InterpretationRequest {
	if record == nil {
		return nil
	}

	req := &domain.InterpretationRequest{
		VariantID:    record.ID,
		Gene:         record.Gene,
		Summary:      record.Summary,
		MaxMagnitude: record.MaxMagnitude,
		Genotypes:    append([]domain.GenotypeEntry{}, record.Genotypes...),
		UserGenotype: userGenotype,
	}
	if userGenotype == "" {
		return req
	}

	if match := genome.MatchGenotype(record, userGenotype); match != nil {
		entry := *match
		req.UserMatch = &entry
		req.UserRisk = ClassifyMagnitude(entry.Magnitude)
	}
	return req
}
