package service

import (
	"github.com/snpedia-variant-pipeline/internal/domain"
)

// ClassifyMagnitude maps a magnitude onto a risk tier. NaN is treated as absent, i.e. LOW.
func ClassifyMagnitude(magnitude float64) domain.RiskLevel {
	switch {
	case magnitude >= domain.HighRiskMagnitude:
		return domain.HIGH_RISK
	case magnitude >= domain.MediumRiskMagnitude:
		return domain.MEDIUM_RISK
	default:
		return domain.LOW_RISK
	}
}

// ClassifyRisk returns one risk entry per genotype, in record order
func ClassifyRisk(record *domain.NormalizedVariantRecord) []domain.GenotypeRisk {
	if record == nil {
		return []domain.GenotypeRisk{}
	}
	risks := make([]domain.GenotypeRisk, 0, len(record.Genotypes))
	for _, g := range record.Genotypes {
		risks = append(risks, domain.GenotypeRisk{
			Genotype:  g.Genotype,
			RiskLevel: ClassifyMagnitude(g.Magnitude),
			Magnitude: g.Magnitude,
			Summary:   g.Summary,
		})
	}
	return risks
}
