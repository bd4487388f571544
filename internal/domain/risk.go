package domain

// RiskLevel is a coarse tier derived from a genotype's magnitude
type RiskLevel string

const (
	HIGH_RISK   RiskLevel = "HIGH"
	MEDIUM_RISK RiskLevel = "MEDIUM"
	LOW_RISK    RiskLevel = "LOW"
)

// Magnitude thresholds for risk tiers
const (
	HighRiskMagnitude   = 3.0
	MediumRiskMagnitude = 2.0
)

// GenotypeRisk is the risk classification of a single genotype entry
type GenotypeRisk struct {
	Genotype  string    `json:"genotype"`
	RiskLevel RiskLevel `json:"risk_level"`
	Magnitude float64   `json:"magnitude"`
	Summary   string    `json:"summary"`
}

// InterpretationRequest is the projection of a record handed to an AI interpretation service
type InterpretationRequest struct {
	VariantID    string          `json:"rsid"`
	Gene         string          `json:"gene,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	MaxMagnitude *float64        `json:"magnitude,omitempty"`
	Genotypes    []GenotypeEntry `json:"genotypes"`
	UserGenotype string          `json:"user_genotype,omitempty"`
	UserMatch    *GenotypeEntry  `json:"user_match,omitempty"`
	UserRisk     RiskLevel       `json:"user_risk,omitempty"`
}
