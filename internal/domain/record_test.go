package domain

import (
	"testing"
)

func TestRiskLevelConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    RiskLevel
		expected string
	}{
		{"High", HIGH_RISK, "HIGH"},
		{"Medium", MEDIUM_RISK, "MEDIUM"},
		{"Low", LOW_RISK, "LOW"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.value) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(tt.value))
			}
		})
	}
}

func TestCanonicalVariantID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Lowercase rs id", "rs1801133", "rs1801133"},
		{"Capitalised page title", "Rs1801133", "rs1801133"},
		{"Bare template number", "1801133", "rs1801133"},
		{"23andMe internal id", "I3000001", "i3000001"},
		{"Surrounding whitespace", "  rs53576 ", "rs53576"},
		{"Empty", "", ""},
		{"Prefix only", "rs", ""},
		{"Not an identifier", "MTHFR", ""},
		{"Genotype suffix", "rs1801133(C;T)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalVariantID(tt.input); got != tt.expected {
				t.Errorf("CanonicalVariantID(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestClinicalInfoIsEmpty(t *testing.T) {
	var nilInfo *ClinicalInfo
	if !nilInfo.IsEmpty() {
		t.Error("nil ClinicalInfo should be empty")
	}
	if !(&ClinicalInfo{}).IsEmpty() {
		t.Error("zero ClinicalInfo should be empty")
	}
	if (&ClinicalInfo{OMIMID: "607093"}).IsEmpty() {
		t.Error("ClinicalInfo with OMIM id should not be empty")
	}
}
