package genome

import (
	"sort"
	"strings"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

var complement = map[string]string{"A": "T", "T": "A", "C": "G", "G": "C"}

// MatchGenotype finds the record's table row for a genotype such as "(A;G)", "A;G" or "AG".
// Reports are on the plus strand, so alleles are complemented for minus-orientation pages.
func MatchGenotype(record *domain.NormalizedVariantRecord, genotype string) *domain.GenotypeEntry {
	if record == nil {
		return nil
	}
	want := splitAlleles(genotype)
	if len(want) == 0 {
		return nil
	}
	if strings.EqualFold(record.Orientation, "minus") {
		want = complementAlleles(want)
	}
	key := alleleKey(want)

	for i := range record.Genotypes {
		if alleleKey(splitAlleles(record.Genotypes[i].Genotype)) == key {
			entry := record.Genotypes[i]
			return &entry
		}
	}
	return nil
}

// MatchCall is MatchGenotype for a parsed report call
func MatchCall(record *domain.NormalizedVariantRecord, call Call) *domain.GenotypeEntry {
	return MatchGenotype(record, strings.Join(call.Alleles, ";"))
}

// splitAlleles accepts "(A;G)", "A;G" and "AG"
func splitAlleles(genotype string) []string {
	g := strings.ToUpper(strings.NewReplacer("(", "", ")", "", " ", "").Replace(genotype))
	if g == "" {
		return nil
	}
	if strings.Contains(g, ";") {
		return strings.Split(g, ";")
	}
	alleles := make([]string, 0, len(g))
	for _, r := range g {
		alleles = append(alleles, string(r))
	}
	return alleles
}

func complementAlleles(alleles []string) []string {
	out := make([]string, len(alleles))
	for i, a := range alleles {
		if c, ok := complement[a]; ok {
			out[i] = c
		} else {
			out[i] = a
		}
	}
	return out
}

func alleleKey(alleles []string) string {
	sorted := append([]string{}, alleles...)
	sort.Strings(sorted)
	return strings.Join(sorted, ";")
}
