package wikitext

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

// EffectContextWidth is how many bytes of text either side of a genotype link
// are kept as its effect description.
const EffectContextWidth = 100

// Free-text heuristics. Each pattern belongs to exactly one rule below.
var (
	riskAllelePattern = regexp.MustCompile(`(?i)risk\s+(?:allele|variant)\s+is\s+(\([^)]*\)|[^\s.,;]+)`)

	// [[target]] or [[target|label]]
	linkPattern         = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
	variantLinkPattern  = regexp.MustCompile(`(?i)^rs\d+$`)
	genotypeLinkPattern = regexp.MustCompile(`(?i)\[\[\s*(rs\d+)\s*(\([^()\[\]|]*\))\s*(?:\|[^\]]*)?\]\]`)
	genotypeTarget      = regexp.MustCompile(`(?i)^rs\d+\s*\(`)

	pmidPattern = regexp.MustCompile(`(?i)\{\{\s*PMID\s*\|\s*(\d+)([^{}]*)\}\}`)

	malePattern   = regexp.MustCompile(`(?i)\b(?:males?|men|boys|x[- ]linked|x[- ]chromosomes?|hemizygous)\b`)
	femalePattern = regexp.MustCompile(`(?i)\bhomozygous\s+(?:women|females?|girls)\b|\b(?:women|females?)\s+(?:who\s+are\s+)?homozygous\b`)

	significancePattern = regexp.MustCompile(`(?i)\bp(?:[\s-]*values?)?\s*(?:=|<|>|≤|of)\s*\d+(?:\.\d+)?(?:\s*(?:x|×|\*)\s*10\s*\^?\s*[-−]?\d+|e[-−]?\d+)?`)
)

// Namespaced links that never name a trait
var ignoredLinkNamespaces = []string{"category:", "file:", "image:", "media:", "template:"}

// Annotate runs every free-text rule over the raw wikitext
func Annotate(text string) domain.FreeTextAnnotations {
	traits, related := TraitRule(text)
	return domain.FreeTextAnnotations{
		Traits:            traits,
		RelatedVariantIDs: related,
		GenotypeEffects:   GenotypeEffectRule(text),
		Citations:         CitationRule(text),
		RiskAllele:        RiskAlleleRule(text),
		GenderSpecific:    GenderRule(text),
		ClinicalNotes:     SignificanceRule(text),
	}
}

// RiskAlleleRule captures X from the first "risk allele is X" or "risk variant is X"
func RiskAlleleRule(text string) string {
	m := riskAllelePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// TraitRule collects lowercased link targets as traits. Bare variant links such as
// [[rs123]] are returned separately as related ids, verbatim. Genotype links are skipped.
func TraitRule(text string) (traits []string, related []string) {
	seenTraits := make(map[string]bool)
	seenRelated := make(map[string]bool)

	for _, m := range linkPattern.FindAllStringSubmatch(text, -1) {
		target := m[1]
		if pipe := strings.IndexByte(target, '|'); pipe >= 0 {
			target = target[:pipe]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}

		if variantLinkPattern.MatchString(target) {
			if !seenRelated[target] {
				seenRelated[target] = true
				related = append(related, target)
			}
			continue
		}
		if genotypeTarget.MatchString(target) {
			continue
		}

		trait := strings.ToLower(target)
		if hasIgnoredNamespace(trait) || seenTraits[trait] {
			continue
		}
		seenTraits[trait] = true
		traits = append(traits, trait)
	}
	return traits, related
}

// GenotypeEffectRule emits one effect per [[rsN(genotype)]] link with the
// surrounding text as its description.
func GenotypeEffectRule(text string) []domain.GenotypeEffect {
	var effects []domain.GenotypeEffect
	for _, loc := range genotypeLinkPattern.FindAllStringSubmatchIndex(text, -1) {
		effects = append(effects, domain.GenotypeEffect{
			VariantID: strings.ToLower(text[loc[2]:loc[3]]),
			Genotype:  strings.ReplaceAll(text[loc[4]:loc[5]], " ", ""),
			Effect:    contextWindow(text, loc[0], loc[1], EffectContextWidth),
		})
	}
	return effects
}

// CitationRule reads {{PMID|id|...}} mentions. The title is the title= parameter,
// or failing that the first unnamed trailing fragment.
func CitationRule(text string) []domain.Citation {
	var citations []domain.Citation
	for _, m := range pmidPattern.FindAllStringSubmatch(text, -1) {
		citations = append(citations, domain.Citation{
			ID:    m[1],
			Title: trailingTitle(m[2]),
		})
	}
	return citations
}

func trailingTitle(rest string) string {
	var fallback string
	for _, fragment := range strings.Split(rest, "|") {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}
		if eq := strings.IndexByte(fragment, '='); eq >= 0 {
			if strings.EqualFold(strings.TrimSpace(fragment[:eq]), "title") {
				return strings.TrimSpace(fragment[eq+1:])
			}
			continue
		}
		if fallback == "" {
			fallback = fragment
		}
	}
	return fallback
}

// GenderRule marks male for male-only or X chromosome language and female for
// homozygous female language. Both together yield GenderBoth.
func GenderRule(text string) domain.GenderSpecificity {
	var gender domain.GenderSpecificity
	if malePattern.MatchString(text) {
		gender = domain.GenderMale
	}
	if femalePattern.MatchString(text) {
		if gender == domain.GenderMale {
			gender = domain.GenderBoth
		} else {
			gender = domain.GenderFemale
		}
	}
	return gender
}

// SignificanceRule captures p-value mentions as free-text notes
func SignificanceRule(text string) []string {
	var notes []string
	seen := make(map[string]bool)
	for _, m := range significancePattern.FindAllString(text, -1) {
		note := strings.Join(strings.Fields(m), " ")
		if seen[note] {
			continue
		}
		seen[note] = true
		notes = append(notes, note)
	}
	return notes
}

// contextWindow returns text[start-width:end+width] clamped to the text and to
// rune boundaries, trimmed.
func contextWindow(text string, start, end, width int) string {
	from := start - width
	if from < 0 {
		from = 0
	}
	for from < start && !utf8.RuneStart(text[from]) {
		from++
	}

	to := end + width
	if to > len(text) {
		to = len(text)
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return strings.TrimSpace(text[from:to])
}

func hasIgnoredNamespace(target string) bool {
	for _, ns := range ignoredLinkNamespaces {
		if strings.HasPrefix(target, ns) {
			return true
		}
	}
	return false
}
