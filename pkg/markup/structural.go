// Package markup extracts variant data from rendered SNPedia page HTML.
package markup

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

var displayedIDPattern = regexp.MustCompile(`(?i)\brs\d+\b`)

// ExtractStructural walks the rendered markup and returns everything it recognises.
// Each sub-extraction scans the document on its own; absent structures leave fields empty.
func ExtractStructural(html string) *domain.StructuralExtraction {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return &domain.StructuralExtraction{}
	}

	info := extractBasicInfo(doc)
	return &domain.StructuralExtraction{
		ID:             extractDisplayedID(doc),
		Gene:           info.Gene,
		Chromosome:     info.Chromosome,
		Position:       info.Position,
		GMAF:           info.GMAF,
		Orientation:    info.Orientation,
		Summary:        extractSummary(doc),
		Genotypes:      extractGenotypes(doc),
		ExternalLinks:  extractExternalLinks(doc),
		Citations:      extractCitations(doc),
		PopulationData: extractPopulationData(doc),
		ClinicalInfo:   extractClinicalInfo(doc),
	}
}

// extractDisplayedID returns the first rs id in the visible text, lowercased.
// Script and style content is ignored; the document itself is left untouched.
func extractDisplayedID(doc *goquery.Document) string {
	visible := doc.Selection.Clone()
	visible.Find("script, style").Remove()

	if m := displayedIDPattern.FindString(visible.Text()); m != "" {
		return strings.ToLower(m)
	}
	return ""
}

// ownRows returns the rows of table without descending into nested tables
func ownRows(table *goquery.Selection) *goquery.Selection {
	return table.Find("tr").FilterFunction(func(_ int, row *goquery.Selection) bool {
		return row.Closest("table").IsSelection(table)
	})
}

func rowCells(row *goquery.Selection) *goquery.Selection {
	return row.ChildrenFiltered("td, th")
}

// cleanText returns the selection's text with whitespace runs collapsed
func cleanText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// styleValue lowercases an inline style and strips its spaces so colour markers compare cleanly
func styleValue(s *goquery.Selection) string {
	style := strings.ToLower(s.AttrOr("style", "") + ";" + s.AttrOr("bgcolor", ""))
	return strings.ReplaceAll(style, " ", "")
}
