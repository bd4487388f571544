package markup

import (
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

// Magnitude cell background colours
var riskColorMarkers = []struct {
	marker string
	color  domain.RiskColor
}{
	{"#80ff80", domain.RiskColorGreen},
	{"#ffffff", domain.RiskColorWhite},
	{"#ff8080", domain.RiskColorRed},
}

// extractGenotypes reads every table whose header names geno, mag and summary columns
func extractGenotypes(doc *goquery.Document) []domain.GenotypeEntry {
	var entries []domain.GenotypeEntry

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := ownRows(table)
		if rows.Length() < 2 || !isGenotypeHeader(rows.First()) {
			return
		}
		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			if entry, ok := genotypeRow(row); ok {
				entries = append(entries, entry)
			}
		})
	})
	return entries
}

func isGenotypeHeader(row *goquery.Selection) bool {
	header := strings.ToLower(cleanText(row))
	return strings.Contains(header, "geno") &&
		strings.Contains(header, "mag") &&
		strings.Contains(header, "summary")
}

func genotypeRow(row *goquery.Selection) (domain.GenotypeEntry, bool) {
	cells := rowCells(row)
	if cells.Length() < 3 {
		return domain.GenotypeEntry{}, false
	}

	genotype := strings.NewReplacer("(", "", ")", "", " ", "").Replace(cleanText(cells.Eq(0)))
	if genotype == "" {
		return domain.GenotypeEntry{}, false
	}

	magCell := cells.Eq(1)
	magnitude, err := strconv.ParseFloat(cleanText(magCell), 64)
	if err != nil || math.IsNaN(magnitude) || math.IsInf(magnitude, 0) || magnitude < 0 {
		return domain.GenotypeEntry{}, false
	}

	return domain.GenotypeEntry{
		Genotype:  genotype,
		Magnitude: magnitude,
		Summary:   cleanText(cells.Eq(2)),
		RiskColor: riskColor(magCell),
	}, true
}

func riskColor(cell *goquery.Selection) domain.RiskColor {
	style := styleValue(cell)
	for _, m := range riskColorMarkers {
		if strings.Contains(style, m.marker) {
			return m.color
		}
	}
	return domain.RiskColorUnknown
}
