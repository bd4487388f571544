package markup

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

// entry links only; OMIM search URLs carry query text, not an entry number
var omimHrefPattern = regexp.MustCompile(`(?i)omim\.org/entry/(\d+)|/omim/(\d+)(?:[/?#]|$)|dispomim\.cgi\?id=(\d+)`)

// clinicalDatabaseNames are header words that mark a clinical annotation table
var clinicalDatabaseNames = []string{"clinvar"}

// extractClinicalInfo reads significance and disease rows from clinical tables and
// the first OMIM link anywhere in the page. It returns nil when nothing was found.
func extractClinicalInfo(doc *goquery.Document) *domain.ClinicalInfo {
	info := &domain.ClinicalInfo{}

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		if !isClinicalTable(table) {
			return
		}
		ownRows(table).Each(func(_ int, row *goquery.Selection) {
			cells := rowCells(row)
			if cells.Length() != 2 {
				return
			}
			label := strings.ToLower(cleanText(cells.First()))
			value := cleanText(cells.Last())
			switch {
			case strings.Contains(label, "significance") && info.Significance == "":
				info.Significance = value
			case strings.Contains(label, "disease") && info.Disease == "":
				info.Disease = value
			}
		})
	})

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if id := firstGroup(omimHrefPattern, a.AttrOr("href", "")); id != "" {
			info.OMIMID = id
			return false
		}
		return true
	})

	if info.IsEmpty() {
		return nil
	}
	return info
}

func isClinicalTable(table *goquery.Selection) bool {
	header := strings.ToLower(cleanText(table.ChildrenFiltered("caption")) + " " + cleanText(ownRows(table).First()))
	for _, name := range clinicalDatabaseNames {
		if strings.Contains(header, name) {
			return true
		}
	}
	return false
}
