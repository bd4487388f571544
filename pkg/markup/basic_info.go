package markup

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// summaryBoxColor marks the table holding the page's overview text
const summaryBoxColor = "#ffffc0"

type basicInfo struct {
	Gene        string
	Chromosome  string
	Orientation string
	Position    *int64
	GMAF        *float64
}

// extractBasicInfo reads labelled two-column rows. The first valid value for a label wins.
func extractBasicInfo(doc *goquery.Document) basicInfo {
	var info basicInfo

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := rowCells(row)
		if cells.Length() != 2 {
			return
		}
		label := strings.ToLower(strings.TrimSuffix(cleanText(cells.First()), ":"))
		value := cells.Last()

		switch strings.TrimSpace(label) {
		case "chromosome":
			if info.Chromosome == "" {
				info.Chromosome = cleanText(value)
			}
		case "position":
			if info.Position == nil {
				info.Position = parsePosition(cleanText(value))
			}
		case "gene":
			if info.Gene == "" {
				info.Gene = geneText(value)
			}
		case "gmaf":
			if info.GMAF == nil {
				info.GMAF = parseFrequency(cleanText(value))
			}
		case "orientation":
			if info.Orientation == "" {
				info.Orientation = cleanText(value)
			}
		}
	})
	return info
}

// geneText prefers the text of a contained link over the raw cell text
func geneText(cell *goquery.Selection) string {
	if link := cleanText(cell.Find("a").First()); link != "" {
		return link
	}
	return cleanText(cell)
}

func parsePosition(raw string) *int64 {
	pos, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64)
	if err != nil || pos < 1 {
		return nil
	}
	return &pos
}

func parseFrequency(raw string) *float64 {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != f || f < 0 || f > 1 {
		return nil
	}
	return &f
}

// extractSummary returns the text of the first summary box table
func extractSummary(doc *goquery.Document) string {
	box := doc.Find("table").FilterFunction(func(_ int, table *goquery.Selection) bool {
		return strings.Contains(styleValue(table), summaryBoxColor)
	}).First()
	if box.Length() == 0 {
		return ""
	}
	return cleanText(box)
}
