package markup

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

var (
	// article paths (/pubmed/123, pubmed.ncbi.nlm.nih.gov/123) and legacy Entrez list_uids queries
	pubmedHrefPattern = regexp.MustCompile(`(?i)pubmed(?:\.ncbi\.nlm\.nih\.gov)?/(\d+)(?:[/?#]|$)|pubmed.*[?&]list_uids=(\d+)`)
	digitsPattern     = regexp.MustCompile(`^\d+$`)
)

// minSiblingTitleLength is the shortest surrounding text accepted as a citation title
const minSiblingTitleLength = 10

// extractExternalLinks reads two-column rows whose second cell links out over http(s)
func extractExternalLinks(doc *goquery.Document) []domain.ExternalLink {
	var links []domain.ExternalLink

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := rowCells(row)
		if cells.Length() != 2 {
			return
		}
		cells.Last().Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href := strings.TrimSpace(a.AttrOr("href", ""))
			if !isHTTPURL(href) {
				return true
			}
			links = append(links, domain.ExternalLink{Name: cleanText(cells.First()), URL: href})
			return false
		})
	})
	return links
}

func isHTTPURL(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// extractCitations reads PubMed links. Repeated ids keep the first entry and only backfill its title.
func extractCitations(doc *goquery.Document) []domain.Citation {
	var citations []domain.Citation
	index := make(map[string]int)

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		id := firstGroup(pubmedHrefPattern, a.AttrOr("href", ""))
		if id == "" {
			return
		}
		title := citationTitle(a, id)

		if i, seen := index[id]; seen {
			if citations[i].Title == "" {
				citations[i].Title = title
			}
			return
		}
		index[id] = len(citations)
		citations = append(citations, domain.Citation{ID: id, Title: title})
	})
	return citations
}

// citationTitle uses the link text unless it is just the id, then falls back to sibling text
func citationTitle(a *goquery.Selection, id string) string {
	if text := cleanText(a); text != "" && text != id && !digitsPattern.MatchString(text) {
		return text
	}

	var b strings.Builder
	self := a.Get(0)
	a.Parent().Contents().Each(func(_ int, sibling *goquery.Selection) {
		if sibling.Get(0) != self {
			b.WriteString(sibling.Text())
			b.WriteString(" ")
		}
	})
	text := strings.Join(strings.Fields(b.String()), " ")
	if utf8.RuneCountInString(text) > minSiblingTitleLength {
		return text
	}
	return ""
}

// firstGroup returns the first non-empty capture group of the leftmost match
func firstGroup(pattern *regexp.Regexp, s string) string {
	m := pattern.FindStringSubmatch(s)
	for _, g := range m[min(1, len(m)):] {
		if g != "" {
			return g
		}
	}
	return ""
}
