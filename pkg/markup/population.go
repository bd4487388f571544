package markup

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

var (
	labelsKeyPattern = regexp.MustCompile(`["']?\blabels["']?\s*:\s*\[`)
	seriesKeyPattern = regexp.MustCompile(`["']?\bseries["']?\s*:\s*\[`)
)

// extractPopulationData reads the first chart script that carries well-formed
// labels and series arrays. Partial or garbled data yields nil.
func extractPopulationData(doc *goquery.Document) *domain.PopulationData {
	var data *domain.PopulationData
	doc.Find("script").EachWithBreak(func(_ int, script *goquery.Selection) bool {
		data = parsePopulationScript(script.Text())
		return data == nil
	})
	return data
}

func parsePopulationScript(script string) *domain.PopulationData {
	labelsJSON, ok := arrayAfter(script, labelsKeyPattern)
	if !ok {
		return nil
	}
	seriesJSON, ok := arrayAfter(script, seriesKeyPattern)
	if !ok {
		return nil
	}

	labels, ok := parseLabels(labelsJSON)
	if !ok {
		return nil
	}
	series, names, ok := parseSeries(seriesJSON, len(labels))
	if !ok {
		return nil
	}
	if !normalizeFrequencies(series) {
		return nil
	}

	data := &domain.PopulationData{
		Populations: labels,
		Frequencies: make(map[string]map[string]float64, len(labels)),
	}
	for p, label := range labels {
		freqs := make(map[string]float64, len(series))
		for s := range series {
			freqs[seriesKey(s)] = series[s][p]
		}
		data.Frequencies[label] = freqs
	}
	for s, name := range names {
		if name == "" {
			continue
		}
		if data.GenotypeLabels == nil {
			data.GenotypeLabels = make(map[string]string)
		}
		data.GenotypeLabels[seriesKey(s)] = name
	}
	return data
}

func seriesKey(index int) string {
	return fmt.Sprintf("geno%d", index+1)
}

// arrayAfter returns the bracket-balanced array literal following key, as JSON
func arrayAfter(script string, key *regexp.Regexp) (string, bool) {
	loc := key.FindStringIndex(script)
	if loc == nil {
		return "", false
	}
	start := loc[1] - 1

	depth := 0
	var quote byte
	for i := start; i < len(script); i++ {
		c := script[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return toJSON(script[start : i+1]), true
			}
		}
	}
	return "", false
}

// toJSON converts a JavaScript array literal with single-quoted strings or bare
// object keys into JSON. String contents are copied through untouched.
func toJSON(literal string) string {
	var b strings.Builder
	b.Grow(len(literal) + 16)

	keyAllowed := false // last significant byte outside strings was '{' or ','
	for i := 0; i < len(literal); i++ {
		c := literal[i]
		switch {
		case c == '"' || c == '\'':
			end := closingQuote(literal, i)
			writeJSONString(&b, literal[i:end+1])
			i = end
			keyAllowed = false
		case keyAllowed && isIdentStart(c):
			j := i + 1
			for j < len(literal) && isIdentPart(literal[j]) {
				j++
			}
			if rest := strings.TrimLeft(literal[j:], " \t\r\n"); strings.HasPrefix(rest, ":") {
				b.WriteString(`"` + literal[i:j] + `"`)
			} else {
				b.WriteString(literal[i:j])
			}
			i = j - 1
			keyAllowed = false
		default:
			b.WriteByte(c)
			switch c {
			case '{', ',':
				keyAllowed = true
			case ' ', '\t', '\r', '\n':
			default:
				keyAllowed = false
			}
		}
	}
	return b.String()
}

// closingQuote returns the index of the quote ending the string opened at start,
// or the last index when it is unterminated
func closingQuote(s string, start int) int {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case s[start]:
			return i
		}
	}
	return len(s) - 1
}

// writeJSONString writes a quoted JS string as a JSON string
func writeJSONString(b *strings.Builder, quoted string) {
	if quoted[0] == '"' {
		b.WriteString(quoted)
		return
	}
	body := quoted[1:]
	if strings.HasSuffix(body, "'") {
		body = body[:len(body)-1]
	}
	b.WriteByte('"')
	for i := 0; i < len(body); i++ {
		switch c := body[i]; {
		case c == '\\' && i+1 < len(body) && body[i+1] == '\'':
			b.WriteByte('\'')
			i++
		case c == '\\' && i+1 < len(body):
			b.WriteByte(c)
			b.WriteByte(body[i+1])
			i++
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func parseLabels(raw string) ([]string, bool) {
	if !gjson.Valid(raw) {
		return nil, false
	}
	values := gjson.Parse(raw).Array()
	if len(values) == 0 {
		return nil, false
	}

	labels := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		label := strings.TrimSpace(v.String())
		if (v.Type != gjson.String && v.Type != gjson.Number) || label == "" || seen[label] {
			return nil, false
		}
		seen[label] = true
		labels = append(labels, label)
	}
	return labels, true
}

// parseSeries accepts arrays of numbers or objects carrying a "data" array.
// Every series must have one value per population.
func parseSeries(raw string, populations int) ([][]float64, []string, bool) {
	if !gjson.Valid(raw) {
		return nil, nil, false
	}
	items := gjson.Parse(raw).Array()
	if len(items) == 0 {
		return nil, nil, false
	}

	series := make([][]float64, 0, len(items))
	names := make([]string, 0, len(items))
	for _, item := range items {
		points := item
		name := ""
		if item.IsObject() {
			points = item.Get("data")
			name = strings.TrimSpace(item.Get("name").String())
		}
		if !points.IsArray() {
			return nil, nil, false
		}

		values := points.Array()
		if len(values) != populations {
			return nil, nil, false
		}
		row := make([]float64, len(values))
		for i, v := range values {
			if v.Type != gjson.Number {
				return nil, nil, false
			}
			row[i] = v.Float()
		}
		series = append(series, row)
		names = append(names, name)
	}
	return series, names, true
}

// normalizeFrequencies accepts fractions as-is and scales percentages to [0,1].
// Any other range is rejected.
func normalizeFrequencies(series [][]float64) bool {
	fractions := true
	for _, row := range series {
		for _, v := range row {
			if math.IsNaN(v) || v < 0 || v > 100 {
				return false
			}
			if v > 1 {
				fractions = false
			}
		}
	}
	if fractions {
		return true
	}
	for _, row := range series {
		for i := range row {
			row[i] /= 100
		}
	}
	return true
}
