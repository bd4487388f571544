package wikitext

import (
	"strconv"
	"strings"
)

// Fields holds the parameters of one template invocation.
// Named keys are lowercased and trimmed; positional parameters are keyed "1", "2", ...
type Fields map[string]string

// Get returns the trimmed value for key, or "" when absent
func (f Fields) Get(key string) string {
	if f == nil {
		return ""
	}
	return f[strings.ToLower(strings.TrimSpace(key))]
}

// Has reports whether key was supplied with a non-empty value
func (f Fields) Has(key string) bool {
	return f.Get(key) != ""
}

// ExtractTemplates returns the fields of every invocation of the named template,
// in document order. Invocations with unbalanced braces are ignored.
func ExtractTemplates(text, name string) []Fields {
	want := normalizeName(name)
	if want == "" || text == "" {
		return nil
	}

	var results []Fields
	for i := 0; i+1 < len(text); i++ {
		if text[i] != '{' || text[i+1] != '{' {
			continue
		}
		// {{{param}}} is a parameter reference, not an invocation
		if i+2 < len(text) && text[i+2] == '{' {
			i += 2
			continue
		}

		end := matchingClose(text, i)
		if end < 0 {
			continue
		}

		parts := splitTopLevel(text[i+2 : end])
		if len(parts) == 0 || normalizeName(parts[0]) != want {
			continue
		}
		results = append(results, parseParams(parts[1:]))
	}
	return results
}

// ExtractTemplate returns the fields of the first invocation of the named template
func ExtractTemplate(text, name string) (Fields, bool) {
	all := ExtractTemplates(text, name)
	if len(all) == 0 {
		return nil, false
	}
	return all[0], true
}

// matchingClose returns the index of the "}}" closing the "{{" at start, or -1.
// {{{param}}} references inside are skipped as one unit.
func matchingClose(text string, start int) int {
	depth, params := 0, 0
	for i := start; i+1 < len(text); i++ {
		switch {
		case i > start && strings.HasPrefix(text[i:], "{{{"):
			params++
			i += 2
		case params > 0 && strings.HasPrefix(text[i:], "}}}"):
			params--
			i += 2
		case text[i] == '{' && text[i+1] == '{':
			depth++
			i++
		case text[i] == '}' && text[i+1] == '}':
			depth--
			if depth == 0 {
				return i
			}
			i++
		}
	}
	return -1
}

// splitTopLevel splits a template body on pipes that are not inside
// nested templates or links.
func splitTopLevel(body string) []string {
	var parts []string
	braces, brackets := 0, 0
	last := 0

	for i := 0; i < len(body); i++ {
		two := i+1 < len(body)
		switch {
		case two && body[i] == '{' && body[i+1] == '{':
			braces++
			i++
		case two && body[i] == '}' && body[i+1] == '}' && braces > 0:
			braces--
			i++
		case two && body[i] == '[' && body[i+1] == '[':
			brackets++
			i++
		case two && body[i] == ']' && body[i+1] == ']' && brackets > 0:
			brackets--
			i++
		case body[i] == '|' && braces == 0 && brackets == 0:
			parts = append(parts, body[last:i])
			last = i + 1
		}
	}
	return append(parts, body[last:])
}

func parseParams(parts []string) Fields {
	fields := make(Fields, len(parts))
	position := 0

	for _, part := range parts {
		if eq := topLevelEquals(part); eq >= 0 {
			key := strings.ToLower(strings.TrimSpace(part[:eq]))
			if key != "" {
				fields[key] = strings.TrimSpace(part[eq+1:])
				continue
			}
		}
		position++
		fields[strconv.Itoa(position)] = strings.TrimSpace(part)
	}
	return fields
}

// topLevelEquals finds the first "=" outside nested markup
func topLevelEquals(part string) int {
	depth := 0
	for i := 0; i < len(part); i++ {
		switch part[i] {
		case '{', '[':
			depth++
		case '}', ']':
			if depth > 0 {
				depth--
			}
		case '=':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// normalizeName folds case, underscores and runs of whitespace
func normalizeName(name string) string {
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
