package search

import (
	"strings"

	"manifold/internal/models"
)

// highlight wraps case-insensitive occurrences of query text in <mark> tags
// across the fields a user is likely scanning for a match.
func highlight(m models.Material, query string) []models.Highlight {
	var out []models.Highlight
	for _, field := range []struct {
		name  string
		value string
	}{
		{"name", m.Name},
		{"description", m.Description},
		{"use_category", m.UseCategory},
		{"sku", m.SKU},
	} {
		if field.value == "" {
			continue
		}
		marked, matched := markMatches(field.value, query)
		if matched {
			out = append(out, models.Highlight{Field: field.name, Original: field.value, Marked: marked})
		}
	}
	return out
}

func markMatches(text, query string) (string, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return text, false
	}
	lowerText := strings.ToLower(text)
	lowerQuery := strings.ToLower(query)

	var b strings.Builder
	matched := false
	rest := text
	lowerRest := lowerText
	for {
		idx := strings.Index(lowerRest, lowerQuery)
		if idx < 0 {
			b.WriteString(rest)
			break
		}
		matched = true
		b.WriteString(rest[:idx])
		b.WriteString("<mark>")
		b.WriteString(rest[idx : idx+len(query)])
		b.WriteString("</mark>")
		rest = rest[idx+len(query):]
		lowerRest = lowerRest[idx+len(query):]
	}
	return b.String(), matched
}
