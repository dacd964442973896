package search

import (
	"strconv"
	"strings"

	"manifold/internal/models"
)

// applyFilters narrows candidates by the query's closed filter set:
// categories, units, sku_pattern, created_after/before, updated_after/before.
// min_similarity and search_fields are consumed upstream by the strategies
// themselves and are ignored here.
func applyFilters(candidates []candidate, filters []models.Filter) []candidate {
	if len(filters) == 0 {
		return candidates
	}
	out := candidates[:0:0]
	for _, c := range candidates {
		if matchesAll(c.Material, filters) {
			out = append(out, c)
		}
	}
	return out
}

func matchesAll(m models.Material, filters []models.Filter) bool {
	for _, f := range filters {
		if !matches(m, f) {
			return false
		}
	}
	return true
}

func matches(m models.Material, f models.Filter) bool {
	switch f.Field {
	case "categories":
		return inStringSet(m.UseCategory, f.Value)
	case "units":
		return inStringSet(m.Unit, f.Value)
	case "sku_pattern":
		pattern, _ := f.Value.(string)
		return strings.Contains(strings.ToLower(m.SKU), strings.ToLower(pattern))
	case "created_after":
		return compareTime(m.CreatedAt, f.Value, true)
	case "created_before":
		return compareTime(m.CreatedAt, f.Value, false)
	case "updated_after":
		return compareTime(m.UpdatedAt, f.Value, true)
	case "updated_before":
		return compareTime(m.UpdatedAt, f.Value, false)
	case "min_similarity", "search_fields":
		return true
	default:
		return true
	}
}

func inStringSet(v string, filterValue any) bool {
	switch vals := filterValue.(type) {
	case []any:
		for _, x := range vals {
			if s, ok := x.(string); ok && strings.EqualFold(s, v) {
				return true
			}
		}
		return false
	case string:
		return strings.EqualFold(vals, v)
	default:
		return true
	}
}

func compareTime(field any, filterValue any, after bool) bool {
	ts, ok := field.(interface{ Unix() int64 })
	if !ok {
		return true
	}
	var cutoff int64
	switch v := filterValue.(type) {
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return true
		}
		cutoff = n
	case float64:
		cutoff = int64(v)
	default:
		return true
	}
	if after {
		return ts.Unix() >= cutoff
	}
	return ts.Unix() <= cutoff
}
