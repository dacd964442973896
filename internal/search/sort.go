package search

import (
	"sort"

	"manifold/internal/models"
)

// sortCandidates orders candidates by the query's sort fields, falling back
// to descending relevance score, and always breaking remaining ties on id
// for a stable, reproducible order across pages.
func sortCandidates(candidates []candidate, fields []models.SortField) {
	if len(fields) == 0 {
		fields = []models.SortField{{Field: "relevance", Direction: models.SortDesc}}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		for _, f := range fields {
			cmp := compareField(candidates[i], candidates[j], f.Field)
			if cmp == 0 {
				continue
			}
			if f.Direction == models.SortDesc {
				return cmp > 0
			}
			return cmp < 0
		}
		return candidates[i].Material.ID < candidates[j].Material.ID
	})
}

func compareField(a, b candidate, field string) int {
	switch field {
	case "name":
		return compareStrings(a.Material.Name, b.Material.Name)
	case "use_category":
		return compareStrings(a.Material.UseCategory, b.Material.UseCategory)
	case "created_at":
		return compareInt64(a.Material.CreatedAt.Unix(), b.Material.CreatedAt.Unix())
	case "updated_at":
		return compareInt64(a.Material.UpdatedAt.Unix(), b.Material.UpdatedAt.Unix())
	default: // "relevance" and anything unrecognized
		return compareFloat(a.Score, b.Score)
	}
}

func compareStrings(a, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func compareInt64(a, b int64) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func compareFloat(a, b float64) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}
