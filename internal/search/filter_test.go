package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"manifold/internal/models"
)

func TestApplyFilters_Categories(t *testing.T) {
	cands := []candidate{
		{Material: models.Material{ID: "a", UseCategory: "cement"}},
		{Material: models.Material{ID: "b", UseCategory: "timber"}},
	}
	out := applyFilters(cands, []models.Filter{{Field: "categories", Value: []any{"cement"}}})
	assert.Equal(t, []string{"a"}, ids(out))
}

func TestApplyFilters_SKUPattern(t *testing.T) {
	cands := []candidate{
		{Material: models.Material{ID: "a", SKU: "CEM-100"}},
		{Material: models.Material{ID: "b", SKU: "TMB-200"}},
	}
	out := applyFilters(cands, []models.Filter{{Field: "sku_pattern", Value: "cem"}})
	assert.Equal(t, []string{"a"}, ids(out))
}

func TestApplyFilters_CreatedAfter(t *testing.T) {
	now := time.Now()
	cands := []candidate{
		{Material: models.Material{ID: "old", CreatedAt: now.Add(-48 * time.Hour)}},
		{Material: models.Material{ID: "new", CreatedAt: now}},
	}
	cutoff := now.Add(-time.Hour).Unix()
	out := applyFilters(cands, []models.Filter{{Field: "created_after", Value: float64(cutoff)}})
	assert.Equal(t, []string{"new"}, ids(out))
}

func TestApplyFilters_NoFiltersReturnsAll(t *testing.T) {
	cands := []candidate{{Material: models.Material{ID: "a"}}, {Material: models.Material{ID: "b"}}}
	out := applyFilters(cands, nil)
	assert.Equal(t, []string{"a", "b"}, ids(out))
}

func TestApplyFilters_MultipleFiltersAreANDed(t *testing.T) {
	cands := []candidate{
		{Material: models.Material{ID: "a", UseCategory: "cement", Unit: "kg"}},
		{Material: models.Material{ID: "b", UseCategory: "cement", Unit: "ton"}},
	}
	out := applyFilters(cands, []models.Filter{
		{Field: "categories", Value: "cement"},
		{Field: "units", Value: "kg"},
	})
	assert.Equal(t, []string{"a"}, ids(out))
}
