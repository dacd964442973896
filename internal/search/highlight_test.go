package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"manifold/internal/models"
)

func TestHighlight_MarksMatchingFields(t *testing.T) {
	m := models.Material{Name: "Portland Cement", UseCategory: "cement", SKU: "CEM-1"}
	hl := highlight(m, "cement")
	byField := map[string]models.Highlight{}
	for _, h := range hl {
		byField[h.Field] = h
	}
	assert.Contains(t, byField, "name")
	assert.Equal(t, "Portland <mark>Cement</mark>", byField["name"].Marked)
	assert.Contains(t, byField, "use_category")
	assert.Equal(t, "<mark>cement</mark>", byField["use_category"].Marked)
	assert.NotContains(t, byField, "sku")
}

func TestHighlight_NoMatchReturnsEmpty(t *testing.T) {
	m := models.Material{Name: "Brick"}
	hl := highlight(m, "timber")
	assert.Empty(t, hl)
}

func TestMarkMatches_MultipleOccurrences(t *testing.T) {
	marked, matched := markMatches("cat cat cat", "cat")
	assert.True(t, matched)
	assert.Equal(t, "<mark>cat</mark> <mark>cat</mark> <mark>cat</mark>", marked)
}

func TestMarkMatches_EmptyQuery(t *testing.T) {
	marked, matched := markMatches("cat", "")
	assert.False(t, matched)
	assert.Equal(t, "cat", marked)
}
