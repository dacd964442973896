package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"manifold/internal/models"
)

func candidateNamed(id, name string, score float64) candidate {
	return candidate{Material: models.Material{ID: id, Name: name}, Score: score}
}

func TestSortCandidates_DefaultsToRelevanceDesc(t *testing.T) {
	cands := []candidate{
		candidateNamed("a", "Brick", 0.2),
		candidateNamed("b", "Cement", 0.9),
		candidateNamed("c", "Sand", 0.5),
	}
	sortCandidates(cands, nil)
	assert.Equal(t, []string{"b", "c", "a"}, ids(cands))
}

func TestSortCandidates_ByNameAscending(t *testing.T) {
	cands := []candidate{
		candidateNamed("a", "Sand", 0.2),
		candidateNamed("b", "Brick", 0.9),
		candidateNamed("c", "Cement", 0.5),
	}
	sortCandidates(cands, []models.SortField{{Field: "name", Direction: models.SortAsc}})
	assert.Equal(t, []string{"b", "c", "a"}, ids(cands))
}

func TestSortCandidates_TieBreaksOnID(t *testing.T) {
	cands := []candidate{
		candidateNamed("z", "Brick", 0.5),
		candidateNamed("a", "Brick", 0.5),
	}
	sortCandidates(cands, []models.SortField{{Field: "name", Direction: models.SortAsc}})
	assert.Equal(t, []string{"a", "z"}, ids(cands))
}

func TestSortCandidates_ByCreatedAt(t *testing.T) {
	now := time.Now()
	older := candidate{Material: models.Material{ID: "old", CreatedAt: now.Add(-time.Hour)}}
	newer := candidate{Material: models.Material{ID: "new", CreatedAt: now}}
	cands := []candidate{newer, older}
	sortCandidates(cands, []models.SortField{{Field: "created_at", Direction: models.SortAsc}})
	assert.Equal(t, []string{"old", "new"}, ids(cands))
}

func ids(cands []candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Material.ID
	}
	return out
}
