package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"manifold/internal/models"
)

func TestFuzzyScore_ExactMatch(t *testing.T) {
	m := models.Material{Name: "Portland Cement"}
	assert.Equal(t, 1.0, fuzzyScore("Portland Cement", m))
	assert.Equal(t, 1.0, fuzzyScore("portland cement", m))
}

func TestFuzzyScore_Typo(t *testing.T) {
	m := models.Material{Name: "Portland Cement"}
	score := fuzzyScore("Portlnd Cement", m)
	assert.Greater(t, score, 0.8)
	assert.Less(t, score, 1.0)
}

func TestFuzzyScore_EmptyInputs(t *testing.T) {
	assert.Equal(t, 0.0, fuzzyScore("", models.Material{Name: "Brick"}))
	assert.Equal(t, 0.0, fuzzyScore("Brick", models.Material{Name: ""}))
	assert.Equal(t, 0.0, fuzzyScore("", models.Material{Name: ""}))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 3, levenshtein("abc", ""))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 2, levenshtein("cement", "cemnet"))
}

func TestLevenshtein_Substitution(t *testing.T) {
	assert.Equal(t, 1, levenshtein("cat", "cot"))
	assert.Equal(t, 3, levenshtein("cat", "dog"))
}
