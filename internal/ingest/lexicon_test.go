package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferCategory_MatchesKnownStem(t *testing.T) {
	assert.Equal(t, "masonry", InferCategory("Кирпич силикатный полнотелый"))
	assert.Equal(t, "binders", InferCategory("цемент М500"))
}

func TestInferCategory_NoMatchReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", InferCategory("Widget 9000"))
}

func TestInferUnit_MatchesKnownStem(t *testing.T) {
	assert.Equal(t, "рулон", InferUnit("Обои в рулонах, декоративные"))
}

func TestInferUnit_NoMatchReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", InferUnit("Widget 9000"))
}
