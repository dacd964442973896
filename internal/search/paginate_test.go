package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/models"
)

func makeCandidates(n int) []candidate {
	out := make([]candidate, n)
	for i := 0; i < n; i++ {
		out[i] = candidateNamed(string(rune('a'+i)), "mat", float64(n-i))
	}
	return out
}

func TestPaginate_FirstPage(t *testing.T) {
	cands := makeCandidates(5)
	page, next, total, err := paginate(cands, models.Pagination{PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 2)
	assert.Equal(t, "a", page[0].Material.ID)
	assert.NotEmpty(t, next)
}

func TestPaginate_CursorResumesAfterLastID(t *testing.T) {
	cands := makeCandidates(5)
	_, next, _, err := paginate(cands, models.Pagination{PageSize: 2})
	require.NoError(t, err)

	page, _, _, err := paginate(cands, models.Pagination{PageSize: 2, Cursor: next})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, ids(page))
}

func TestPaginate_LastPageHasNoNextCursor(t *testing.T) {
	cands := makeCandidates(3)
	page, next, total, err := paginate(cands, models.Pagination{PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}

func TestPaginate_PageNumberMode(t *testing.T) {
	cands := makeCandidates(6)
	page, _, _, err := paginate(cands, models.Pagination{PageSize: 2, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, ids(page))
}

func TestPaginate_InvalidCursor(t *testing.T) {
	cands := makeCandidates(3)
	_, _, _, err := paginate(cands, models.Pagination{Cursor: "not-valid-base64!!"})
	assert.Error(t, err)
}

func TestPaginate_PastEndReturnsEmpty(t *testing.T) {
	cands := makeCandidates(3)
	page, next, total, err := paginate(cands, models.Pagination{PageSize: 2, Page: 5})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, page)
	assert.Empty(t, next)
}
