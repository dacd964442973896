package search

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"manifold/internal/models"
)

type cursorState struct {
	LastID    string  `json:"last_id"`
	LastScore float64 `json:"last_score"`
}

func encodeCursor(c cursorState) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeCursor(s string) (cursorState, error) {
	var c cursorState
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("invalid cursor: %w", err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("invalid cursor: %w", err)
	}
	return c, nil
}

// paginate slices the already-sorted candidate list per the query's
// pagination mode. Page-based and cursor-based modes are mutually
// exclusive: a non-empty Cursor takes precedence over Page.
func paginate(candidates []candidate, p models.Pagination) (page []candidate, nextCursor string, total int, err error) {
	total = len(candidates)
	size := p.PageSize
	if size <= 0 {
		size = 20
	}

	start := 0
	if p.Cursor != "" {
		cs, err := decodeCursor(p.Cursor)
		if err != nil {
			return nil, "", 0, err
		}
		for i, c := range candidates {
			if c.Material.ID == cs.LastID {
				start = i + 1
				break
			}
		}
	} else if p.Page > 0 {
		start = p.Page * size
	}

	if start >= total {
		return nil, "", total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	page = candidates[start:end]

	if end < total && len(page) > 0 {
		last := page[len(page)-1]
		nextCursor = encodeCursor(cursorState{LastID: last.Material.ID, LastScore: last.Score})
	}
	return page, nextCursor, total, nil
}
