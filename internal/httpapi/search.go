package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"manifold/internal/apierr"
	"manifold/internal/models"
)

func (s *Server) handleSimpleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := q.Get("q")
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := models.SearchQuery{
		Text:     text,
		Strategy: models.StrategyVector,
		Pagination: models.Pagination{
			PageSize: limit,
		},
	}
	result, err := s.searchEngine.Search(r.Context(), query)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleAdvancedSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		respondError(w, r, apierr.Validation("invalid request body: %v", err))
		return
	}
	result, err := s.searchEngine.Search(r.Context(), query)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("q")
	query := models.SearchQuery{
		Text:               prefix,
		Strategy:           models.StrategyLexical,
		Pagination:         models.Pagination{PageSize: 1},
		IncludeSuggestions: true,
	}
	result, err := s.searchEngine.Search(r.Context(), query)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"suggestions": result.Suggestions})
}
