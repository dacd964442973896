package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"manifold/internal/apierr"
	"manifold/internal/models"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.stores.Relational.ListCategories(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": categories})
}

func (s *Server) handleUpsertCategory(w http.ResponseWriter, r *http.Request) {
	var c models.Category
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		respondError(w, r, apierr.Validation("invalid request body: %v", err))
		return
	}
	if c.Name == "" {
		respondError(w, r, apierr.Validation("name is required"))
		return
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := s.stores.Relational.UpsertCategory(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.stores.Relational.DeleteCategory(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := s.stores.Relational.ListUnits(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": units})
}

func (s *Server) handleUpsertUnit(w http.ResponseWriter, r *http.Request) {
	var u models.Unit
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		respondError(w, r, apierr.Validation("invalid request body: %v", err))
		return
	}
	if u.Name == "" {
		respondError(w, r, apierr.Validation("name is required"))
		return
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := s.stores.Relational.UpsertUnit(r.Context(), u); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (s *Server) handleDeleteUnit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.stores.Relational.DeleteUnit(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}
