package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"manifold/internal/apierr"
	"manifold/internal/fallback"
	"manifold/internal/models"
	"manifold/internal/store"
)

type createMaterialRequest struct {
	Name        string `json:"name"`
	UseCategory string `json:"use_category"`
	Unit        string `json:"unit"`
	SKU         string `json:"sku"`
	Description string `json:"description"`
}

func (s *Server) handleCreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req createMaterialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apierr.Validation("invalid request body: %v", err))
		return
	}
	if req.Name == "" || req.Unit == "" {
		respondError(w, r, apierr.Validation("name and unit are required"))
		return
	}

	now := time.Now().UTC()
	m := models.Material{
		ID:          uuid.NewString(),
		Name:        req.Name,
		UseCategory: req.UseCategory,
		Unit:        req.Unit,
		SKU:         req.SKU,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := fallback.IdempotentWrite(r.Context(), fallback.OpMaterialWrite, m.ID,
		func(ctx context.Context, id string) error {
			m.ID = id
			return s.stores.Relational.CreateMaterial(ctx, m)
		}, nil)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, m)
}

type batchCreateMaterialsRequest struct {
	Items []createMaterialRequest `json:"items"`
}

func (s *Server) handleBatchCreateMaterials(w http.ResponseWriter, r *http.Request) {
	var req batchCreateMaterialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apierr.Validation("invalid request body: %v", err))
		return
	}
	if len(req.Items) == 0 {
		respondError(w, r, apierr.Validation("items must not be empty"))
		return
	}
	if len(req.Items) > 1000 {
		respondError(w, r, apierr.Validation("batch create accepts at most 1000 items"))
		return
	}

	type itemResult struct {
		Index   int    `json:"index"`
		ID      string `json:"id,omitempty"`
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}
	results := make([]itemResult, 0, len(req.Items))
	succeeded := 0
	now := time.Now().UTC()
	for i, item := range req.Items {
		if item.Name == "" || item.Unit == "" {
			results = append(results, itemResult{Index: i, Success: false, Error: "name and unit are required"})
			continue
		}
		m := models.Material{
			ID: uuid.NewString(), Name: item.Name, UseCategory: item.UseCategory,
			Unit: item.Unit, SKU: item.SKU, Description: item.Description,
			CreatedAt: now, UpdatedAt: now,
		}
		if err := s.stores.Relational.CreateMaterial(r.Context(), m); err != nil {
			results = append(results, itemResult{Index: i, Success: false, Error: err.Error()})
			continue
		}
		succeeded++
		results = append(results, itemResult{Index: i, ID: m.ID, Success: true})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"total":     len(req.Items),
		"succeeded": succeeded,
		"failed":    len(req.Items) - succeeded,
		"items":     results,
	})
}

func (s *Server) handleGetMaterial(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m, err := fallback.Route(r.Context(), fallback.OpMaterialRead, []fallback.Attempt[*models.Material]{
		{Name: "relational", Call: func(ctx context.Context) (*models.Material, error) {
			return s.stores.Relational.GetMaterial(ctx, id)
		}},
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if m == nil {
		respondError(w, r, apierr.NotFound("material %s not found", id))
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func materialFilterOf(skip, limit int, category string) store.MaterialFilter {
	return store.MaterialFilter{Category: category, Skip: skip, Limit: limit}
}

func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	filter := materialFilterOf(skip, limit, r.URL.Query().Get("category"))
	mats, err := s.stores.Relational.ListMaterials(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": mats, "skip": skip, "limit": limit})
}

func (s *Server) handleUpdateMaterial(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existing, err := s.stores.Relational.GetMaterial(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if existing == nil {
		respondError(w, r, apierr.NotFound("material %s not found", id))
		return
	}

	var req createMaterialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apierr.Validation("invalid request body: %v", err))
		return
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.UseCategory != "" {
		existing.UseCategory = req.UseCategory
	}
	if req.Unit != "" {
		existing.Unit = req.Unit
	}
	if req.SKU != "" {
		existing.SKU = req.SKU
	}
	if req.Description != "" {
		existing.Description = req.Description
	}
	existing.UpdatedAt = time.Now().UTC()

	if err := s.stores.Relational.UpdateMaterial(r.Context(), *existing); err != nil {
		respondError(w, r, err)
		return
	}
	if s.searchEngine != nil {
		s.searchEngine.InvalidateOnWrite(r.Context())
	}
	respondJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existing, err := s.stores.Relational.GetMaterial(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if existing == nil {
		respondError(w, r, apierr.NotFound("material %s not found", id))
		return
	}
	if err := s.stores.Relational.DeleteMaterial(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	_ = s.stores.Vector.Delete(r.Context(), "materials", id)
	if s.searchEngine != nil {
		s.searchEngine.InvalidateOnWrite(r.Context())
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}
