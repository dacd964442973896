package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"manifold/internal/apierr"
	"manifold/internal/batch"
	"manifold/internal/models"
)

type submitProcessingRequest struct {
	Items []struct {
		MaterialKey string            `json:"material_key"`
		Raw         models.RawProduct `json:"raw"`
	} `json:"items"`
}

func (s *Server) handleSubmitProcessing(w http.ResponseWriter, r *http.Request) {
	var req submitProcessingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apierr.Validation("invalid request body: %v", err))
		return
	}
	if len(req.Items) == 0 {
		respondError(w, r, apierr.Validation("items must not be empty"))
		return
	}

	items := make([]batch.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, batch.Item{MaterialKey: it.MaterialKey, Raw: it.Raw})
	}

	request, err := s.orchestrator.Submit(r.Context(), items)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, request)
}

func (s *Server) handleGetProcessingStatus(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("requestID")
	request, _, err := s.orchestrator.Progress(r.Context(), requestID, 0, 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, request)
}

func (s *Server) handleGetProcessingResults(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("requestID")
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	request, records, err := s.orchestrator.Progress(r.Context(), requestID, skip, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"request": request, "records": records, "skip": skip, "limit": limit})
}

func (s *Server) handleRetryProcessing(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("requestID")
	if err := s.orchestrator.RetryFailed(r.Context(), requestID); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"request_id": requestID, "retried": true})
}

func (s *Server) handleCancelProcessing(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("requestID")
	s.orchestrator.Cancel(requestID)
	respondJSON(w, http.StatusOK, map[string]any{"request_id": requestID, "cancelled": true})
}
