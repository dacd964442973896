package httpapi

import (
	"errors"
	"net/http"

	"manifold/internal/apierr"
	"manifold/internal/ingest"
)

func (s *Server) handleIngestUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, r, apierr.Validation("invalid multipart form: %v", err))
		return
	}
	supplierID := r.FormValue("supplier_id")
	if supplierID == "" {
		respondError(w, r, apierr.Validation("supplier_id is required"))
		return
	}
	pricelistID := r.FormValue("pricelist_id")

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, apierr.Validation("file is required: %v", err))
		return
	}
	defer file.Close()

	result, err := s.frontDoor.Ingest(r.Context(), supplierID, pricelistID, header.Filename, file)
	if err != nil {
		if errors.Is(err, ingest.ErrUploadTooLarge) {
			respondError(w, r, apierr.Wrap(apierr.KindPayloadTooLarge, err, "upload too large"))
			return
		}
		respondError(w, r, apierr.Validation("%v", err))
		return
	}

	respondJSON(w, http.StatusAccepted, result)
}
