package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"manifold/internal/apierr"
)

// envelope is the stable response shape every endpoint returns.
type envelope struct {
	Success   bool           `json:"success"`
	Data      any            `json:"data,omitempty"`
	Error     *envelopeError `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type envelopeError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	Details       any    `json:"details,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Timestamp: time.Now().UTC()})
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apierr.KindOf(err)
	status := statusFromKind(kind)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error: &envelopeError{
			Code:          string(kind),
			Message:       err.Error(),
			CorrelationID: correlationIDFrom(r.Context()),
		},
		Timestamp: time.Now().UTC(),
	})
}

func statusFromKind(kind apierr.Kind) int {
	switch kind {
	case apierr.KindValidation:
		return http.StatusBadRequest
	case apierr.KindNotFound:
		return http.StatusNotFound
	case apierr.KindConflict:
		return http.StatusConflict
	case apierr.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case apierr.KindTimeout:
		return http.StatusGatewayTimeout
	case apierr.KindUnavailable:
		return http.StatusServiceUnavailable
	case apierr.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case apierr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
