package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationMiddleware_GeneratesIDWhenAbsent(t *testing.T) {
	var seen string
	handler := correlationMiddleware("X-Correlation-ID")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = correlationIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Correlation-ID"))
}

func TestCorrelationMiddleware_EchoesIncomingID(t *testing.T) {
	handler := correlationMiddleware("X-Correlation-ID")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "fixed-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "fixed-id", rec.Header().Get("X-Correlation-ID"))
}

func TestStatusRecorder_CapturesWrittenStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}
	sr.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, sr.status)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
