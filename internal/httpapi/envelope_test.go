package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/apierr"
)

func TestRespondJSON_WrapsInSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	respondJSON(rec, http.StatusOK, map[string]string{"id": "abc"})

	assert.Equal(t, http.StatusOK, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
}

func TestRespondError_MapsKindToStatusAndCode(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(rec, req, apierr.NotFound("material %s not found", "abc"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.False(t, env.Success)
	assert.Equal(t, string(apierr.KindNotFound), env.Error.Code)
}

func TestStatusFromKind_Mapping(t *testing.T) {
	cases := map[apierr.Kind]int{
		apierr.KindValidation:         http.StatusBadRequest,
		apierr.KindNotFound:           http.StatusNotFound,
		apierr.KindConflict:           http.StatusConflict,
		apierr.KindPreconditionFailed: http.StatusPreconditionFailed,
		apierr.KindTimeout:            http.StatusGatewayTimeout,
		apierr.KindUnavailable:        http.StatusServiceUnavailable,
		apierr.KindPayloadTooLarge:    http.StatusRequestEntityTooLarge,
		apierr.KindRateLimited:        http.StatusTooManyRequests,
		apierr.KindInternal:           http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusFromKind(kind), "kind %s", kind)
	}
}
