package observability

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactJSON_RedactsSensitiveFields(t *testing.T) {
	in := json.RawMessage(`{"name":"alice","password":"hunter2","Set-Cookie":"sid=abc","Cookie":"sid=abc","Authorization":"redact-me","X-API-Key":"redact-me","nested":{"token":"xyz"}}`)
	out := RedactJSON(in)

	var v map[string]any
	require.NoError(t, json.Unmarshal(out, &v))

	assert.Equal(t, "alice", v["name"])
	assert.Equal(t, "[REDACTED]", v["password"])
	assert.Equal(t, "[REDACTED]", v["Set-Cookie"])
	assert.Equal(t, "[REDACTED]", v["Cookie"])
	assert.Equal(t, "[REDACTED]", v["Authorization"])
	assert.Equal(t, "[REDACTED]", v["X-API-Key"])
	nested := v["nested"].(map[string]any)
	assert.Equal(t, "[REDACTED]", nested["token"])
}

func TestRedactJSON_PassesThroughNonSensitiveFields(t *testing.T) {
	in := json.RawMessage(`{"id":"123","count":5}`)
	out := RedactJSON(in)
	assert.JSONEq(t, string(in), string(out))
}

func TestRedactJSON_InvalidJSONReturnedUnchanged(t *testing.T) {
	in := json.RawMessage(`not json`)
	assert.Equal(t, in, RedactJSON(in))
}
