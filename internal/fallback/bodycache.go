package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"manifold/internal/apierr"
)

type bodyCacheKey struct{}

// cachedBody holds the single read of a request body: raw bytes and, if it
// parses as JSON, the decoded form. Built once per request by
// CacheBodyMiddleware; the GetCachedBody* accessors below are pure thereafter.
type cachedBody struct {
	raw  []byte
	json json.RawMessage
	err  error
}

// CacheBodyMiddleware reads POST/PUT/PATCH bodies exactly once, bounded by
// maxBodyBytes, and replays them to the handler via a synthetic
// io.NopCloser so downstream consumers (the handler itself, validators,
// the request logger) never race to read a live body twice. This is the
// wrapping-receive-callable pattern: the original reader is consumed in
// one pass and re-exposed as a buffered replay.
func CacheBodyMiddleware(maxBodyBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}
			if r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			limited := io.LimitReader(r.Body, maxBodyBytes+1)
			raw, err := io.ReadAll(limited)
			_ = r.Body.Close()
			if err != nil {
				cb := &cachedBody{err: apierr.Internal("failed to read request body: %v", err)}
				ctx := context.WithValue(r.Context(), bodyCacheKey{}, cb)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			if int64(len(raw)) > maxBodyBytes {
				http.Error(w, `{"success":false,"error":{"code":"payload_too_large","message":"request body exceeds the configured limit"}}`, http.StatusRequestEntityTooLarge)
				return
			}

			cb := &cachedBody{raw: raw}
			if len(raw) > 0 {
				var v json.RawMessage
				if jerr := json.Unmarshal(raw, &v); jerr == nil {
					cb.json = v
				}
			}

			// Replay: a fresh reader over the already-consumed bytes, so the
			// handler's own json.NewDecoder(r.Body) still works unmodified.
			r.Body = io.NopCloser(bytes.NewReader(raw))
			ctx := context.WithValue(r.Context(), bodyCacheKey{}, cb)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCachedBodyBytes returns the single cached read of the request body, if
// CacheBodyMiddleware ran. The second return is false if no cache entry is
// present (the middleware was skipped, e.g. for GET).
func GetCachedBodyBytes(ctx context.Context) ([]byte, bool) {
	cb, ok := ctx.Value(bodyCacheKey{}).(*cachedBody)
	if !ok || cb.err != nil {
		return nil, false
	}
	return cb.raw, true
}

// GetCachedBodyStr returns the cached request body as a string, if
// CacheBodyMiddleware ran.
func GetCachedBodyStr(ctx context.Context) (string, bool) {
	raw, ok := GetCachedBodyBytes(ctx)
	if !ok {
		return "", false
	}
	return string(raw), true
}

// GetCachedBodyJSON returns the body decoded as a json.RawMessage, if it
// parsed as JSON.
func GetCachedBodyJSON(ctx context.Context) (json.RawMessage, bool) {
	cb, ok := ctx.Value(bodyCacheKey{}).(*cachedBody)
	if !ok || cb.err != nil || cb.json == nil {
		return nil, false
	}
	return cb.json, true
}
