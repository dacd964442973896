package httpapi

import (
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startedAt).String(),
	})
}

func (s *Server) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vector := s.stores.Vector.HealthCheck(ctx)
	relational := s.stores.Relational.HealthCheck(ctx)
	cache := s.stores.Cache.HealthCheck(ctx)

	degraded := s.stores.RelationalDegraded()
	overallOK := vector.Status == "ok" && cache.Status == "ok" && (relational.Status == "ok" || degraded)

	status := http.StatusOK
	if !overallOK {
		status = http.StatusMultiStatus
	}

	body := map[string]any{
		"status": overallStatus(overallOK),
		"degraded_mode": degraded,
		"stores": map[string]any{
			"vector":     vector,
			"relational": relational,
			"cache":      cache,
		},
		"uptime": time.Since(s.startedAt).String(),
	}
	if degraded {
		body["warnings"] = []string{"degraded mode: the relational store is the in-memory stand-in, not Postgres"}
	}
	respondJSON(w, status, body)
}

func overallStatus(ok bool) string {
	if ok {
		return "ok"
	}
	return "degraded"
}
