// Package httpapi exposes the catalog service over HTTP: materials CRUD,
// search, ingestion, reference data, processing status, and health.
package httpapi

import (
	"net/http"
	"time"

	"manifold/internal/batch"
	"manifold/internal/fallback"
	"manifold/internal/ingest"
	"manifold/internal/reference"
	"manifold/internal/search"
	"manifold/internal/store"
)

// Config tunes server-level concerns not owned by any single component.
type Config struct {
	MaxBodyBytes       int64
	CorrelationHeader  string
	ExcludeLogPaths    []string
	RateLimitCapacity  int
	RateLimitRefillInterval time.Duration
}

// Server wires the catalog service's components behind a single
// net/http.ServeMux using Go 1.22+ method-prefixed routing.
type Server struct {
	cfg          Config
	stores       *store.Manager
	fabric       *fallback.Fabric
	collections  *reference.Collections
	orchestrator *batch.Orchestrator
	searchEngine *search.Engine
	frontDoor    *ingest.FrontDoor
	startedAt    time.Time
	mux          *http.ServeMux
	limiter      *RateLimiter
}

// NewServer constructs a Server wired to the given components.
func NewServer(
	cfg Config,
	stores *store.Manager,
	fabric *fallback.Fabric,
	collections *reference.Collections,
	orchestrator *batch.Orchestrator,
	searchEngine *search.Engine,
	frontDoor *ingest.FrontDoor,
) *Server {
	s := &Server{
		cfg:          cfg,
		stores:       stores,
		fabric:       fabric,
		collections:  collections,
		orchestrator: orchestrator,
		searchEngine: searchEngine,
		frontDoor:    frontDoor,
		startedAt:    time.Now(),
		mux:          http.NewServeMux(),
		limiter:      NewRateLimiter(cfg.RateLimitCapacity, cfg.RateLimitRefillInterval),
	}
	s.registerRoutes()
	return s
}

// Close releases resources held by the server, namely the rate limiter's
// refill goroutine.
func (s *Server) Close() {
	s.limiter.Close()
}

// ServeHTTP satisfies http.Handler, applying correlation id propagation,
// access logging, and request body caching ahead of routing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	exclude := make(map[string]bool, len(s.cfg.ExcludeLogPaths))
	for _, p := range s.cfg.ExcludeLogPaths {
		exclude[p] = true
	}
	maxBody := s.cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 10 * 1024 * 1024
	}
	handler := http.Handler(s.mux)
	handler = fallback.CacheBodyMiddleware(maxBody)(handler)
	handler = loggingMiddleware(exclude)(handler)
	handler = rateLimitMiddleware(s.limiter)(handler)
	handler = correlationMiddleware(s.cfg.CorrelationHeader)(handler)
	handler.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/v1/materials", s.handleCreateMaterial)
	s.mux.HandleFunc("POST /api/v1/materials/batch", s.handleBatchCreateMaterials)
	s.mux.HandleFunc("GET /api/v1/materials", s.handleListMaterials)
	s.mux.HandleFunc("GET /api/v1/materials/{id}", s.handleGetMaterial)
	s.mux.HandleFunc("PUT /api/v1/materials/{id}", s.handleUpdateMaterial)
	s.mux.HandleFunc("DELETE /api/v1/materials/{id}", s.handleDeleteMaterial)

	s.mux.HandleFunc("GET /api/v1/search", s.handleSimpleSearch)
	s.mux.HandleFunc("POST /api/v1/search", s.handleAdvancedSearch)
	s.mux.HandleFunc("GET /api/v1/search/suggestions", s.handleSuggestions)

	s.mux.HandleFunc("POST /api/v1/ingest", s.handleIngestUpload)

	s.mux.HandleFunc("GET /api/v1/reference/categories", s.handleListCategories)
	s.mux.HandleFunc("POST /api/v1/reference/categories", s.handleUpsertCategory)
	s.mux.HandleFunc("DELETE /api/v1/reference/categories/{id}", s.handleDeleteCategory)
	s.mux.HandleFunc("GET /api/v1/reference/units", s.handleListUnits)
	s.mux.HandleFunc("POST /api/v1/reference/units", s.handleUpsertUnit)
	s.mux.HandleFunc("DELETE /api/v1/reference/units/{id}", s.handleDeleteUnit)

	s.mux.HandleFunc("POST /api/v1/processing", s.handleSubmitProcessing)
	s.mux.HandleFunc("GET /api/v1/processing/{requestID}", s.handleGetProcessingStatus)
	s.mux.HandleFunc("GET /api/v1/processing/{requestID}/results", s.handleGetProcessingResults)
	s.mux.HandleFunc("POST /api/v1/processing/{requestID}/retry", s.handleRetryProcessing)
	s.mux.HandleFunc("DELETE /api/v1/processing/{requestID}", s.handleCancelProcessing)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /health/detailed", s.handleHealthDetailed)
}
