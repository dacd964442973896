// Command catalogd runs the materials catalog HTTP service: ingestion,
// RAG-assisted normalization and SKU assignment, and hybrid search, backed
// by a vector store, a relational store, and a cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"manifold/internal/aiclient"
	"manifold/internal/batch"
	"manifold/internal/config"
	"manifold/internal/fallback"
	"manifold/internal/httpapi"
	"manifold/internal/ingest"
	"manifold/internal/normalize"
	"manifold/internal/objectstore"
	"manifold/internal/observability"
	"manifold/internal/parser"
	"manifold/internal/reference"
	"manifold/internal/search"
	"manifold/internal/sku"
	"manifold/internal/store"
)

const cleanupReaperInterval = time.Hour

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("catalogd")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	observability.InitLogger(cfg.Log.FilePath, cfg.Log.Level)

	baseCtx := context.Background()

	shutdownOTel, err := observability.InitOTel(baseCtx, cfg.Obs)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
		shutdownOTel = nil
	}
	if shutdownOTel != nil {
		defer func() { _ = shutdownOTel(context.Background()) }()
	}

	writers := []io.Writer{log.Logger}
	var sink *observability.BatchSink
	if len(cfg.Log.KafkaBrokers) > 0 && cfg.Log.KafkaTopic != "" {
		sink = observability.NewBatchSink(observability.SinkConfig{
			BatchSize:     cfg.Log.BatchSize,
			FlushInterval: cfg.Log.FlushInterval,
			KafkaBrokers:  cfg.Log.KafkaBrokers,
			KafkaTopic:    cfg.Log.KafkaTopic,
		}, log.Logger)
		defer sink.Close()
		writers = append(writers, sink)
	}
	if shutdownOTel != nil {
		writers = append(writers, observability.NewOTelWriter(cfg.Obs.ServiceName))
	}
	if len(writers) > 1 {
		log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	}

	stores, err := store.NewManager(baseCtx, cfg)
	if err != nil {
		return fmt.Errorf("init stores: %w", err)
	}
	defer stores.Close()

	fabric := fallback.New(stores)

	embedder := aiclient.New(cfg.Embedding)

	collections := reference.New(stores.Vector, embedder)
	if err := collections.EnsureCollections(baseCtx, cfg.Vector.Dimensions, cfg.Vector.Distance); err != nil {
		return fmt.Errorf("ensure reference collections: %w", err)
	}
	if seedPath := config.ReferenceSeedPath(); seedPath != "" {
		sf, err := reference.LoadSeedFile(seedPath)
		if err != nil {
			log.Warn().Err(err).Str("path", seedPath).Msg("failed to load reference seed file")
		} else if err := collections.Seed(baseCtx, sf); err != nil {
			log.Warn().Err(err).Msg("failed to seed reference collections")
		}
	}

	parserStage := parser.New(cfg.Embedding.OpenAIKey, "")
	normalizeStage := normalize.New(collections, embedder, normalize.Thresholds{
		Color: cfg.Normalization.ColorThreshold,
		Unit:  cfg.Normalization.UnitThreshold,
	})
	skuStage := sku.New(collections, embedder, sku.Thresholds{
		Confident: cfg.SKU.ConfidentThreshold,
		Weak:      cfg.SKU.WeakThreshold,
	})

	orchestrator := batch.New(batch.Config{
		MaxConcurrentBatches: cfg.Batch.MaxConcurrentBatches,
		InnerConcurrency:     cfg.Batch.InnerConcurrency,
		ChunkSize:            cfg.Batch.ChunkSize,
		RetryBudget:          cfg.Batch.RetryBudget,
		CleanupTTLDays:       cfg.Batch.CleanupTTLDays,
	}, stores.Relational, stores.Vector, embedder, parserStage, normalizeStage, skuStage)

	reaperCtx, cancelReaper := context.WithCancel(baseCtx)
	defer cancelReaper()
	go orchestrator.CleanupReaper(reaperCtx, cleanupReaperInterval)

	searchEngine := search.New(search.Config{
		MinSimilarity:   cfg.Search.MinSimilarity,
		FuzzyThreshold:  cfg.Search.FuzzyThreshold,
		HybridWeights:   search.Weights{Vector: cfg.Search.HybridWeights.Vector, Lexical: cfg.Search.HybridWeights.Lexical, Fuzzy: cfg.Search.HybridWeights.Fuzzy},
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
		CacheTTL:        cfg.Cache.SearchTTL,
	}, embedder, stores.Vector, stores.Relational, stores.Cache)

	archive, err := newArchiveStore(baseCtx, cfg.Objectstore)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}
	archive = objectstore.NewRetryingStore(archive, objectstore.RetryConfig{})

	frontDoor := ingest.New(ingest.Config{
		MaxUploadBytes: cfg.Ingest.MaxUploadBytes,
		ArchiveBucket:  cfg.Objectstore.Bucket,
	}, orchestrator, archive)

	server := httpapi.NewServer(httpapi.Config{
		MaxBodyBytes:            cfg.HTTP.MaxBodyBytes,
		CorrelationHeader:       cfg.Correlation.Header,
		ExcludeLogPaths:         cfg.Log.ExcludePaths,
		RateLimitCapacity:       cfg.HTTP.RateLimitCapacity,
		RateLimitRefillInterval: cfg.HTTP.RateLimitRefillInterval,
	}, stores, fabric, collections, orchestrator, searchEngine, frontDoor)
	defer server.Close()

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      server,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, cancel := signal.NotifyContext(baseCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("catalogd listening")
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	log.Info().Msg("catalogd stopped")
	return nil
}

func newArchiveStore(ctx context.Context, cfg config.S3Config) (objectstore.ObjectStore, error) {
	switch cfg.Backend {
	case "s3":
		return objectstore.NewS3Store(ctx, cfg)
	case "memory", "":
		return objectstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown objectstore backend %q", cfg.Backend)
	}
}
