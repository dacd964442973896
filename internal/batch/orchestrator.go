// Package batch implements the bounded-concurrency batch pipeline
// orchestrator that drives raw supplier rows through parse, normalize,
// assign-SKU, and persist.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"manifold/internal/aiclient"
	"manifold/internal/apierr"
	"manifold/internal/models"
	"manifold/internal/normalize"
	"manifold/internal/parser"
	"manifold/internal/sku"
	"manifold/internal/store"
)

// Config tunes the orchestrator's scheduling.
type Config struct {
	MaxConcurrentBatches int
	InnerConcurrency     int
	ChunkSize            int
	RetryBudget          int
	CleanupTTLDays       int
}

// Item is a single raw input to enrich, keyed by a caller-stable id.
type Item struct {
	MaterialKey string
	Raw         models.RawProduct
}

// Orchestrator drives ProcessingRequests through their item pipelines with
// a bounded outer worker pool and a per-request inner semaphore.
type Orchestrator struct {
	cfg        Config
	relational store.RelationalStore
	vector     store.VectorStore
	embedder   *aiclient.Client
	parser     *parser.Stage
	normalizer *normalize.Stage
	skuStage   *sku.Stage

	outerSem *semaphore.Weighted

	mu       sync.Mutex
	cancels  map[string]context.CancelFunc
}

// New constructs an Orchestrator wired to every pipeline stage.
func New(cfg Config, relational store.RelationalStore, vector store.VectorStore, embedder *aiclient.Client, p *parser.Stage, n *normalize.Stage, s *sku.Stage) *Orchestrator {
	if cfg.MaxConcurrentBatches <= 0 {
		cfg.MaxConcurrentBatches = 10
	}
	if cfg.InnerConcurrency <= 0 {
		cfg.InnerConcurrency = 5
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = 3
	}
	if cfg.CleanupTTLDays <= 0 {
		cfg.CleanupTTLDays = 30
	}
	return &Orchestrator{
		cfg:        cfg,
		relational: relational,
		vector:     vector,
		embedder:   embedder,
		parser:     p,
		normalizer: n,
		skuStage:   s,
		outerSem:   semaphore.NewWeighted(int64(cfg.MaxConcurrentBatches)),
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Submit creates a new ProcessingRequest for items and starts processing it
// asynchronously, bounded by the outer worker pool. It returns immediately
// with the queued request.
func (o *Orchestrator) Submit(ctx context.Context, items []Item) (models.ProcessingRequest, error) {
	req := models.ProcessingRequest{
		RequestID:        uuid.NewString(),
		Status:           models.ProcessingQueued,
		Total:            len(items),
		CreatedAt:        time.Now().UTC(),
		TTLAfterTerminal: time.Duration(o.cfg.CleanupTTLDays) * 24 * time.Hour,
	}
	if err := o.relational.SaveProcessingRequest(ctx, req); err != nil {
		return models.ProcessingRequest{}, err
	}
	for _, it := range items {
		rec := models.ProcessingRecord{
			RequestID:     req.RequestID,
			MaterialKey:   it.MaterialKey,
			Status:        models.RecordPending,
			InputSnapshot: it.Raw,
			UpdatedAt:     time.Now().UTC(),
		}
		if err := o.relational.SaveProcessingRecord(ctx, rec); err != nil {
			return models.ProcessingRequest{}, err
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancels[req.RequestID] = cancel
	o.mu.Unlock()

	go o.run(runCtx, req.RequestID, items)

	return req, nil
}

// Cancel flags a request for cooperative cancellation. In-flight item work
// runs to completion; the request transitions to cancelled once all
// workers quiesce.
func (o *Orchestrator) Cancel(requestID string) {
	o.mu.Lock()
	cancel, ok := o.cancels[requestID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

func (o *Orchestrator) run(ctx context.Context, requestID string, items []Item) {
	if err := o.outerSem.Acquire(context.Background(), 1); err != nil {
		log.Error().Err(err).Str("request_id", requestID).Msg("batch: failed to acquire outer worker slot")
		return
	}
	defer o.outerSem.Release(1)
	defer o.clearCancel(requestID)

	now := time.Now().UTC()
	o.transition(context.Background(), requestID, models.ProcessingProcessing, &now, nil)

	inner := semaphore.NewWeighted(int64(o.cfg.InnerConcurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex // single-writer discipline for progress counters
	var succeeded, failed, processed int
	cancelled := false

	for start := 0; start < len(items); start += o.cfg.ChunkSize {
		end := start + o.cfg.ChunkSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		for _, item := range chunk {
			select {
			case <-ctx.Done():
				cancelled = true
			default:
			}
			if cancelled {
				break
			}

			if err := inner.Acquire(ctx, 1); err != nil {
				cancelled = true
				break
			}
			wg.Add(1)
			go func(it Item) {
				defer wg.Done()
				defer inner.Release(1)

				ok := o.processItemWithRetry(context.Background(), requestID, it)

				mu.Lock()
				processed++
				if ok {
					succeeded++
				} else {
					failed++
				}
				o.relational.SaveProcessingRequest(context.Background(), models.ProcessingRequest{
					RequestID: requestID, Status: models.ProcessingProcessing,
					Total: len(items), Processed: processed, Succeeded: succeeded, FailedCount: failed,
					CreatedAt: now,
				})
				mu.Unlock()
			}(item)
		}
		if cancelled {
			break
		}
	}
	wg.Wait()

	completed := time.Now().UTC()
	if cancelled {
		o.transition(context.Background(), requestID, models.ProcessingCancelled, &now, &completed)
		return
	}
	status := models.ProcessingCompleted
	if failed > 0 && succeeded == 0 {
		status = models.ProcessingFailed
	}
	req := models.ProcessingRequest{
		RequestID: requestID, Status: status, Total: len(items),
		Processed: processed, Succeeded: succeeded, FailedCount: failed,
		CreatedAt: now, StartedAt: &now, CompletedAt: &completed,
		TTLAfterTerminal: time.Duration(o.cfg.CleanupTTLDays) * 24 * time.Hour,
	}
	o.relational.SaveProcessingRequest(context.Background(), req)
}

func (o *Orchestrator) clearCancel(requestID string) {
	o.mu.Lock()
	delete(o.cancels, requestID)
	o.mu.Unlock()
}

func (o *Orchestrator) transition(ctx context.Context, requestID string, status models.ProcessingStatus, startedAt, completedAt *time.Time) {
	req, err := o.relational.GetProcessingRequest(ctx, requestID)
	if err != nil || req == nil {
		return
	}
	req.Status = status
	req.StartedAt = startedAt
	req.CompletedAt = completedAt
	o.relational.SaveProcessingRequest(ctx, *req)
}

// processItemWithRetry runs the strict parse -> normalize -> assign-SKU ->
// persist pipeline for one item, retrying transient errors up to the
// configured retry budget. Permanent errors (validation) are not retried.
func (o *Orchestrator) processItemWithRetry(ctx context.Context, requestID string, item Item) bool {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.RetryBudget; attempt++ {
		o.updateRecord(ctx, requestID, item.MaterialKey, models.RecordInProgress, "parse", attempt, nil, "")

		material, stage, err := o.processItem(ctx, item)
		if err == nil {
			o.updateRecord(ctx, requestID, item.MaterialKey, models.RecordSucceeded, "persist", attempt, material, "")
			o.relational.MarkRawProductProcessed(ctx, item.Raw.ID)
			return true
		}
		lastErr = err
		if !isTransient(err) {
			break
		}
		_ = stage
	}
	o.updateRecord(ctx, requestID, item.MaterialKey, models.RecordFailed, "persist", o.cfg.RetryBudget, nil, lastErr.Error())
	return false
}

func isTransient(err error) bool {
	return store.IsFallthrough(err)
}

func (o *Orchestrator) updateRecord(ctx context.Context, requestID, materialKey string, status models.RecordStatus, stage string, attempts int, output *models.Material, errMsg string) {
	rec := models.ProcessingRecord{
		RequestID: requestID, MaterialKey: materialKey, Status: status, Stage: stage,
		Attempts: attempts, Output: output, Error: errMsg, UpdatedAt: time.Now().UTC(),
	}
	o.relational.SaveProcessingRecord(ctx, rec)
}

// processItem runs the four sequential stages for one item.
func (o *Orchestrator) processItem(ctx context.Context, item Item) (*models.Material, string, error) {
	raw := item.Raw

	parsed, err := o.parser.Parse(ctx, parserInput(raw))
	if err != nil {
		return nil, "parse", err
	}

	colorField, err := o.normalizer.NormalizeColor(ctx, parsed.Color)
	if err != nil {
		return nil, "normalize", err
	}
	unitField, err := o.normalizer.NormalizeUnit(ctx, parsed.ParsedUnit)
	if err != nil {
		return nil, "normalize", err
	}

	assignment, combinedVec, err := o.skuStage.Assign(ctx, raw.Name, unitField.Canonical, colorField.Canonical)
	if err != nil {
		return nil, "assign_sku", err
	}

	now := time.Now().UTC()
	material := &models.Material{
		ID:          uuid.NewString(),
		Name:        raw.Name,
		UseCategory: raw.UseCategory,
		Unit:        firstNonEmpty(unitField.Canonical, raw.CalcUnit),
		SKU:         assignment.SKU,
		Description: raw.Description,
		Embedding:   combinedVec,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := o.relational.CreateMaterial(ctx, *material); err != nil {
		return nil, "persist", err
	}
	if err := o.vector.Upsert(ctx, "materials", []store.VectorPoint{{
		ID:     material.ID,
		Vector: material.Embedding,
		Payload: map[string]any{
			"name": material.Name, "use_category": material.UseCategory,
			"unit": material.Unit, "sku": material.SKU,
		},
	}}); err != nil {
		// Compensate: the relational row was written but the vector store
		// rejected the mirror write. Remove the relational row so the two
		// stores do not diverge. The inverse case cannot arise here: a failed
		// relational write returns before the vector write is attempted.
		_ = o.relational.DeleteMaterial(ctx, material.ID)
		return nil, "persist", err
	}

	return material, "persist", nil
}

func parserInput(raw models.RawProduct) parser.RawItem {
	return parser.RawItem{Name: raw.Name, Unit: raw.CalcUnit}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// CleanupReaper periodically deletes terminal processing records older
// than the configured TTL. Callers should run it in its own goroutine and
// cancel ctx to stop it.
func (o *Orchestrator) CleanupReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := int64(o.cfg.CleanupTTLDays) * 24 * 60 * 60
			n, err := o.relational.DeleteTerminalRecordsOlderThan(ctx, cutoff)
			if err != nil {
				log.Error().Err(err).Msg("batch: cleanup reaper failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("batch: cleanup reaper removed terminal records")
			}
		}
	}
}

// Progress returns the current ProcessingRequest and paginated records.
func (o *Orchestrator) Progress(ctx context.Context, requestID string, skip, limit int) (*models.ProcessingRequest, []models.ProcessingRecord, error) {
	req, err := o.relational.GetProcessingRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req == nil {
		return nil, nil, apierr.NotFound("processing request %s not found", requestID)
	}
	recs, err := o.relational.ListProcessingRecords(ctx, requestID, skip, limit)
	if err != nil {
		return nil, nil, err
	}
	return req, recs, nil
}

// RetryFailed resets every failed record for a request back to pending and
// resubmits them through a fresh run.
func (o *Orchestrator) RetryFailed(ctx context.Context, requestID string) error {
	recs, err := o.relational.ListProcessingRecords(ctx, requestID, 0, 0)
	if err != nil {
		return err
	}
	var items []Item
	for _, r := range recs {
		if r.Status != models.RecordFailed {
			continue
		}
		r.Status = models.RecordPending
		r.UpdatedAt = time.Now().UTC()
		if err := o.relational.SaveProcessingRecord(ctx, r); err != nil {
			return err
		}
		items = append(items, Item{MaterialKey: r.MaterialKey, Raw: r.InputSnapshot})
	}
	if len(items) == 0 {
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancels[requestID] = cancel
	o.mu.Unlock()
	go o.run(runCtx, requestID, items)
	return nil
}
