// Package fallback implements the multi-store routing façade: an ordered
// primary/fallback binding list per logical operation kind, plus the
// request body caching helper used by validators and loggers.
package fallback

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"manifold/internal/apierr"
	"manifold/internal/store"
)

// OperationKind names a logical data-access operation the fabric routes.
type OperationKind string

const (
	OpVectorSearch        OperationKind = "vector_search"
	OpLexicalSearch       OperationKind = "lexical_search"
	OpMaterialRead        OperationKind = "material_read"
	OpMaterialWrite       OperationKind = "material_write"
	OpProcessingProgress  OperationKind = "processing_progress"
)

// Deadlines hold the per-adapter and total deadlines applied while routing
// a single logical operation.
type Deadlines struct {
	PerAdapter time.Duration
	Total      time.Duration
}

var defaultDeadlines = map[OperationKind]Deadlines{
	OpVectorSearch:       {PerAdapter: 2 * time.Second, Total: 4 * time.Second},
	OpLexicalSearch:      {PerAdapter: 2 * time.Second, Total: 4 * time.Second},
	OpMaterialRead:       {PerAdapter: 2 * time.Second, Total: 4 * time.Second},
	OpMaterialWrite:      {PerAdapter: 2 * time.Second, Total: 5 * time.Second},
	OpProcessingProgress: {PerAdapter: 2 * time.Second, Total: 5 * time.Second},
}

// Fabric is the single façade that routes logical operations across
// whichever adapters are bound to them, in order, falling through on
// ConnectionError/OperationTimeout only.
type Fabric struct {
	Stores *store.Manager
}

// New constructs a Fabric over a store manager.
func New(stores *store.Manager) *Fabric {
	return &Fabric{Stores: stores}
}

// Attempt is a single adapter call in a routing chain.
type Attempt[T any] struct {
	Name string
	Call func(ctx context.Context) (T, error)
}

// Route tries each attempt in order. QueryError and validation failures
// (anything not a ConnectionError/OperationTimeout) surface immediately.
// ConnectionError and OperationTimeout fall through to the next attempt.
// The total deadline bounds the whole chain.
func Route[T any](ctx context.Context, kind OperationKind, attempts []Attempt[T]) (T, error) {
	var zero T
	dl := defaultDeadlines[kind]
	if dl.Total == 0 {
		dl.Total = 5 * time.Second
	}
	if dl.PerAdapter == 0 {
		dl.PerAdapter = 2 * time.Second
	}

	totalCtx, cancelTotal := context.WithTimeout(ctx, dl.Total)
	defer cancelTotal()

	var lastErr error
	for _, a := range attempts {
		attemptCtx, cancel := context.WithTimeout(totalCtx, dl.PerAdapter)
		result, err := a.Call(attemptCtx)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !store.IsFallthrough(err) {
			return zero, err
		}
		log.Ctx(ctx).Warn().Str("adapter", a.Name).Str("operation", string(kind)).Err(err).Msg("fabric: falling through to next adapter")
	}
	if lastErr == nil {
		return zero, apierr.Unavailable("no adapters configured for operation %q", kind)
	}
	return zero, apierr.Wrap(apierr.KindUnavailable, lastErr, "all adapters exhausted for operation %q", kind)
}

// IdempotentWrite performs primary then, on fall-through-eligible failure,
// replays on the fallback using the same stable id so the effect is
// idempotent and never double-applied by accident.
func IdempotentWrite(ctx context.Context, kind OperationKind, id string, primary, fallback func(ctx context.Context, id string) error) error {
	if id == "" {
		id = uuid.NewString()
	}
	dl := defaultDeadlines[kind]
	if dl.Total == 0 {
		dl.Total = 5 * time.Second
	}
	totalCtx, cancel := context.WithTimeout(ctx, dl.Total)
	defer cancel()

	err := primary(totalCtx, id)
	if err == nil {
		return nil
	}
	if !store.IsFallthrough(err) {
		return err
	}
	if fallback == nil {
		return err
	}
	log.Ctx(ctx).Warn().Str("operation", string(kind)).Str("id", id).Err(err).Msg("fabric: primary write failed, replaying on fallback")
	return fallback(totalCtx, id)
}
