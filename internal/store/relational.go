package store

import (
	"context"

	"manifold/internal/models"
)

// Row is a generic result row from ExecuteQuery.
type Row map[string]any

// Tx is a transactional envelope over the relational store.
type Tx interface {
	ExecuteQuery(ctx context.Context, sql string, params ...any) ([]Row, error)
	ExecuteCommand(ctx context.Context, sql string, params ...any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// MaterialFilter narrows a material listing.
type MaterialFilter struct {
	Category string
	Skip     int
	Limit    int
}

// RelationalStore is the contract for durable, queryable storage of
// Materials, RawProducts, reference data, and processing state. Beyond the
// raw execute_query/execute_command primitives it exposes the domain
// operations the rest of the service relies on, so callers are not forced
// to hand-write SQL at every call site.
type RelationalStore interface {
	ExecuteQuery(ctx context.Context, sql string, params ...any) ([]Row, error)
	ExecuteCommand(ctx context.Context, sql string, params ...any) (int64, error)
	Begin(ctx context.Context) (Tx, error)

	Bootstrap(ctx context.Context) error

	CreateMaterial(ctx context.Context, m models.Material) error
	GetMaterial(ctx context.Context, id string) (*models.Material, error)
	FindMaterialByNameUnit(ctx context.Context, name, unit string) (*models.Material, error)
	ListMaterials(ctx context.Context, filter MaterialFilter) ([]models.Material, error)
	UpdateMaterial(ctx context.Context, m models.Material) error
	DeleteMaterial(ctx context.Context, id string) error
	SearchMaterialsLexical(ctx context.Context, query string, fields []string, trigramThreshold float64, limit int) ([]models.Material, []float64, error)

	CreateRawProduct(ctx context.Context, p models.RawProduct) error
	MarkRawProductProcessed(ctx context.Context, id string) error

	UpsertCategory(ctx context.Context, c models.Category) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	UpsertUnit(ctx context.Context, u models.Unit) error
	ListUnits(ctx context.Context) ([]models.Unit, error)
	DeleteUnit(ctx context.Context, id string) error

	SaveProcessingRequest(ctx context.Context, r models.ProcessingRequest) error
	GetProcessingRequest(ctx context.Context, requestID string) (*models.ProcessingRequest, error)
	SaveProcessingRecord(ctx context.Context, r models.ProcessingRecord) error
	ListProcessingRecords(ctx context.Context, requestID string, skip, limit int) ([]models.ProcessingRecord, error)
	DeleteTerminalRecordsOlderThan(ctx context.Context, cutoffSeconds int64) (int64, error)

	HealthCheck(ctx context.Context) Health
}
