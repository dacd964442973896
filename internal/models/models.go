// Package models defines the catalog service's domain entities. These types
// are shared across the store, fallback, batch, search, and httpapi
// packages and carry no storage-specific concerns.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Material is a canonical catalog entry.
type Material struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	UseCategory string    `json:"use_category,omitempty"`
	Unit        string    `json:"unit"`
	SKU         string    `json:"sku,omitempty"`
	Description string    `json:"description,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DedupKey is the logical dedup key used during bulk ingest.
func (m Material) DedupKey() string {
	return m.Name + "\x00" + m.Unit
}

// RawProduct is a supplier row awaiting enrichment. Price fields use
// decimal.Decimal rather than float64 so supplier prices are never subject
// to binary floating-point rounding on the way into and out of storage.
type RawProduct struct {
	ID                string          `json:"id"`
	SupplierID        string          `json:"supplier_id"`
	PricelistID       string          `json:"pricelist_id"`
	Name              string          `json:"name"`
	SKU               string          `json:"sku,omitempty"`
	UseCategory       string          `json:"use_category,omitempty"`
	Description       string          `json:"description,omitempty"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	UnitPriceCurrency string          `json:"unit_price_currency"`
	BuyPrice          decimal.Decimal `json:"buy_price,omitempty"`
	SalePrice         decimal.Decimal `json:"sale_price,omitempty"`
	UnitCalcPrice     decimal.Decimal `json:"unit_calc_price,omitempty"`
	CalcUnit          string          `json:"calc_unit"`
	Count             float64         `json:"count"`
	DatePriceChange   *time.Time      `json:"date_price_change,omitempty"`
	IsProcessed       bool            `json:"is_processed"`
	UploadDate        time.Time       `json:"upload_date"`
	Created           time.Time       `json:"created"`
	Modified          time.Time       `json:"modified"`
}

// ReferenceColor is a nearest-neighbor target used during color normalization.
type ReferenceColor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Aliases   []string  `json:"aliases,omitempty"`
	Embedding []float32 `json:"embedding"`
}

// ReferenceUnit is a nearest-neighbor target used during unit normalization.
type ReferenceUnit struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Aliases   []string  `json:"aliases,omitempty"`
	Embedding []float32 `json:"embedding"`
}

// ReferenceMaterial is a nearest-neighbor target used during SKU assignment.
type ReferenceMaterial struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Aliases   []string  `json:"aliases,omitempty"`
	Embedding []float32 `json:"embedding"`
}

// Category is filter-surface reference data.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Unit is filter-surface reference data.
type Unit struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ProcessingStatus is the lifecycle state of a ProcessingRequest.
type ProcessingStatus string

const (
	ProcessingQueued     ProcessingStatus = "queued"
	ProcessingProcessing ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
	ProcessingCancelled  ProcessingStatus = "cancelled"
)

// ProcessingRequest tracks a batch ingestion job.
type ProcessingRequest struct {
	RequestID       string           `json:"request_id"`
	Status          ProcessingStatus `json:"status"`
	Total           int              `json:"total"`
	Processed       int              `json:"processed"`
	Succeeded       int              `json:"succeeded"`
	FailedCount     int              `json:"failed_count"`
	CurrentStage    string           `json:"current_stage,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	Error           string           `json:"error,omitempty"`
	TTLAfterTerminal time.Duration   `json:"ttl_after_terminal"`
}

// RecordStatus is the lifecycle state of a ProcessingRecord.
type RecordStatus string

const (
	RecordPending    RecordStatus = "pending"
	RecordInProgress RecordStatus = "in_progress"
	RecordSucceeded  RecordStatus = "succeeded"
	RecordFailed     RecordStatus = "failed"
)

// ProcessingRecord tracks the enrichment of a single input item within a
// ProcessingRequest.
type ProcessingRecord struct {
	RequestID     string       `json:"request_id"`
	MaterialKey   string       `json:"material_key"`
	Status        RecordStatus `json:"status"`
	Stage         string       `json:"stage,omitempty"`
	InputSnapshot RawProduct   `json:"input_snapshot"`
	Output        *Material    `json:"output,omitempty"`
	Error         string       `json:"error,omitempty"`
	Attempts      int          `json:"attempts"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// SearchStrategy selects which search implementation answers a query.
type SearchStrategy string

const (
	StrategyVector  SearchStrategy = "vector"
	StrategyLexical SearchStrategy = "lexical"
	StrategyFuzzy   SearchStrategy = "fuzzy"
	StrategyHybrid  SearchStrategy = "hybrid"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortField names a field and the direction to sort it in.
type SortField struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// Filter is a single typed predicate applied to a search query.
type Filter struct {
	Field string `json:"field"`
	Op    string `json:"op"` // eq, neq, gt, gte, lt, lte, in
	Value any    `json:"value"`
}

// Pagination selects either page-based or cursor-based paging. Exactly one
// of Page or Cursor should be set by the caller.
type Pagination struct {
	Page     int    `json:"page,omitempty"`
	Cursor   string `json:"cursor,omitempty"`
	PageSize int    `json:"page_size"`
}

// SearchQuery is the input to the hybrid search engine.
type SearchQuery struct {
	Text               string         `json:"text,omitempty"`
	Strategy           SearchStrategy `json:"strategy"`
	Filters            []Filter       `json:"filters,omitempty"`
	Sort               []SortField    `json:"sort,omitempty"`
	Pagination         Pagination     `json:"pagination"`
	FuzzyThreshold     float64        `json:"fuzzy_threshold,omitempty"`
	IncludeSuggestions bool           `json:"include_suggestions,omitempty"`
	Highlight          bool           `json:"highlight,omitempty"`
}

// Highlight is an original/marked text pair for a single field.
type Highlight struct {
	Field    string `json:"field"`
	Original string `json:"original"`
	Marked   string `json:"marked"`
}

// SearchHit is a single result from a search query.
type SearchHit struct {
	Material       Material    `json:"material"`
	Score          float64     `json:"score"`
	SourceStrategy SearchStrategy `json:"source_strategy"`
	Highlights     []Highlight `json:"highlights,omitempty"`
}

// SearchResult is the full response to a search query, including pagination
// state and optional suggestions.
type SearchResult struct {
	Hits           []SearchHit `json:"hits"`
	TotalCount     int         `json:"total_count"`
	NextCursor     string      `json:"next_cursor,omitempty"`
	Suggestions    []string    `json:"suggestions,omitempty"`
}

// EmbeddingCacheEntry is a cached embedding vector keyed by the hash of
// normalized input text.
type EmbeddingCacheEntry struct {
	Key       string
	Vector    []float32
	ExpiresAt time.Time
}
