package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"manifold/internal/batch"
	"manifold/internal/models"
	"manifold/internal/objectstore"
)

// ErrUploadTooLarge is returned when an upload exceeds the configured
// maximum size, so callers can map it to a 413-class response.
var ErrUploadTooLarge = errors.New("upload exceeds maximum size")

// Config tunes the ingestion front door.
type Config struct {
	MaxUploadBytes int64
	ArchiveBucket  string
}

// Result summarizes a single upload's outcome.
type Result struct {
	Schema        Schema
	TotalRows     int
	Deduplicated  int
	InferredCount int
	ArchiveKey    string
	Request       models.ProcessingRequest
}

// FrontDoor parses an uploaded pricelist, infers missing fields, dedups,
// archives the original file, and submits the enriched rows to the batch
// orchestrator.
type FrontDoor struct {
	cfg          Config
	orchestrator *batch.Orchestrator
	archive      objectstore.ObjectStore
}

// New constructs a FrontDoor. archive may be nil, in which case archival is
// skipped entirely rather than failing the upload.
func New(cfg Config, orchestrator *batch.Orchestrator, archive objectstore.ObjectStore) *FrontDoor {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 * 1024 * 1024
	}
	return &FrontDoor{cfg: cfg, orchestrator: orchestrator, archive: archive}
}

// Ingest reads a CSV pricelist from r, rejecting files over the configured
// size limit, and drives it through detection, inference, dedup, archival,
// and submission.
func (f *FrontDoor) Ingest(ctx context.Context, supplierID, pricelistID, filename string, r io.Reader) (Result, error) {
	limited := io.LimitReader(r, f.cfg.MaxUploadBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return Result{}, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(raw)) > f.cfg.MaxUploadBytes {
		return Result{}, fmt.Errorf("%w: limit is %d bytes", ErrUploadTooLarge, f.cfg.MaxUploadBytes)
	}

	rows, schema, err := parseCSV(raw)
	if err != nil {
		return Result{}, err
	}

	inferred := 0
	for i := range rows {
		if rows[i].UseCategory == "" {
			if c := InferCategory(rows[i].Name); c != "" {
				rows[i].UseCategory = c
				inferred++
			}
		}
		if rows[i].CalcUnit == "" {
			if u := InferUnit(rows[i].Name); u != "" {
				rows[i].CalcUnit = u
			}
		}
	}

	deduped, dupCount := dedupRows(rows)

	archiveKey := ""
	if f.archive != nil {
		archiveKey = objectstore.ArchiveKey(supplierID, pricelistID, filename)
		if _, err := f.archive.Put(ctx, archiveKey, bytes.NewReader(raw), objectstore.PutOptions{ContentType: "text/csv"}); err != nil {
			// Archival is best-effort: log and continue, since the upload
			// itself must not fail because of a storage-side outage.
			log.Ctx(ctx).Warn().Err(err).Str("archive_key", archiveKey).Msg("ingest archival failed")
			archiveKey = ""
		}
	}

	items := make([]batch.Item, 0, len(deduped))
	for _, row := range deduped {
		rp := row.ToRawProduct(supplierID, pricelistID)
		rp.ID = uuid.NewString()
		rp.UploadDate = time.Now()
		items = append(items, batch.Item{MaterialKey: rp.ID, Raw: rp})
	}

	request, err := f.orchestrator.Submit(ctx, items)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Schema:        schema,
		TotalRows:     len(rows),
		Deduplicated:  dupCount,
		InferredCount: inferred,
		ArchiveKey:    archiveKey,
		Request:       request,
	}, nil
}

func parseCSV(raw []byte) ([]Row, Schema, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, SchemaUnknown, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return nil, SchemaUnknown, fmt.Errorf("upload contains no rows")
	}

	header := records[0]
	schema := DetectSchema(header)
	if schema == SchemaUnknown {
		return nil, schema, fmt.Errorf("unrecognized column layout: missing required columns")
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[normalizeHeader(h)] = i
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := Row{
			Name:        field(rec, colIdx, "name"),
			SKU:         field(rec, colIdx, "sku"),
			UseCategory: field(rec, colIdx, "use_category"),
			Description: field(rec, colIdx, "description"),
			CalcUnit:    firstNonEmptyField(rec, colIdx, "calc_unit", "unit"),
		}
		if strings.TrimSpace(row.Name) == "" {
			continue
		}

		if priceStr := firstNonEmptyField(rec, colIdx, "unit_price", "price"); priceStr != "" {
			p, err := parsePrice(priceStr)
			if err != nil {
				return nil, schema, fmt.Errorf("row %q: invalid price %q: %w", row.Name, priceStr, err)
			}
			row.UnitPrice = p
		}

		row.UnitPriceCurrency = field(rec, colIdx, "unit_price_currency")
		if row.UnitPriceCurrency == "" {
			row.UnitPriceCurrency = "RUB"
		}

		if s := field(rec, colIdx, "buy_price"); s != "" {
			if p, err := parsePrice(s); err == nil {
				row.BuyPrice = &p
			}
		}
		if s := field(rec, colIdx, "sale_price"); s != "" {
			if p, err := parsePrice(s); err == nil {
				row.SalePrice = &p
			}
		}
		if s := field(rec, colIdx, "unit_calc_price"); s != "" {
			if p, err := parsePrice(s); err == nil {
				row.UnitCalcPrice = &p
			}
		}
		if s := field(rec, colIdx, "date_price_change"); s != "" {
			if t, err := parseDate(s); err == nil {
				row.DatePriceChange = &t
			}
		}

		row.Count = 1
		if c := field(rec, colIdx, "count"); c != "" {
			if v, err := strconv.ParseFloat(c, 64); err == nil {
				row.Count = v
			}
		}

		rows = append(rows, row)
	}
	return rows, schema, nil
}

func field(rec []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[name]
	if !ok || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func firstNonEmptyField(rec []string, colIdx map[string]int, names ...string) string {
	for _, name := range names {
		if v := field(rec, colIdx, name); v != "" {
			return v
		}
	}
	return ""
}

// parsePrice parses a supplier price string into an exact decimal,
// tolerating a decimal comma (common in Russian-language pricelists) in
// place of a dot.
func parsePrice(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	return decimal.NewFromString(s)
}

// parseDate parses a date_price_change value, accepting either full
// ISO-8601 or a bare YYYY-MM-DD date.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// dedupRows removes rows sharing a (name, calc_unit) key within the same
// batch, keeping the first occurrence.
func dedupRows(rows []Row) ([]Row, int) {
	seen := make(map[string]bool, len(rows))
	out := make([]Row, 0, len(rows))
	dupes := 0
	for _, r := range rows {
		key := strings.ToLower(r.Name) + "\x00" + strings.ToLower(r.CalcUnit)
		if seen[key] {
			dupes++
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out, dupes
}
