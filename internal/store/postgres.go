package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"manifold/internal/models"
)

// PostgresStore is a RelationalStore backed by Postgres, reached through a
// pooled pgx connection.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pool against dsn, sized to poolSize.
func NewPostgresStore(ctx context.Context, dsn string, poolSize int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if poolSize > 0 {
		cfg.MaxConns = int32(poolSize)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, &ConnectionError{Backend: "postgres", Cause: err}
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, &ConnectionError{Backend: "postgres", Cause: err}
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the underlying pool.
func (p *PostgresStore) Close() { p.pool.Close() }

func classifyPgErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "context deadline exceeded"):
		return &OperationTimeout{Backend: "postgres", Operation: "call"}
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "broken pipe"), strings.Contains(msg, "EOF"):
		return &ConnectionError{Backend: "postgres", Cause: err}
	case strings.Contains(msg, "SQLSTATE 23"): // integrity constraint violations
		return &QueryError{Backend: "postgres", Cause: err}
	default:
		return &DatabaseError{Backend: "postgres", Cause: err}
	}
}

func rowsToMaps(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()
	fields := rows.FieldDescriptions()
	var out []Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		r := make(Row, len(fields))
		for i, f := range fields {
			r[string(f.Name)] = vals[i]
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ExecuteQuery(ctx context.Context, sql string, params ...any) ([]Row, error) {
	rows, err := p.pool.Query(ctx, sql, params...)
	if err != nil {
		return nil, classifyPgErr(err)
	}
	out, err := rowsToMaps(rows)
	if err != nil {
		return nil, classifyPgErr(err)
	}
	return out, nil
}

func (p *PostgresStore) ExecuteCommand(ctx context.Context, sql string, params ...any) (int64, error) {
	tag, err := p.pool.Exec(ctx, sql, params...)
	if err != nil {
		return 0, classifyPgErr(err)
	}
	return tag.RowsAffected(), nil
}

// pgTx adapts a pgx.Tx to the Tx envelope.
type pgTx struct {
	tx pgx.Tx
}

func (p *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, classifyPgErr(err)
	}
	return &pgTx{tx: tx}, nil
}

func (t *pgTx) ExecuteQuery(ctx context.Context, sql string, params ...any) ([]Row, error) {
	rows, err := t.tx.Query(ctx, sql, params...)
	if err != nil {
		return nil, classifyPgErr(err)
	}
	return rowsToMaps(rows)
}

func (t *pgTx) ExecuteCommand(ctx context.Context, sql string, params ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, params...)
	if err != nil {
		return 0, classifyPgErr(err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// Bootstrap creates every table and index this core relies on, idempotently.
func (p *PostgresStore) Bootstrap(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
		`CREATE TABLE IF NOT EXISTS materials (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			use_category TEXT,
			unit TEXT NOT NULL,
			sku TEXT UNIQUE,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS materials_category_idx ON materials (use_category)`,
		`CREATE INDEX IF NOT EXISTS materials_unit_idx ON materials (unit)`,
		`CREATE INDEX IF NOT EXISTS materials_sku_idx ON materials (sku)`,
		`CREATE INDEX IF NOT EXISTS materials_name_trgm_idx ON materials USING gin (name gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS materials_fts_idx ON materials USING gin (to_tsvector('simple', coalesce(name,'') || ' ' || coalesce(description,'')))`,
		`CREATE TABLE IF NOT EXISTS raw_products (
			id UUID PRIMARY KEY,
			supplier_id TEXT NOT NULL,
			pricelist_id TEXT,
			name TEXT NOT NULL,
			sku TEXT,
			use_category TEXT,
			unit_price TEXT,
			unit_price_currency TEXT DEFAULT 'RUB',
			buy_price TEXT,
			sale_price TEXT,
			unit_calc_price TEXT,
			calc_unit TEXT,
			description TEXT,
			count DOUBLE PRECISION DEFAULT 1,
			date_price_change TIMESTAMPTZ,
			is_processed BOOLEAN NOT NULL DEFAULT false,
			upload_date TIMESTAMPTZ NOT NULL DEFAULT now(),
			created TIMESTAMPTZ NOT NULL DEFAULT now(),
			modified TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS raw_products_supplier_idx ON raw_products (supplier_id)`,
		`CREATE INDEX IF NOT EXISTS raw_products_pricelist_idx ON raw_products (pricelist_id)`,
		`CREATE INDEX IF NOT EXISTS raw_products_processed_idx ON raw_products (is_processed)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id UUID PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			description TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS units (
			id UUID PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			description TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS processing_requests (
			request_id UUID PRIMARY KEY,
			status TEXT NOT NULL,
			total INT NOT NULL DEFAULT 0,
			processed INT NOT NULL DEFAULT 0,
			succeeded INT NOT NULL DEFAULT 0,
			failed_count INT NOT NULL DEFAULT 0,
			current_stage TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			error TEXT,
			ttl_after_terminal_s BIGINT NOT NULL DEFAULT 2592000
		)`,
		`CREATE TABLE IF NOT EXISTS processing_records (
			request_id UUID NOT NULL,
			material_key TEXT NOT NULL,
			status TEXT NOT NULL,
			stage TEXT,
			input_snapshot JSONB NOT NULL,
			output JSONB,
			error TEXT,
			attempts INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (request_id, material_key)
		)`,
		`CREATE INDEX IF NOT EXISTS processing_records_status_idx ON processing_records (status, updated_at)`,
	}
	for _, s := range stmts {
		if _, err := p.pool.Exec(ctx, s); err != nil {
			return classifyPgErr(err)
		}
	}
	return nil
}

func (p *PostgresStore) CreateMaterial(ctx context.Context, m models.Material) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO materials (id, name, use_category, unit, sku, description, created_at, updated_at)
		VALUES ($1,$2,$3,$4,NULLIF($5,''),$6,$7,$8)`,
		m.ID, m.Name, m.UseCategory, m.Unit, m.SKU, m.Description, m.CreatedAt, m.UpdatedAt)
	return classifyPgErr(err)
}

func (p *PostgresStore) GetMaterial(ctx context.Context, id string) (*models.Material, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, name, use_category, unit, coalesce(sku,''), coalesce(description,''), created_at, updated_at FROM materials WHERE id=$1`, id)
	var m models.Material
	if err := row.Scan(&m.ID, &m.Name, &m.UseCategory, &m.Unit, &m.SKU, &m.Description, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, classifyPgErr(err)
	}
	return &m, nil
}

func (p *PostgresStore) FindMaterialByNameUnit(ctx context.Context, name, unit string) (*models.Material, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, name, use_category, unit, coalesce(sku,''), coalesce(description,''), created_at, updated_at FROM materials WHERE name=$1 AND unit=$2`, name, unit)
	var m models.Material
	if err := row.Scan(&m.ID, &m.Name, &m.UseCategory, &m.Unit, &m.SKU, &m.Description, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, classifyPgErr(err)
	}
	return &m, nil
}

func (p *PostgresStore) ListMaterials(ctx context.Context, filter MaterialFilter) ([]models.Material, error) {
	sql := `SELECT id, name, use_category, unit, coalesce(sku,''), coalesce(description,''), created_at, updated_at FROM materials`
	var args []any
	if filter.Category != "" {
		sql += ` WHERE use_category = $1`
		args = append(args, filter.Category)
	}
	sql += fmt.Sprintf(` ORDER BY name ASC OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Skip, filter.Limit)
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classifyPgErr(err)
	}
	defer rows.Close()
	var out []models.Material
	for rows.Next() {
		var m models.Material
		if err := rows.Scan(&m.ID, &m.Name, &m.UseCategory, &m.Unit, &m.SKU, &m.Description, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, classifyPgErr(err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateMaterial(ctx context.Context, m models.Material) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE materials SET name=$2, use_category=$3, unit=$4, sku=NULLIF($5,''), description=$6, updated_at=$7
		WHERE id=$1`, m.ID, m.Name, m.UseCategory, m.Unit, m.SKU, m.Description, m.UpdatedAt)
	if err != nil {
		return classifyPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return &QueryError{Backend: "postgres", Cause: fmt.Errorf("material %s not found", m.ID)}
	}
	return nil
}

func (p *PostgresStore) DeleteMaterial(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM materials WHERE id=$1`, id)
	if err != nil {
		return classifyPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return &QueryError{Backend: "postgres", Cause: fmt.Errorf("material %s not found", id)}
	}
	return nil
}

// SearchMaterialsLexical runs a trigram + full-text lexical search over the
// given fields, falling back from websearch_to_tsquery to plainto_tsquery
// when the websearch parser rejects the input.
func (p *PostgresStore) SearchMaterialsLexical(ctx context.Context, query string, fields []string, trigramThreshold float64, limit int) ([]models.Material, []float64, error) {
	if len(fields) == 0 {
		fields = []string{"name", "description", "use_category"}
	}
	concat := "coalesce(name,'')"
	for _, f := range fields {
		if f == "name" {
			continue
		}
		concat += fmt.Sprintf(" || ' ' || coalesce(%s,'')", f)
	}

	sql := fmt.Sprintf(`
		SELECT id, name, use_category, unit, coalesce(sku,''), coalesce(description,''), created_at, updated_at,
		       GREATEST(similarity(name, $1), ts_rank(to_tsvector('simple', %s), websearch_to_tsquery('simple', $1))) AS score
		FROM materials
		WHERE similarity(name, $1) >= $2
		   OR to_tsvector('simple', %s) @@ websearch_to_tsquery('simple', $1)
		ORDER BY score DESC
		LIMIT $3`, concat, concat)

	rows, err := p.pool.Query(ctx, sql, query, trigramThreshold, limit)
	if err != nil {
		// websearch_to_tsquery can reject malformed input on old Postgres;
		// fall back to plainto_tsquery.
		sql = strings.ReplaceAll(sql, "websearch_to_tsquery", "plainto_tsquery")
		rows, err = p.pool.Query(ctx, sql, query, trigramThreshold, limit)
		if err != nil {
			return nil, nil, classifyPgErr(err)
		}
	}
	defer rows.Close()

	var mats []models.Material
	var scores []float64
	for rows.Next() {
		var m models.Material
		var score float64
		if err := rows.Scan(&m.ID, &m.Name, &m.UseCategory, &m.Unit, &m.SKU, &m.Description, &m.CreatedAt, &m.UpdatedAt, &score); err != nil {
			return nil, nil, classifyPgErr(err)
		}
		mats = append(mats, m)
		scores = append(scores, score)
	}
	return mats, scores, rows.Err()
}

func (p *PostgresStore) CreateRawProduct(ctx context.Context, rp models.RawProduct) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO raw_products (id, supplier_id, pricelist_id, name, sku, use_category, description, unit_price, unit_price_currency,
			buy_price, sale_price, unit_calc_price, calc_unit, count, date_price_change, is_processed, upload_date, created, modified)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		rp.ID, rp.SupplierID, rp.PricelistID, rp.Name, rp.SKU, rp.UseCategory, rp.Description, rp.UnitPrice, rp.UnitPriceCurrency,
		rp.BuyPrice, rp.SalePrice, rp.UnitCalcPrice, rp.CalcUnit, rp.Count, rp.DatePriceChange, rp.IsProcessed,
		rp.UploadDate, rp.Created, rp.Modified)
	return classifyPgErr(err)
}

func (p *PostgresStore) MarkRawProductProcessed(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `UPDATE raw_products SET is_processed=true, modified=now() WHERE id=$1`, id)
	return classifyPgErr(err)
}

func (p *PostgresStore) UpsertCategory(ctx context.Context, c models.Category) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO categories (id, name, description) VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET name=$2, description=$3`, c.ID, c.Name, c.Description)
	return classifyPgErr(err)
}

func (p *PostgresStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, coalesce(description,'') FROM categories ORDER BY name`)
	if err != nil {
		return nil, classifyPgErr(err)
	}
	defer rows.Close()
	var out []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, classifyPgErr(err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PostgresStore) DeleteCategory(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if err != nil {
		return classifyPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return &QueryError{Backend: "postgres", Cause: fmt.Errorf("category %s not found", id)}
	}
	return nil
}

func (p *PostgresStore) UpsertUnit(ctx context.Context, u models.Unit) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO units (id, name, description) VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET name=$2, description=$3`, u.ID, u.Name, u.Description)
	return classifyPgErr(err)
}

func (p *PostgresStore) ListUnits(ctx context.Context) ([]models.Unit, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, coalesce(description,'') FROM units ORDER BY name`)
	if err != nil {
		return nil, classifyPgErr(err)
	}
	defer rows.Close()
	var out []models.Unit
	for rows.Next() {
		var u models.Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.Description); err != nil {
			return nil, classifyPgErr(err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *PostgresStore) DeleteUnit(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM units WHERE id=$1`, id)
	if err != nil {
		return classifyPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return &QueryError{Backend: "postgres", Cause: fmt.Errorf("unit %s not found", id)}
	}
	return nil
}

func (p *PostgresStore) SaveProcessingRequest(ctx context.Context, r models.ProcessingRequest) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO processing_requests (request_id, status, total, processed, succeeded, failed_count, current_stage, created_at, started_at, completed_at, error, ttl_after_terminal_s)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (request_id) DO UPDATE SET
			status=$2, total=$3, processed=$4, succeeded=$5, failed_count=$6, current_stage=$7,
			started_at=$9, completed_at=$10, error=$11`,
		r.RequestID, string(r.Status), r.Total, r.Processed, r.Succeeded, r.FailedCount, r.CurrentStage,
		r.CreatedAt, r.StartedAt, r.CompletedAt, r.Error, int64(r.TTLAfterTerminal.Seconds()))
	return classifyPgErr(err)
}

func (p *PostgresStore) GetProcessingRequest(ctx context.Context, requestID string) (*models.ProcessingRequest, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT request_id, status, total, processed, succeeded, failed_count, coalesce(current_stage,''), created_at, started_at, completed_at, coalesce(error,''), ttl_after_terminal_s
		FROM processing_requests WHERE request_id=$1`, requestID)
	var r models.ProcessingRequest
	var status string
	var ttlS int64
	if err := row.Scan(&r.RequestID, &status, &r.Total, &r.Processed, &r.Succeeded, &r.FailedCount, &r.CurrentStage,
		&r.CreatedAt, &r.StartedAt, &r.CompletedAt, &r.Error, &ttlS); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, classifyPgErr(err)
	}
	r.Status = models.ProcessingStatus(status)
	r.TTLAfterTerminal = time.Duration(ttlS) * time.Second
	return &r, nil
}

func (p *PostgresStore) SaveProcessingRecord(ctx context.Context, r models.ProcessingRecord) error {
	var output []byte
	if r.Output != nil {
		output = toJSONB(*r.Output)
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO processing_records (request_id, material_key, status, stage, input_snapshot, output, error, attempts, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (request_id, material_key) DO UPDATE SET
			status=$3, stage=$4, input_snapshot=$5, output=$6, error=$7, attempts=$8, updated_at=$9`,
		r.RequestID, r.MaterialKey, string(r.Status), r.Stage, toJSONB(r.InputSnapshot), output, r.Error, r.Attempts, r.UpdatedAt)
	return classifyPgErr(err)
}

func (p *PostgresStore) ListProcessingRecords(ctx context.Context, requestID string, skip, limit int) ([]models.ProcessingRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT request_id, material_key, status, coalesce(stage,''), input_snapshot, output, coalesce(error,''), attempts, updated_at
		FROM processing_records WHERE request_id=$1 ORDER BY material_key OFFSET $2 LIMIT $3`, requestID, skip, limit)
	if err != nil {
		return nil, classifyPgErr(err)
	}
	defer rows.Close()
	var out []models.ProcessingRecord
	for rows.Next() {
		var r models.ProcessingRecord
		var status string
		var input, output []byte
		if err := rows.Scan(&r.RequestID, &r.MaterialKey, &status, &r.Stage, &input, &output, &r.Error, &r.Attempts, &r.UpdatedAt); err != nil {
			return nil, classifyPgErr(err)
		}
		r.Status = models.RecordStatus(status)
		fromJSONB(input, &r.InputSnapshot)
		if len(output) > 0 {
			var out2 models.Material
			fromJSONB(output, &out2)
			r.Output = &out2
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) DeleteTerminalRecordsOlderThan(ctx context.Context, cutoffSeconds int64) (int64, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM processing_records
		WHERE status IN ('succeeded','failed') AND updated_at < now() - ($1 || ' seconds')::interval`, cutoffSeconds)
	if err != nil {
		return 0, classifyPgErr(err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresStore) HealthCheck(ctx context.Context) Health {
	return timed(func() error {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return p.pool.Ping(cctx)
	})
}

var _ RelationalStore = (*PostgresStore)(nil)
