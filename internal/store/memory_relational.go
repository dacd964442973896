package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"manifold/internal/apierr"
	"manifold/internal/models"
)

// MemoryRelational is a RelationalStore used for tests and for the "none"
// backend. It implements the same domain contract as PostgresStore with
// naive in-process data structures; ExecuteQuery/ExecuteCommand are not
// meaningful against arbitrary SQL and return apierr.Internal.
type MemoryRelational struct {
	mu         sync.RWMutex
	materials  map[string]models.Material
	rawProds   map[string]models.RawProduct
	categories map[string]models.Category
	units      map[string]models.Unit
	requests   map[string]models.ProcessingRequest
	records    map[string]map[string]models.ProcessingRecord // requestID -> materialKey -> record
}

// NewMemoryRelational constructs an empty in-memory relational store.
func NewMemoryRelational() *MemoryRelational {
	return &MemoryRelational{
		materials:  make(map[string]models.Material),
		rawProds:   make(map[string]models.RawProduct),
		categories: make(map[string]models.Category),
		units:      make(map[string]models.Unit),
		requests:   make(map[string]models.ProcessingRequest),
		records:    make(map[string]map[string]models.ProcessingRecord),
	}
}

func (m *MemoryRelational) ExecuteQuery(ctx context.Context, sql string, params ...any) ([]Row, error) {
	return nil, &QueryError{Backend: "memory", Cause: apierr.Internal("raw SQL is not supported by the in-memory relational store")}
}

func (m *MemoryRelational) ExecuteCommand(ctx context.Context, sql string, params ...any) (int64, error) {
	return 0, &QueryError{Backend: "memory", Cause: apierr.Internal("raw SQL is not supported by the in-memory relational store")}
}

type memTx struct{ store *MemoryRelational }

func (m *MemoryRelational) Begin(ctx context.Context) (Tx, error) { return &memTx{store: m}, nil }
func (t *memTx) ExecuteQuery(ctx context.Context, sql string, params ...any) ([]Row, error) {
	return t.store.ExecuteQuery(ctx, sql, params...)
}
func (t *memTx) ExecuteCommand(ctx context.Context, sql string, params ...any) (int64, error) {
	return t.store.ExecuteCommand(ctx, sql, params...)
}
func (t *memTx) Commit(ctx context.Context) error   { return nil }
func (t *memTx) Rollback(ctx context.Context) error { return nil }

func (m *MemoryRelational) Bootstrap(ctx context.Context) error { return nil }

func (m *MemoryRelational) CreateMaterial(ctx context.Context, mat models.Material) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mat.SKU != "" {
		for _, existing := range m.materials {
			if existing.SKU == mat.SKU {
				return &QueryError{Backend: "memory", Cause: apierr.Conflict("sku %q already in use", mat.SKU)}
			}
		}
	}
	m.materials[mat.ID] = mat
	return nil
}

func (m *MemoryRelational) GetMaterial(ctx context.Context, id string) (*models.Material, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mat, ok := m.materials[id]
	if !ok {
		return nil, nil
	}
	return &mat, nil
}

func (m *MemoryRelational) FindMaterialByNameUnit(ctx context.Context, name, unit string) (*models.Material, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mat := range m.materials {
		if mat.Name == name && mat.Unit == unit {
			cp := mat
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryRelational) ListMaterials(ctx context.Context, filter MaterialFilter) ([]models.Material, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Material
	for _, mat := range m.materials {
		if filter.Category != "" && mat.UseCategory != filter.Category {
			continue
		}
		out = append(out, mat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if filter.Skip > 0 {
		if filter.Skip >= len(out) {
			return nil, nil
		}
		out = out[filter.Skip:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryRelational) UpdateMaterial(ctx context.Context, mat models.Material) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.materials[mat.ID]; !ok {
		return &QueryError{Backend: "memory", Cause: apierr.NotFound("material %s not found", mat.ID)}
	}
	m.materials[mat.ID] = mat
	return nil
}

func (m *MemoryRelational) DeleteMaterial(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.materials[id]; !ok {
		return &QueryError{Backend: "memory", Cause: apierr.NotFound("material %s not found", id)}
	}
	delete(m.materials, id)
	return nil
}

func (m *MemoryRelational) SearchMaterialsLexical(ctx context.Context, query string, fields []string, trigramThreshold float64, limit int) ([]models.Material, []float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(query))
	type scored struct {
		mat   models.Material
		score float64
	}
	var all []scored
	for _, mat := range m.materials {
		haystack := strings.ToLower(mat.Name + " " + mat.Description + " " + mat.UseCategory)
		if q == "" || strings.Contains(haystack, q) {
			score := termOverlapScore(q, haystack)
			all = append(all, scored{mat: mat, score: score})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	mats := make([]models.Material, len(all))
	scores := make([]float64, len(all))
	for i, s := range all {
		mats[i] = s.mat
		scores[i] = s.score
	}
	return mats, scores, nil
}

func termOverlapScore(query, haystack string) float64 {
	if query == "" {
		return 0.5
	}
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return 0.5
	}
	matched := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

func (m *MemoryRelational) CreateRawProduct(ctx context.Context, p models.RawProduct) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rawProds[p.ID] = p
	return nil
}

func (m *MemoryRelational) MarkRawProductProcessed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rawProds[id]
	if !ok {
		return &QueryError{Backend: "memory", Cause: apierr.NotFound("raw product %s not found", id)}
	}
	p.IsProcessed = true
	p.Modified = time.Now().UTC()
	m.rawProds[id] = p
	return nil
}

func (m *MemoryRelational) UpsertCategory(ctx context.Context, c models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = c
	return nil
}

func (m *MemoryRelational) ListCategories(ctx context.Context) ([]models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryRelational) DeleteCategory(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[id]; !ok {
		return &QueryError{Backend: "memory", Cause: apierr.NotFound("category %s not found", id)}
	}
	delete(m.categories, id)
	return nil
}

func (m *MemoryRelational) UpsertUnit(ctx context.Context, u models.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[u.ID] = u
	return nil
}

func (m *MemoryRelational) ListUnits(ctx context.Context) ([]models.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Unit, 0, len(m.units))
	for _, u := range m.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryRelational) DeleteUnit(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.units[id]; !ok {
		return &QueryError{Backend: "memory", Cause: apierr.NotFound("unit %s not found", id)}
	}
	delete(m.units, id)
	return nil
}

func (m *MemoryRelational) SaveProcessingRequest(ctx context.Context, r models.ProcessingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.RequestID] = r
	return nil
}

func (m *MemoryRelational) GetProcessingRequest(ctx context.Context, requestID string) (*models.ProcessingRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[requestID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MemoryRelational) SaveProcessingRecord(ctx context.Context, r models.ProcessingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKey, ok := m.records[r.RequestID]
	if !ok {
		byKey = make(map[string]models.ProcessingRecord)
		m.records[r.RequestID] = byKey
	}
	byKey[r.MaterialKey] = r
	return nil
}

func (m *MemoryRelational) ListProcessingRecords(ctx context.Context, requestID string, skip, limit int) ([]models.ProcessingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byKey := m.records[requestID]
	out := make([]models.ProcessingRecord, 0, len(byKey))
	for _, r := range byKey {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MaterialKey < out[j].MaterialKey })
	if skip > 0 {
		if skip >= len(out) {
			return nil, nil
		}
		out = out[skip:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRelational) DeleteTerminalRecordsOlderThan(ctx context.Context, cutoffSeconds int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-time.Duration(cutoffSeconds) * time.Second)
	var deleted int64
	for reqID, byKey := range m.records {
		for key, r := range byKey {
			if (r.Status == models.RecordSucceeded || r.Status == models.RecordFailed) && r.UpdatedAt.Before(cutoff) {
				delete(byKey, key)
				deleted++
			}
		}
		if len(byKey) == 0 {
			delete(m.records, reqID)
		}
	}
	return deleted, nil
}

func (m *MemoryRelational) HealthCheck(ctx context.Context) Health {
	return Health{Status: "ok"}
}

var _ RelationalStore = (*MemoryRelational)(nil)
