package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryVector is an in-process VectorStore used when no vector backend is
// configured.
type MemoryVector struct {
	mu          sync.RWMutex
	collections map[string]map[string]VectorPoint
}

// NewMemoryVector constructs an empty in-memory vector store.
func NewMemoryVector() *MemoryVector {
	return &MemoryVector{collections: make(map[string]map[string]VectorPoint)}
}

func (m *MemoryVector) EnsureCollection(ctx context.Context, collection string, dimensions int, distance string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = make(map[string]VectorPoint)
	}
	return nil
}

func (m *MemoryVector) Upsert(ctx context.Context, collection string, points []VectorPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]VectorPoint)
		m.collections[collection] = coll
	}
	for _, p := range points {
		coll[p.ID] = p
	}
	return nil
}

func (m *MemoryVector) BatchUpsert(ctx context.Context, collection string, points []VectorPoint, batchSize int) (BatchUpsertResult, error) {
	if err := m.Upsert(ctx, collection, points); err != nil {
		return BatchUpsertResult{}, err
	}
	return BatchUpsertResult{Succeeded: len(points)}, nil
}

func (m *MemoryVector) Delete(ctx context.Context, collection string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if coll, ok := m.collections[collection]; ok {
		delete(coll, id)
	}
	return nil
}

func (m *MemoryVector) Get(ctx context.Context, collection string, id string) (*VectorPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}
	p, ok := coll[id]
	if !ok {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

func (m *MemoryVector) Search(ctx context.Context, collection string, query []float32, limit int, filter *VectorFilter) ([]VectorMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.collections[collection]
	matches := make([]VectorMatch, 0, len(coll))
	for _, p := range coll {
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		score := cosine(query, p.Vector)
		matches = append(matches, VectorMatch{ID: p.ID, Score: score, Payload: p.Payload})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *MemoryVector) HealthCheck(ctx context.Context) Health {
	return Health{Status: "ok"}
}

// Scan returns every point in a collection matching filter, in one O(N)
// pass over the collection.
func (m *MemoryVector) Scan(ctx context.Context, collection string, filter *VectorFilter) ([]VectorPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.collections[collection]
	out := make([]VectorPoint, 0, len(coll))
	for _, p := range coll {
		if matchesFilter(p.Payload, filter) {
			out = append(out, p)
		}
	}
	return out, nil
}

func matchesFilter(payload map[string]any, filter *VectorFilter) bool {
	if filter == nil {
		return true
	}
	for k, v := range filter.Eq {
		if fmt.Sprintf("%v", payload[k]) != fmt.Sprintf("%v", v) {
			return false
		}
	}
	for k, vals := range filter.In {
		found := false
		for _, v := range vals {
			if fmt.Sprintf("%v", payload[k]) == fmt.Sprintf("%v", v) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for k, r := range filter.Range {
		fv, ok := toFloat(payload[k])
		if !ok {
			return false
		}
		if r.Gte != nil {
			if g, ok := toFloat(r.Gte); ok && fv < g {
				return false
			}
		}
		if r.Lte != nil {
			if l, ok := toFloat(r.Lte); ok && fv > l {
				return false
			}
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ VectorStore = (*MemoryVector)(nil)
