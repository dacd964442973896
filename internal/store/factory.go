package store

import (
	"context"
	"fmt"

	"manifold/internal/config"
)

// Manager owns one instance of each store tier, constructed according to
// configuration. "memory"/"none" backends are accepted for every tier so
// the service can run without external dependencies in tests and local
// development.
type Manager struct {
	Vector     VectorStore
	Relational RelationalStore
	Cache      Cache

	pg *PostgresStore
}

// NewManager builds a Manager from configuration, dialing every configured
// backend eagerly so misconfiguration surfaces at startup rather than on
// first request.
func NewManager(ctx context.Context, cfg *config.Config) (*Manager, error) {
	m := &Manager{}

	switch cfg.Vector.Backend {
	case "qdrant":
		qv, err := NewQdrantVector(cfg.Vector.DSN)
		if err != nil {
			return nil, fmt.Errorf("vector store: %w", err)
		}
		if err := qv.EnsureCollection(ctx, cfg.Vector.CollectionName, cfg.Vector.Dimensions, cfg.Vector.Distance); err != nil {
			return nil, fmt.Errorf("vector store: ensure collection: %w", err)
		}
		m.Vector = qv
	case "memory", "none", "":
		m.Vector = NewMemoryVector()
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}

	switch cfg.Relational.Backend {
	case "postgres":
		pg, err := NewPostgresStore(ctx, cfg.Relational.DSN, cfg.Relational.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("relational store: %w", err)
		}
		if err := pg.Bootstrap(ctx); err != nil {
			return nil, fmt.Errorf("relational store: bootstrap: %w", err)
		}
		m.Relational = pg
		m.pg = pg
	case "memory", "none", "":
		m.Relational = NewMemoryRelational()
	default:
		return nil, fmt.Errorf("unknown relational backend %q", cfg.Relational.Backend)
	}

	switch cfg.Cache.Backend {
	case "redis":
		rc, err := NewRedisCache(cfg.Cache.DSN)
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		m.Cache = rc
	case "memory", "none", "":
		m.Cache = NewMemoryCache()
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	return m, nil
}

// Close releases any pooled resources owned by the manager.
func (m *Manager) Close() {
	if m.pg != nil {
		m.pg.Close()
	}
}

// RelationalDegraded reports whether the relational store is a non-Postgres
// stand-in (the in-memory store). Processing requests and records are then
// kept in that in-memory store; they are not routed to the vector store.
func (m *Manager) RelationalDegraded() bool {
	_, ok := m.Relational.(*PostgresStore)
	return !ok
}
