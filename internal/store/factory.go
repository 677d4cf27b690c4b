package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backend names a catalog implementation.
type Backend string

const (
	// BackendSQLite uses SQLite FTS5 for name search (default).
	BackendSQLite Backend = "sqlite"
	// BackendBleve uses a Bleve index for name search. Overrides and
	// engagement still live in the SQLite database.
	BackendBleve Backend = "bleve"
	// BackendPostgres serves everything from PostgreSQL.
	BackendPostgres Backend = "postgres"
)

// Options selects and locates a catalog backend.
type Options struct {
	Backend        Backend
	Path           string // SQLite database path
	BlevePath      string // Bleve index directory
	DSN            string // PostgreSQL connection string
	ConnectTimeout time.Duration
}

// Stores bundles the three data sources the search pipeline reads, plus the
// writers ingest feeds. Writers may hold more than one entry when the search
// index is separate from the SQLite database.
type Stores struct {
	Catalog    Catalog
	Overrides  OverrideStore
	Engagement EngagementStore
	Writers    []Writer
	Stats      func(ctx context.Context) (Stats, error)

	closers []func() error
}

// Upsert writes records to every writer.
func (s *Stores) Upsert(ctx context.Context, records []RawRecord) error {
	for _, w := range s.Writers {
		if err := w.Upsert(ctx, records); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every underlying store and joins their errors.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds the stores for the configured backend.
func Open(ctx context.Context, opts Options) (*Stores, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		db, err := NewSQLiteCatalog(opts.Path)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Catalog:    db,
			Overrides:  db,
			Engagement: db,
			Writers:    []Writer{db},
			Stats:      db.Stats,
			closers:    []func() error{db.Close},
		}, nil

	case BackendBleve:
		db, err := NewSQLiteCatalog(opts.Path)
		if err != nil {
			return nil, err
		}
		idx, err := NewBleveCatalog(opts.BlevePath)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Stores{
			Catalog:    idx,
			Overrides:  db,
			Engagement: db,
			Writers:    []Writer{db, idx},
			Stats:      db.Stats,
			closers:    []func() error{db.Close, idx.Close},
		}, nil

	case BackendPostgres:
		pg, err := NewPostgresCatalog(ctx, PostgresConfig{DSN: opts.DSN, ConnectTimeout: opts.ConnectTimeout})
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return &Stores{
			Catalog:    pg,
			Overrides:  pg,
			Engagement: pg,
			Writers:    []Writer{pg},
			Stats:      pg.Stats,
			closers:    []func() error{pg.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown catalog backend: %s (valid options: sqlite, bleve, postgres)", opts.Backend)
	}
}
