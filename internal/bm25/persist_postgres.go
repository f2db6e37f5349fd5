package bm25

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxQuerier is the slice of *pgxpool.Pool's method set PostgresPersister
// needs, narrowed to an interface so tests can exercise the SQL it issues
// against a fake instead of a live Postgres instance.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresPersister stores the built index's gob-encoded snapshot as a
// single row, for deployments that already run Postgres for the
// surrounding system and would rather not manage a separate index file.
// Grounded on the same pgxpool Exec/QueryRow idiom the corpus uses for its
// Postgres-backed full-text search adapter.
type PostgresPersister struct {
	Pool    pgxQuerier
	Table   string // default "bm25_index"
	RowName string // logical index name, default "default"
}

func (p PostgresPersister) table() string {
	if p.Table == "" {
		return "bm25_index"
	}
	return p.Table
}

func (p PostgresPersister) rowName() string {
	if p.RowName == "" {
		return "default"
	}
	return p.RowName
}

func (p PostgresPersister) ensureTable(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  name TEXT PRIMARY KEY,
  snapshot BYTEA NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, p.table()))
	return err
}

func (p PostgresPersister) Save(ctx context.Context, idx *Index) error {
	if err := p.ensureTable(ctx); err != nil {
		return fmt.Errorf("bm25: ensure postgres table: %w", err)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(idx.snapshot()); err != nil {
		return fmt.Errorf("bm25: encode index: %w", err)
	}
	_, err := p.Pool.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s(name, snapshot, updated_at) VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()
`, p.table()), p.rowName(), buf.Bytes())
	if err != nil {
		return fmt.Errorf("bm25: write postgres snapshot: %w", err)
	}
	return nil
}

func (p PostgresPersister) Load(ctx context.Context, idx *Index) error {
	var data []byte
	err := p.Pool.QueryRow(ctx, fmt.Sprintf(`SELECT snapshot FROM %s WHERE name = $1`, p.table()), p.rowName()).Scan(&data)
	if err != nil {
		return fmt.Errorf("bm25: read postgres snapshot: %w", err)
	}
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return fmt.Errorf("bm25: decode postgres snapshot: %w", err)
	}
	idx.restore(s)
	return nil
}
