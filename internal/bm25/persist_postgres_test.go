package bm25

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"retrievalcore/internal/chunk"
)

// fakeQuerier stands in for *pgxpool.Pool in tests: it records the last
// snapshot written via Exec and replays it on QueryRow, so Save/Load can be
// exercised without a live Postgres instance.
type fakeQuerier struct {
	lastSnapshot []byte
	execErr      error
	queryErr     error
}

func (f *fakeQuerier) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	if len(args) == 2 {
		if data, ok := args[1].([]byte); ok {
			f.lastSnapshot = data
		}
	}
	return pgconn.CommandTag{}, nil
}

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	ptr, ok := dest[0].(*[]byte)
	if !ok {
		return errors.New("fakeRow: unsupported scan target")
	}
	*ptr = r.data
	return nil
}

func (f *fakeQuerier) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	if f.queryErr != nil {
		return fakeRow{err: f.queryErr}
	}
	return fakeRow{data: f.lastSnapshot}
}

func TestPostgresPersisterSaveThenLoadRoundTrips(t *testing.T) {
	idx := New(1.5, 0.75)
	idx.Build([]chunk.Chunk{
		{ChunkID: "c1", ProcedureID: "p1", Content: "thủ tục đăng ký kết hôn"},
		{ChunkID: "c2", ProcedureID: "p1", Content: "hồ sơ cần chuẩn bị"},
	})

	pool := &fakeQuerier{}
	persister := PostgresPersister{Pool: pool, Table: "bm25_index", RowName: "default"}
	require.NoError(t, persister.Save(context.Background(), idx))
	require.NotEmpty(t, pool.lastSnapshot)

	restored := New(1.5, 0.75)
	require.NoError(t, persister.Load(context.Background(), restored))
	assert.True(t, restored.IsBuilt())
	assert.Equal(t, idx.NumDocs(), restored.NumDocs())
}

func TestPostgresPersisterLoadPropagatesQueryError(t *testing.T) {
	pool := &fakeQuerier{queryErr: errors.New("connection refused")}
	persister := PostgresPersister{Pool: pool}
	err := persister.Load(context.Background(), New(1.5, 0.75))
	assert.Error(t, err)
}

func TestPostgresPersisterSavePropagatesExecError(t *testing.T) {
	pool := &fakeQuerier{execErr: errors.New("ensure table failed")}
	persister := PostgresPersister{Pool: pool}
	err := persister.Save(context.Background(), New(1.5, 0.75))
	assert.Error(t, err)
}

func TestPostgresPersisterDefaultTableAndRowName(t *testing.T) {
	p := PostgresPersister{}
	assert.Equal(t, "bm25_index", p.table())
	assert.Equal(t, "default", p.rowName())
}

// TestFakeQuerierCarriesGobEncodedSnapshot is a sanity check that the fake's byte-slice passthrough
// really does carry an encoded snapshot end to end.
func TestFakeQuerierCarriesGobEncodedSnapshot(t *testing.T) {
	idx := New(1.5, 0.75)
	idx.Build([]chunk.Chunk{{ChunkID: "c1", ProcedureID: "p1", Content: "test"}})

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(idx.snapshot()))

	pool := &fakeQuerier{lastSnapshot: buf.Bytes()}
	restored := New(1.5, 0.75)
	require.NoError(t, (PostgresPersister{Pool: pool}).Load(context.Background(), restored))
	assert.True(t, restored.IsBuilt())
}
