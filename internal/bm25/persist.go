package bm25

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"

	"retrievalcore/internal/chunk"
)

// snapshot is the opaque on-disk/on-row shape of a built index: postings,
// doc-length table, avg doc length, doc count, IDF cache, k1, b — the same
// fields the original implementation pickles.
type snapshot struct {
	Chunks     []chunk.Chunk
	Inverted   map[string][]Posting
	DocLengths []int
	AvgDocLen  float64
	NumDocs    int
	IDF        map[string]float64
	K1, B      float64
}

func (idx *Index) snapshot() snapshot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return snapshot{
		Chunks:     idx.chunks,
		Inverted:   idx.inverted,
		DocLengths: idx.docLengths,
		AvgDocLen:  idx.avgDocLen,
		NumDocs:    idx.numDocs,
		IDF:        idx.idf,
		K1:         idx.K1,
		B:          idx.B,
	}
}

func (idx *Index) restore(s snapshot) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.chunks = s.Chunks
	idx.inverted = s.Inverted
	idx.docLengths = s.DocLengths
	idx.avgDocLen = s.AvgDocLen
	idx.numDocs = s.NumDocs
	idx.idf = s.IDF
	idx.K1 = s.K1
	idx.B = s.B
	idx.built = true
}

// Persister saves and restores a built Index as a single opaque artifact,
// loadable by the same code version that wrote it. File and Postgres
// backends share this contract so Save/Load do not need to know where the
// index ultimately lives.
type Persister interface {
	Save(ctx context.Context, idx *Index) error
	Load(ctx context.Context, idx *Index) error
}

// FilePersister is the default Persister: a single gob-encoded file. The
// original implementation pickles the index; encoding/gob is the Go
// equivalent for an internal, same-process, same-version binary artifact.
type FilePersister struct {
	Path string
}

func (p FilePersister) Save(_ context.Context, idx *Index) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(idx.snapshot()); err != nil {
		return fmt.Errorf("bm25: encode index: %w", err)
	}
	if err := os.WriteFile(p.Path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("bm25: write index file %q: %w", p.Path, err)
	}
	return nil
}

func (p FilePersister) Load(_ context.Context, idx *Index) error {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return fmt.Errorf("bm25: read index file %q: %w", p.Path, err)
	}
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return fmt.Errorf("bm25: decode index file %q: %w", p.Path, err)
	}
	idx.restore(s)
	return nil
}

// Save persists the index via p.
func (idx *Index) Save(ctx context.Context, p Persister) error { return p.Save(ctx, idx) }

// Load restores the index via p, replacing any existing state.
func (idx *Index) Load(ctx context.Context, p Persister) error { return p.Load(ctx, idx) }
