// Package vectorstore defines the C3 vector-store adapter contract and its
// concrete backends: a Qdrant-backed implementation for production and an
// in-memory implementation for tests and local development.
package vectorstore

import (
	"context"

	"retrievalcore/internal/chunk"
)

// Match pairs a stored chunk with its similarity score against a query
// vector. For Scroll, Score is always 1.0 since scroll is an exact-match
// lookup rather than a ranked search.
type Match struct {
	Chunk chunk.Chunk
	Score float64
}

// Filters is an exact-equality predicate map, applied the same way across
// backends: against chunk_tier/chunk_type/procedure_id first, then the
// chunk's metadata. A value may be a single string or a []string
// (match-any), mirroring bm25.Filters so callers can share one filter
// shape across both search paths.
type Filters map[string]any

// Store is the contract every retrieval-pipeline stage programs against.
// Search performs approximate nearest-neighbor lookup; Scroll performs an
// exact-match bootstrap used by exact-code routing, where the caller
// already knows the filter that identifies the right chunk(s) and does not
// want similarity ranking involved. Upsert/Delete/CreateCollection
// are administrative operations used by ingestion tooling, not the query
// path, but they live on the same interface so a single adapter satisfies
// both.
type Store interface {
	Search(ctx context.Context, vector []float32, topK int, filters Filters) ([]Match, error)
	Scroll(ctx context.Context, filters Filters, limit int) ([]Match, error)
	Upsert(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error
	Delete(ctx context.Context, chunkIDs []string) error
	CreateCollection(ctx context.Context, dimension int) error
}

func matches(f Filters, c chunk.Chunk) bool {
	for key, want := range f {
		got := fieldValue(c, key)
		switch w := want.(type) {
		case string:
			if got != w {
				return false
			}
		case []string:
			if !containsString(w, got) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func fieldValue(c chunk.Chunk, key string) string {
	switch key {
	case "chunk_tier":
		return string(c.ChunkTier)
	case "chunk_type":
		return string(c.ChunkType)
	case "procedure_id":
		return c.ProcedureID
	default:
		return c.MetadataValue(key)
	}
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
