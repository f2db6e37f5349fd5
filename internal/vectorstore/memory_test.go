package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrievalcore/internal/chunk"
)

func TestMemorySearchRanksByCosineSimilarity(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	require.NoError(t, store.CreateCollection(ctx, 3))

	chunks := []chunk.Chunk{
		{ChunkID: "a", ChunkTier: chunk.TierChild},
		{ChunkID: "b", ChunkTier: chunk.TierChild},
	}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}}
	require.NoError(t, store.Upsert(ctx, chunks, vectors))

	results, err := store.Search(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Chunk.ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "b", results[1].Chunk.ChunkID)
	assert.InDelta(t, 0.0, results[1].Score, 1e-9)
}

func TestMemorySearchAppliesFilters(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	chunks := []chunk.Chunk{
		{ChunkID: "a", ChunkType: chunk.TypeChildLegal},
		{ChunkID: "b", ChunkType: chunk.TypeChildProcess},
	}
	vectors := [][]float32{{1, 0}, {1, 0}}
	require.NoError(t, store.Upsert(ctx, chunks, vectors))

	results, err := store.Search(ctx, []float32{1, 0}, 10, Filters{"chunk_type": string(chunk.TypeChildLegal)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Chunk.ChunkID)
}

func TestMemoryScrollReturnsAllMatchesAtScoreOne(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	chunks := []chunk.Chunk{
		{ChunkID: "a", ProcedureID: "1.01000"},
		{ChunkID: "b", ProcedureID: "1.01000"},
		{ChunkID: "c", ProcedureID: "2.02000"},
	}
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	require.NoError(t, store.Upsert(ctx, chunks, vectors))

	results, err := store.Scroll(ctx, Filters{"procedure_id": "1.01000"}, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, 1.0, r.Score)
		assert.Equal(t, "1.01000", r.Chunk.ProcedureID)
	}
}

func TestMemoryDeleteRemovesEntry(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	chunks := []chunk.Chunk{{ChunkID: "a"}}
	vectors := [][]float32{{1, 0}}
	require.NoError(t, store.Upsert(ctx, chunks, vectors))
	require.NoError(t, store.Delete(ctx, []string{"a"}))

	results, err := store.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryUpsertLengthMismatchErrors(t *testing.T) {
	store := NewMemory()
	err := store.Upsert(context.Background(), []chunk.Chunk{{ChunkID: "a"}}, nil)
	assert.Error(t, err)
}
