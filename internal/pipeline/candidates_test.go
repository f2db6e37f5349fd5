package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrievalcore/internal/bm25"
	"retrievalcore/internal/chunk"
	"retrievalcore/internal/vectorstore"
)

func TestParallelCandidatesFetchesBothSources(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemory()
	require.NoError(t, store.CreateCollection(ctx, 2))

	chunks := []chunk.Chunk{
		{ChunkID: "1", Content: "Thủ tục đăng ký nghĩa vụ quân sự lần đầu"},
		{ChunkID: "2", Content: "Thủ tục đăng ký kết hôn"},
	}
	vectors := [][]float32{{1, 0}, {0, 1}}
	require.NoError(t, store.Upsert(ctx, chunks, vectors))

	index := bm25.New(bm25.DefaultK1, bm25.DefaultB)
	index.Build(chunks)

	req := CandidateRequest{
		QueryText:   "đăng ký nghĩa vụ quân sự",
		QueryVector: []float32{1, 0},
		TopKVector:  2,
		TopKBM25:    2,
	}
	sem, kw, diag, err := ParallelCandidates(ctx, store, index, req)
	require.NoError(t, err)
	assert.NotEmpty(t, sem)
	assert.NotEmpty(t, kw)
	assert.Equal(t, len(sem), diag.SemanticCount)
	assert.Equal(t, len(kw), diag.BM25Count)
}

func TestParallelCandidatesToleratesUnbuiltBM25Index(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemory()
	require.NoError(t, store.CreateCollection(ctx, 2))
	chunks := []chunk.Chunk{{ChunkID: "1", Content: "Thủ tục đăng ký kết hôn"}}
	require.NoError(t, store.Upsert(ctx, chunks, [][]float32{{1, 0}}))

	index := bm25.New(bm25.DefaultK1, bm25.DefaultB) // never Build()'d

	req := CandidateRequest{QueryText: "đăng ký kết hôn", QueryVector: []float32{1, 0}, TopKVector: 1, TopKBM25: 1}
	sem, kw, _, err := ParallelCandidates(ctx, store, index, req)
	require.NoError(t, err)
	assert.NotEmpty(t, sem)
	assert.Empty(t, kw)
}

func TestParallelCandidatesSkipsSourceWithZeroTopK(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemory()
	index := bm25.New(bm25.DefaultK1, bm25.DefaultB)
	index.Build(nil)

	req := CandidateRequest{QueryText: "gì đó", QueryVector: []float32{1}, TopKVector: 0, TopKBM25: 0}
	sem, kw, diag, err := ParallelCandidates(ctx, store, index, req)
	require.NoError(t, err)
	assert.Empty(t, sem)
	assert.Empty(t, kw)
	assert.Equal(t, 0, diag.SemanticCount)
	assert.Equal(t, 0, diag.BM25Count)
}
