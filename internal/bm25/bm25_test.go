package bm25

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrievalcore/internal/chunk"
	"retrievalcore/internal/rerrors"
)

func sampleChunks() []chunk.Chunk {
	return []chunk.Chunk{
		{ChunkID: "1", Content: "Thủ tục đăng ký nghĩa vụ quân sự lần đầu"},
		{ChunkID: "2", Content: "Thủ tục đăng ký kết hôn"},
		{ChunkID: "3", Content: "Nghĩa vụ quân sự cho nam thanh niên"},
	}
}

func TestSearchBeforeBuildReturnsNotReady(t *testing.T) {
	idx := New(DefaultK1, DefaultB)
	_, err := idx.Search("đăng ký", 10, nil)
	assert.ErrorIs(t, err, rerrors.ErrNotReady)
}

func TestBuildEmptyCorpus(t *testing.T) {
	idx := New(DefaultK1, DefaultB)
	idx.Build(nil)
	assert.True(t, idx.IsBuilt())
	assert.Equal(t, 0, idx.NumDocs())

	results, err := idx.Search("đăng ký", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchRanksByRelevance(t *testing.T) {
	idx := New(DefaultK1, DefaultB)
	idx.Build(sampleChunks())

	results, err := idx.Search("đăng ký nghĩa vụ quân sự", 3, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "1", results[0].Chunk.ChunkID)
	for _, r := range results {
		assert.Greater(t, r.Score, 0.0)
	}
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestSearchNoTokensAfterStopwordsReturnsEmpty(t *testing.T) {
	idx := New(DefaultK1, DefaultB)
	idx.Build(sampleChunks())

	results, err := idx.Search("và là", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchAppliesFilters(t *testing.T) {
	idx := New(DefaultK1, DefaultB)
	chunks := sampleChunks()
	chunks[0].ChunkType = chunk.TypeChildProcess
	chunks[2].ChunkType = chunk.TypeChildLegal
	idx.Build(chunks)

	results, err := idx.Search("nghĩa vụ quân sự", 10, Filters{"chunk_type": string(chunk.TypeChildLegal)})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, chunk.TypeChildLegal, r.Chunk.ChunkType)
	}
}

func TestEveryIndexedTermHasPositiveIDF(t *testing.T) {
	idx := New(DefaultK1, DefaultB)
	idx.Build(sampleChunks())
	for term := range idx.inverted {
		idf, ok := idx.IDF(term)
		require.True(t, ok)
		assert.Greater(t, idf, 0.0, "term %q should have positive idf", term)
	}
}

func TestSaveLoadRoundTripIsSearchEquivalent(t *testing.T) {
	idx := New(DefaultK1, DefaultB)
	idx.Build(sampleChunks())

	path := filepath.Join(t.TempDir(), "index.gob")
	require.NoError(t, idx.Save(context.Background(), FilePersister{Path: path}))

	restored := New(0, 0) // parameters come from the snapshot
	require.NoError(t, restored.Load(context.Background(), FilePersister{Path: path}))

	for _, q := range []string{"đăng ký nghĩa vụ quân sự", "kết hôn", "không tồn tại"} {
		want, err := idx.Search(q, 10, nil)
		require.NoError(t, err)
		got, err := restored.Search(q, 10, nil)
		require.NoError(t, err)
		require.Equal(t, len(want), len(got))
		for i := range want {
			assert.Equal(t, want[i].Chunk.ChunkID, got[i].Chunk.ChunkID)
			assert.InDelta(t, want[i].Score, got[i].Score, 1e-9)
		}
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
