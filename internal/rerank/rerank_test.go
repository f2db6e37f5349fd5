package rerank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrievalcore/internal/chunk"
)

func cand(id string, semantic, bm25 float64) Candidate {
	return Candidate{Chunk: chunk.Chunk{ChunkID: id}, SemanticScore: semantic, BM25Score: bm25}
}

func TestNewNormalizesWeightsToSumOne(t *testing.T) {
	r := New(55, 35, 10, false, nil)
	assert.InDelta(t, 1.0, r.SemanticWeight+r.BM25Weight+r.CrossEncoderWeight, 1e-9)
	assert.InDelta(t, 0.55, r.SemanticWeight, 1e-9)
}

func TestNewFallsBackToDefaultsWhenWeightsNonPositive(t *testing.T) {
	r := New(0, 0, 0, false, nil)
	assert.InDelta(t, DefaultSemanticWeight, r.SemanticWeight, 1e-9)
	assert.InDelta(t, DefaultBM25Weight, r.BM25Weight, 1e-9)
	assert.InDelta(t, DefaultCrossEncoderWeight, r.CrossEncoderWeight, 1e-9)
}

func TestRerankOrdersByEnsembleScoreDescending(t *testing.T) {
	r := New(0.55, 0.35, 0.10, false, nil)
	candidates := []Candidate{
		cand("low", 0.1, 0.1),
		cand("high", 0.9, 0.9),
		cand("mid", 0.5, 0.5),
	}
	results := r.Rerank(context.Background(), "query", candidates, 0)
	require.Len(t, results, 3)
	assert.Equal(t, "high", results[0].Chunk.ChunkID)
	assert.Equal(t, "mid", results[1].Chunk.ChunkID)
	assert.Equal(t, "low", results[2].Chunk.ChunkID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 3, results[2].Rank)
}

func TestRerankUsesNeutralCrossEncoderScoreWhenDisabled(t *testing.T) {
	r := New(0.55, 0.35, 0.10, false, nil)
	results := r.Rerank(context.Background(), "query", []Candidate{cand("a", 1, 1)}, 0)
	require.Len(t, results, 1)
	assert.Equal(t, neutralCrossEncoderScore, results[0].CrossEncoderScore)
}

type stubCrossEncoder struct {
	score float64
	err   error
}

func (s *stubCrossEncoder) Score(ctx context.Context, query, text string) (float64, error) {
	return s.score, s.err
}

func TestRerankUsesCrossEncoderScoreWhenEnabled(t *testing.T) {
	r := New(0.55, 0.35, 0.10, true, &stubCrossEncoder{score: 0.9})
	results := r.Rerank(context.Background(), "query", []Candidate{cand("a", 0.5, 0.5)}, 0)
	require.Len(t, results, 1)
	assert.Equal(t, 0.9, results[0].CrossEncoderScore)
	assert.InDelta(t, r.SemanticWeight*0.5+r.BM25Weight*0.5+r.CrossEncoderWeight*0.9, results[0].EnsembleScore, 1e-9)
}

func TestRerankFallsBackToNeutralOnCrossEncoderError(t *testing.T) {
	r := New(0.55, 0.35, 0.10, true, &stubCrossEncoder{err: errors.New("boom")})
	results := r.Rerank(context.Background(), "query", []Candidate{cand("a", 0.5, 0.5)}, 0)
	require.Len(t, results, 1)
	assert.Equal(t, neutralCrossEncoderScore, results[0].CrossEncoderScore)
}

func TestRerankClampsOutOfRangeScores(t *testing.T) {
	r := New(0.55, 0.35, 0.10, false, nil)
	results := r.Rerank(context.Background(), "query", []Candidate{cand("a", 1.5, -0.5)}, 0)
	require.Len(t, results, 1)
	assert.Equal(t, 1.0, results[0].SemanticScore)
	assert.Equal(t, 0.0, results[0].BM25Score)
}

func TestRerankRespectsTopK(t *testing.T) {
	r := New(0.55, 0.35, 0.10, false, nil)
	candidates := []Candidate{cand("a", 0.9, 0.9), cand("b", 0.5, 0.5), cand("c", 0.1, 0.1)}
	results := r.Rerank(context.Background(), "query", candidates, 2)
	assert.Len(t, results, 2)
}

func TestRerankEmptyInputReturnsNil(t *testing.T) {
	r := New(0.55, 0.35, 0.10, false, nil)
	assert.Nil(t, r.Rerank(context.Background(), "query", nil, 5))
}

func TestNoopRerankerPreservesInputOrder(t *testing.T) {
	var noop NoopReranker
	candidates := []Candidate{cand("a", 0.1, 0.9), cand("b", 0.9, 0.1)}
	results := noop.Rerank(context.Background(), "query", candidates, 0)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Chunk.ChunkID)
	assert.Equal(t, "b", results[1].Chunk.ChunkID)
	assert.Equal(t, results[0].SemanticScore, results[0].EnsembleScore)
}
