// Package rerank is the C7 ensemble reranker: combines semantic similarity,
// BM25 score, and a cross-encoder (proxy) score into one ranking.
package rerank

import (
	"context"
	"sort"

	"retrievalcore/internal/chunk"
)

// DefaultSemanticWeight, DefaultBM25Weight and DefaultCrossEncoderWeight are
// the ensemble's default mixing weights, renormalized to sum to 1 by New.
const (
	DefaultSemanticWeight     = 0.55
	DefaultBM25Weight         = 0.35
	DefaultCrossEncoderWeight = 0.10
)

// neutralCrossEncoderScore is used whenever the cross-encoder is disabled or
// its scoring call fails.
const neutralCrossEncoderScore = 0.5

// Candidate is one fused retrieval result awaiting reranking.
type Candidate struct {
	Chunk         chunk.Chunk
	SemanticScore float64 // clamped to [0,1] by Rerank
	BM25Score     float64 // raw score, clamped to [0,1] by Rerank
}

// Result is one reranked candidate with its ensemble and component scores.
type Result struct {
	Chunk             chunk.Chunk
	EnsembleScore     float64
	SemanticScore     float64
	BM25Score         float64
	CrossEncoderScore float64
	Rank              int
}

// CrossEncoder scores how relevant text is to query, in [0,1]. An
// embedding-cosine proxy implementation is provided by NewEmbeddingProxy;
// a real cross-encoder model could satisfy this interface unchanged.
type CrossEncoder interface {
	Score(ctx context.Context, query, text string) (float64, error)
}

// Reranker performs ensemble reranking over fused candidates.
type Reranker struct {
	SemanticWeight     float64
	BM25Weight         float64
	CrossEncoderWeight float64
	UseCrossEncoder    bool
	CrossEncoder       CrossEncoder
	// ContentChars caps how much chunk content is passed to the
	// cross-encoder per pair, matching the source pipeline's per-pair budget.
	ContentChars int
}

// New builds a Reranker with the given weights renormalized to sum to 1. A
// nil crossEncoder forces neutral cross-encoder scoring regardless of
// useCrossEncoder.
func New(semanticWeight, bm25Weight, crossEncoderWeight float64, useCrossEncoder bool, crossEncoder CrossEncoder) *Reranker {
	total := semanticWeight + bm25Weight + crossEncoderWeight
	if total <= 0 {
		semanticWeight, bm25Weight, crossEncoderWeight = DefaultSemanticWeight, DefaultBM25Weight, DefaultCrossEncoderWeight
		total = 1
	}
	r := &Reranker{
		SemanticWeight:     semanticWeight / total,
		BM25Weight:         bm25Weight / total,
		CrossEncoderWeight: crossEncoderWeight / total,
		UseCrossEncoder:    useCrossEncoder && crossEncoder != nil,
		CrossEncoder:       crossEncoder,
		ContentChars:       500,
	}
	return r
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Rerank scores every candidate against query, sorts descending by ensemble
// score, and returns the top topK (or all candidates, if fewer).
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []Candidate, topK int) []Result {
	if len(candidates) == 0 {
		return nil
	}

	results := make([]Result, len(candidates))
	for i, c := range candidates {
		semantic := clamp01(c.SemanticScore)
		bm25 := clamp01(c.BM25Score)

		crossEncoderScore := neutralCrossEncoderScore
		if r.UseCrossEncoder {
			text := c.Chunk.Content
			if r.ContentChars > 0 && len(text) > r.ContentChars {
				text = text[:r.ContentChars]
			}
			if score, err := r.CrossEncoder.Score(ctx, query, text); err == nil {
				crossEncoderScore = score
			}
		}

		ensemble := r.SemanticWeight*semantic + r.BM25Weight*bm25 + r.CrossEncoderWeight*crossEncoderScore
		results[i] = Result{
			Chunk:             c.Chunk,
			EnsembleScore:     ensemble,
			SemanticScore:     semantic,
			BM25Score:         bm25,
			CrossEncoderScore: crossEncoderScore,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].EnsembleScore != results[j].EnsembleScore {
			return results[i].EnsembleScore > results[j].EnsembleScore
		}
		return results[i].Chunk.ChunkID < results[j].Chunk.ChunkID
	})
	for i := range results {
		results[i].Rank = i + 1
	}

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results
}

// NoopReranker passes candidates through unscored, in their input order,
// for callers that want hybrid-fusion order preserved without reranking.
type NoopReranker struct{}

// Rerank returns candidates as Results with EnsembleScore equal to
// SemanticScore and rank assigned by input order, truncated to topK.
func (NoopReranker) Rerank(_ context.Context, _ string, candidates []Candidate, topK int) []Result {
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{
			Chunk:         c.Chunk,
			EnsembleScore: c.SemanticScore,
			SemanticScore: c.SemanticScore,
			BM25Score:     c.BM25Score,
			Rank:          i + 1,
		}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results
}
