package pipeline

import (
	"sort"

	"retrievalcore/internal/bm25"
	"retrievalcore/internal/chunk"
	"retrievalcore/internal/vectorstore"
)

// DefaultRRFK is the standard Reciprocal Rank Fusion denominator constant.
const DefaultRRFK = 60

// bm25Boost multiplies a BM25 source list's RRF contribution, giving
// keyword matches extra weight over dense-only matches in the fused
// ranking.
const bm25Boost = 1.2

// FusedCandidate is a chunk annotated with its rank-fusion score and the
// per-source contributions that produced it, carried forward so the
// reranker can report score provenance.
type FusedCandidate struct {
	Chunk        chunk.Chunk
	RRFScore     float64
	SemanticRank int // 1-based; 0 if absent from the semantic list
	BM25Rank     int // 1-based; 0 if absent from the BM25 list
	SemanticSim  float64
	BM25Score    float64
}

// FuseRRF combines a semantic (vector) result list and a BM25 result list
// via Reciprocal Rank Fusion: each list contributes 1/(k+rank) per entry,
// with the BM25 contribution boosted by bm25Boost. Output is sorted by
// descending RRFScore, ties broken by chunk id for determinism.
func FuseRRF(semantic []vectorstore.Match, keyword []bm25.Result, k int) []FusedCandidate {
	if k <= 0 {
		k = DefaultRRFK
	}

	byID := make(map[string]*FusedCandidate)
	order := make([]string, 0, len(semantic)+len(keyword))
	get := func(c chunk.Chunk) *FusedCandidate {
		fc, ok := byID[c.ChunkID]
		if !ok {
			fc = &FusedCandidate{Chunk: c}
			byID[c.ChunkID] = fc
			order = append(order, c.ChunkID)
		}
		return fc
	}

	for i, m := range semantic {
		rank := i + 1
		fc := get(m.Chunk)
		fc.SemanticRank = rank
		fc.SemanticSim = m.Score
		fc.RRFScore += 1.0 / float64(k+rank)
	}
	for i, r := range keyword {
		rank := i + 1
		fc := get(r.Chunk)
		fc.BM25Rank = rank
		fc.BM25Score = r.Score
		fc.RRFScore += bm25Boost * (1.0 / float64(k+rank))
	}

	out := make([]FusedCandidate, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		return out[i].Chunk.ChunkID < out[j].Chunk.ChunkID
	})
	return out
}
