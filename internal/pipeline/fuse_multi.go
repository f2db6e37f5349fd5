package pipeline

import (
	"sort"

	"retrievalcore/internal/bm25"
	"retrievalcore/internal/chunk"
	"retrievalcore/internal/vectorstore"
)

// CandidateChunk is a chunk carrying every score this pipeline ever
// attaches to it, from first fusion through final reranking. It is the
// shape RetrievalResult.RetrievedChunks is built from.
type CandidateChunk struct {
	Chunk chunk.Chunk

	Score     float64 // best semantic similarity observed across source lists
	BM25Score float64 // BM25 score, 0 if never matched by keyword search

	RRFScore       float64
	RetrievalCount int // how many source lists contributed to this chunk
	SemanticCount  int
	BM25Count      int

	FinalScore     float64 // ensemble score after reranking
	CrossTierMatch bool
}

// FuseMultiSourceRRF combines any number of independently-ranked semantic
// source lists plus one BM25 list via Reciprocal Rank Fusion: each list
// contributes 1/(k+rank) per entry in its own rank order, with the BM25
// contribution boosted by bm25Boost. Output is sorted by descending
// RRFScore, ties broken by chunk id.
func FuseMultiSourceRRF(semanticSources map[string][]vectorstore.Match, keyword []bm25.Result, k int) []CandidateChunk {
	if k <= 0 {
		k = DefaultRRFK
	}

	// The single-variation path (exactly one semantic source list) is just
	// FuseRRF's two-list case; delegate to it rather than duplicate the
	// scoring logic.
	if len(semanticSources) == 1 {
		var semantic []vectorstore.Match
		for _, v := range semanticSources {
			semantic = v
		}
		fused := FuseRRF(semantic, keyword, k)
		out := make([]CandidateChunk, 0, len(fused))
		for _, fc := range fused {
			cc := CandidateChunk{
				Chunk:     fc.Chunk,
				Score:     fc.SemanticSim,
				BM25Score: fc.BM25Score,
				RRFScore:  fc.RRFScore,
			}
			if fc.SemanticRank > 0 {
				cc.RetrievalCount++
				cc.SemanticCount++
			}
			if fc.BM25Rank > 0 {
				cc.RetrievalCount++
				cc.BM25Count++
			}
			out = append(out, cc)
		}
		return out
	}

	byID := make(map[string]*CandidateChunk)
	order := make([]string, 0)
	get := func(c chunk.Chunk) *CandidateChunk {
		cc, ok := byID[c.ChunkID]
		if !ok {
			cc = &CandidateChunk{Chunk: c}
			byID[c.ChunkID] = cc
			order = append(order, c.ChunkID)
		}
		return cc
	}

	// Deterministic source iteration order for reproducible RRF totals.
	names := make([]string, 0, len(semanticSources))
	for name := range semanticSources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for i, m := range semanticSources[name] {
			rank := i + 1
			cc := get(m.Chunk)
			cc.RRFScore += 1.0 / float64(k+rank)
			cc.RetrievalCount++
			cc.SemanticCount++
			if m.Score > cc.Score {
				cc.Score = m.Score
			}
		}
	}
	for i, r := range keyword {
		rank := i + 1
		cc := get(r.Chunk)
		cc.RRFScore += bm25Boost * (1.0 / float64(k+rank))
		cc.RetrievalCount++
		cc.BM25Count++
		if r.Score > cc.BM25Score {
			cc.BM25Score = r.Score
		}
	}

	out := make([]CandidateChunk, 0, len(order))
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
