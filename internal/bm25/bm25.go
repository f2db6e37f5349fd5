// Package bm25 implements the C2 BM25 index: a compact inverted-index
// keyword search engine with domain-aware tokenization, smoothed IDF, and a
// pluggable persistence contract.
package bm25

import (
	"math"
	"sort"
	"sync"

	"retrievalcore/internal/chunk"
	"retrievalcore/internal/rerrors"
	"retrievalcore/internal/tokenizer"
)

// Posting is a (doc_id, term_frequency) pair. An inverted-index entry is a
// list of postings, ordered by insertion (i.e. by document id).
type Posting struct {
	DocID    int `json:"doc_id"`
	TermFreq int `json:"term_freq"`
}

// Result is a chunk annotated with its BM25 score.
type Result struct {
	Chunk chunk.Chunk
	Score float64
}

// Index is a BM25 inverted index over a fixed chunk corpus. It is
// immutable after Build: concurrent reads (Search) require no external
// synchronization once built.
type Index struct {
	K1 float64
	B  float64

	mu          sync.RWMutex
	chunks      []chunk.Chunk
	inverted    map[string][]Posting
	docLengths  []int
	avgDocLen   float64
	numDocs     int
	idf         map[string]float64
	built       bool
}

// DefaultK1 and DefaultB are the classical BM25 parameter defaults used
// throughout the reference corpus this index was modeled on.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// New constructs an unbuilt Index with the given k1/b parameters. Pass
// DefaultK1/DefaultB for the standard configuration.
func New(k1, b float64) *Index {
	return &Index{K1: k1, B: b}
}

// Build constructs the inverted index from chunks. Idempotent per
// instance: calling Build again fully replaces prior state. An empty
// chunks slice is legal and yields num_docs=0, avg_doc_length=0.
func (idx *Index) Build(chunks []chunk.Chunk) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.chunks = chunks
	idx.numDocs = len(chunks)
	idx.docLengths = make([]int, idx.numDocs)
	idx.inverted = make(map[string][]Posting)

	var totalLen int
	for d, c := range chunks {
		tokens := tokenizer.Tokenize(c.Content, true)
		idx.docLengths[d] = len(tokens)
		totalLen += len(tokens)

		freqs := make(map[string]int, len(tokens))
		for _, t := range tokens {
			freqs[t]++
		}
		for term, tf := range freqs {
			idx.inverted[term] = append(idx.inverted[term], Posting{DocID: d, TermFreq: tf})
		}
	}

	if idx.numDocs > 0 {
		idx.avgDocLen = float64(totalLen) / float64(idx.numDocs)
	} else {
		idx.avgDocLen = 0
	}

	idx.idf = make(map[string]float64, len(idx.inverted))
	for term, postings := range idx.inverted {
		df := float64(len(postings))
		idx.idf[term] = math.Log((float64(idx.numDocs)-df+0.5)/(df+0.5) + 1.0)
	}

	idx.built = true
}

// IsBuilt reports whether Build has been called.
func (idx *Index) IsBuilt() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.built
}

// NumDocs returns the document count of the built index.
func (idx *Index) NumDocs() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.numDocs
}

// IDF returns the pre-computed IDF for term, and whether the term appears
// in the index at all.
func (idx *Index) IDF(term string) (float64, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, ok := idx.idf[term]
	return v, ok
}

// Filters is an exact-equality predicate map applied post-scoring, checked
// against a chunk's own fields first (chunk_tier, chunk_type,
// procedure_id) and then its metadata map. A value may be a single string
// or a []string (match-any).
type Filters map[string]any

func (f Filters) matches(c chunk.Chunk) bool {
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

// Search performs BM25 keyword search over the built index. Returns
// rerrors.ErrNotReady if called before Build. Absent query terms
// contribute zero; zero-length documents are safe because their term
// frequency is necessarily zero. Filters are applied post-scoring so IDF
// remains computed over the full corpus. Results are sorted by descending
// bm25_score.
func (idx *Index) Search(query string, topK int, filters Filters) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return nil, rerrors.ErrNotReady
	}

	queryTerms := tokenizer.Tokenize(query, true)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	scores := make([]float64, idx.numDocs)
	for _, term := range queryTerms {
		postings, ok := idx.inverted[term]
		if !ok {
			continue
		}
		idf := idx.idf[term]
		for _, p := range postings {
			docLen := float64(idx.docLengths[p.DocID])
			tf := float64(p.TermFreq)
			denom := tf + idx.K1*(1-idx.B+idx.B*docLen/idx.avgDocLen)
			if denom == 0 {
				continue
			}
			scores[p.DocID] += idf * (tf * (idx.K1 + 1) / denom)
		}
	}

	type scored struct {
		docID int
		score float64
	}
	pairs := make([]scored, 0, idx.numDocs)
	for d, s := range scores {
		if s <= 0 {
			continue
		}
		if filters != nil && !filters.matches(idx.chunks[d]) {
			continue
		}
		pairs = append(pairs, scored{docID: d, score: s})
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	if topK > 0 && len(pairs) > topK {
		pairs = pairs[:topK]
	}

	out := make([]Result, len(pairs))
	for i, p := range pairs {
		out[i] = Result{Chunk: idx.chunks[p.docID], Score: p.score}
	}
	return out, nil
}
