// Package pipeline implements C9, the hierarchical hybrid retrieval
// pipeline: the orchestration layer that turns a question into assembled,
// citation-ready context by combining every other adapter in the module.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"retrievalcore/internal/bm25"
	"retrievalcore/internal/chunk"
	"retrievalcore/internal/contextconfig"
	"retrievalcore/internal/embedder"
	"retrievalcore/internal/procgraph"
	"retrievalcore/internal/queryenhancer"
	"retrievalcore/internal/rerank"
	"retrievalcore/internal/rerrors"
	"retrievalcore/internal/semcache"
	"retrievalcore/internal/vectorstore"
)

// exactScrollLimit bounds how many parent/child chunks exact-code routing
// pulls back via Scroll; one procedure's chunk count never approaches it.
const exactScrollLimit = 500

// Reranker is the scoring interface Stage 7 programs against; *rerank.Reranker
// and rerank.NoopReranker both satisfy it.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []rerank.Candidate, topK int) []rerank.Result
}

// TopK bundles the three retrieval widths a request can override; a zero
// field falls back to Pipeline's configured default.
type TopK struct {
	Parent int
	Child  int
	Final  int // reported as Metadata["top_k_final"] (context_config.Chunks when zero); assembly sizes context from context_config alone
}

// Pipeline wires together every adapter the 9-stage retrieval flow
// depends on. BM25, Reranker, Cache, and Graph are optional: a nil value
// degrades that stage gracefully rather than failing the request.
type Pipeline struct {
	Embedder      embedder.Embedder
	Store         vectorstore.Store
	Enhancer      *queryenhancer.Enhancer
	BM25          *bm25.Index
	Reranker      Reranker
	Cache         *semcache.Cache
	CacheMirror   *semcache.RedisMirror
	Graph         *procgraph.Graph

	DefaultTopKParent int
	DefaultTopKChild  int

	Logger  Logger
	Metrics Metrics
	Clock   Clock
}

// Option configures a Pipeline during construction.
type Option func(*Pipeline)

// WithBM25 attaches a built keyword index for Stage 5 augmentation.
func WithBM25(idx *bm25.Index) Option { return func(p *Pipeline) { p.BM25 = idx } }

// WithReranker attaches the Stage 7 ensemble reranker. Without it, Stage 7
// falls back to a fixed RRF/semantic-score blend (see fallbackRRFWeight).
func WithReranker(r Reranker) Option { return func(p *Pipeline) { p.Reranker = r } }

// WithCache attaches a semantic cache for Stage 0 / Stage 8.2.
func WithCache(c *semcache.Cache) Option { return func(p *Pipeline) { p.Cache = c } }

// WithCacheMirror attaches a write-behind Redis mirror: every Stage 8.2
// Put is also written to Redis so a fresh process can Warm its cache
// instead of starting cold. Only takes effect when a Cache is also set.
func WithCacheMirror(m *semcache.RedisMirror) Option { return func(p *Pipeline) { p.CacheMirror = m } }

// WithGraph attaches the related-procedure adjacency list context assembly
// consults when annotating a procedure's related procedures.
func WithGraph(g *procgraph.Graph) Option { return func(p *Pipeline) { p.Graph = g } }

// WithLogger sets a custom logger.
func WithLogger(l Logger) Option { return func(p *Pipeline) { p.Logger = l } }

// WithMetrics sets a custom metrics collector.
func WithMetrics(m Metrics) Option { return func(p *Pipeline) { p.Metrics = m } }

// WithClock sets a custom clock implementation.
func WithClock(c Clock) Option { return func(p *Pipeline) { p.Clock = c } }

// WithTopKDefaults overrides the default parent/child candidate widths.
func WithTopKDefaults(parent, child int) Option {
	return func(p *Pipeline) {
		p.DefaultTopKParent = parent
		p.DefaultTopKChild = child
	}
}

// New builds a Pipeline with sensible defaults for every optional seam,
// then applies opts in order. Reranker is left nil unless WithReranker is
// given: Stage 7 falls back to a fixed RRF/semantic-score blend rather
// than a pass-through reranker when none is configured, per the scoring
// fallback this module was distilled from.
func New(emb embedder.Embedder, store vectorstore.Store, enhancer *queryenhancer.Enhancer, opts ...Option) *Pipeline {
	p := &Pipeline{
		Embedder:          emb,
		Store:             store,
		Enhancer:          enhancer,
		DefaultTopKParent: 5,
		DefaultTopKChild:  20,
		Logger:            noopLogger{},
		Metrics:           NoopMetrics{},
		Clock:             SystemClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type noopLogger struct{}

func (noopLogger) Info(string, map[string]any)  {}
func (noopLogger) Error(string, map[string]any) {}
func (noopLogger) Debug(string, map[string]any) {}

// Result is the fully-assembled retrieval outcome the pipeline returns.
type Result struct {
	Query           string
	Intent          string
	RetrievedChunks []CandidateChunk
	Context         string
	Confidence      float64
	Metadata        map[string]any
}

// fallbackRRFWeight and fallbackSemanticWeight blend RRF and raw semantic
// score when Stage 7 has no configured reranker.
const (
	fallbackRRFWeight      = 0.6
	fallbackSemanticWeight = 0.4
)

// Retrieve runs the full 9-stage hierarchical retrieval flow: cache check,
// query understanding, context configuration, exact-code routing (or
// parent retrieval, cross-tier child retrieval, keyword augmentation, RRF
// fusion, and ensemble reranking), context assembly, and cache population.
func (p *Pipeline) Retrieve(ctx context.Context, question string, topK TopK) (Result, error) {
	parentWidth := topK.Parent
	if parentWidth <= 0 {
		parentWidth = p.DefaultTopKParent
	}
	childWidth := topK.Child
	if childWidth <= 0 {
		childWidth = p.DefaultTopKChild
	}

	// Stage 0: cache check.
	var queryEmbedding []float32
	var embeddingComputed bool
	if p.Cache != nil {
		vecs, err := p.Embedder.EmbedBatch(ctx, []string{question})
		if err != nil {
			return Result{}, rerrors.Wrap("embedder", err)
		}
		if len(vecs) == 1 {
			queryEmbedding = vecs[0]
			embeddingComputed = true
		}
		if cached, ok := p.Cache.Get(question, queryEmbedding); ok {
			result, ok := cached.(Result)
			if s, isString := cached.(string); isString {
				// Entries replayed by RedisMirror.Warm hold the JSON-encoded Result.
				ok = json.Unmarshal([]byte(s), &result) == nil
			}
			if ok {
				p.Metrics.IncCounter("retrieval_cache_hit", nil)
				return result, nil
			}
		}
	}

	// Stage 1: query understanding.
	queryInfo := p.Enhancer.Enhance(ctx, question)

	// Stage 1.5: context configuration.
	cfg := contextconfig.Get(queryInfo.Intent)
	finalWidth := topK.Final
	if finalWidth <= 0 {
		finalWidth = cfg.Chunks
	}

	// Stage 2: exact-code routing.
	if queryInfo.ExactCode != "" {
		result, ok, err := p.exactCodeRoute(ctx, question, queryInfo, cfg)
		if err != nil {
			return Result{}, err
		}
		if ok {
			p.cacheResult(ctx, question, queryEmbedding, embeddingComputed, result)
			return result, nil
		}
	}

	// Stage 3: parent retrieval.
	if !embeddingComputed {
		vecs, err := p.Embedder.EmbedBatch(ctx, []string{question})
		if err != nil {
			return Result{}, rerrors.Wrap("embedder", err)
		}
		if len(vecs) == 1 {
			queryEmbedding = vecs[0]
			embeddingComputed = true
		}
	}
	parentMatches, err := p.Store.Search(ctx, queryEmbedding, parentWidth, vectorstore.Filters{"chunk_tier": string(chunk.TierParent)})
	if err != nil {
		return Result{}, rerrors.Wrap("vector_store", err)
	}
	parentProcedureIDs := make(map[string]bool, len(parentMatches))
	for _, m := range parentMatches {
		parentProcedureIDs[m.Chunk.ProcedureID] = true
	}

	// Stage 4/5: cross-tier child retrieval and BM25 augmentation, fanned
	// out concurrently — one goroutine per query variation, each racing
	// its vector-store search against the index's keyword search via
	// ParallelCandidates, joined over a channel keyed by variation
	// index. BM25 only needs to run once (it isn't
	// keyed by variation) so it rides along with variation 0's request.
	variations := queryInfo.QueryVariations
	if len(variations) == 0 {
		variations = []string{question}
	}
	childType, hasChildType := queryInfo.Filters["chunk_type"]
	childFilters := vectorstore.Filters{"chunk_tier": string(chunk.TierChild)}
	if hasChildType {
		childFilters["chunk_type"] = childType
	}
	bm25Filters := bm25.Filters{"chunk_tier": string(chunk.TierChild)}
	if hasChildType {
		bm25Filters["chunk_type"] = childType
	}

	variationVecs, err := p.Embedder.EmbedBatch(ctx, variations)
	if err != nil {
		return Result{}, rerrors.Wrap("embedder", err)
	}

	type variationOutcome struct {
		index   int
		matches []vectorstore.Match
		keyword []bm25.Result
		err     error
	}
	outcomes := make(chan variationOutcome, len(variations))
	for i := range variations {
		i := i
		go func() {
			var vec []float32
			if i < len(variationVecs) {
				vec = variationVecs[i]
			}
			req := CandidateRequest{QueryText: question, QueryVector: vec, TopKVector: childWidth, Filters: childFilters}
			if i == 0 && p.BM25 != nil {
				req.TopKBM25 = childWidth
				req.BM25Filters = bm25Filters
			}
			sem, kw, _, err := ParallelCandidates(ctx, p.Store, p.BM25, req)
			if err == nil && len(sem) == 0 && hasChildType {
				// Cross-tier chunk_type filter starved this variation entirely;
				// retry once without it rather than let the variation go dry.
				sem, err = p.Store.Search(ctx, vec, childWidth, vectorstore.Filters{"chunk_tier": string(chunk.TierChild)})
				if err != nil {
					err = rerrors.Wrap("vector_store", err)
				}
			}
			outcomes <- variationOutcome{index: i, matches: sem, keyword: kw, err: err}
		}()
	}

	semanticByIndex := make([][]vectorstore.Match, len(variations))
	var keywordResults []bm25.Result
	for range variations {
		out := <-outcomes
		if out.err != nil {
			return Result{}, out.err
		}
		semanticByIndex[out.index] = out.matches
		if out.index == 0 {
			keywordResults = out.keyword
		}
	}

	semanticSources := make(map[string][]vectorstore.Match, len(variations))
	for i, matches := range semanticByIndex {
		filtered := make([]vectorstore.Match, 0, len(matches))
		for _, m := range matches {
			if parentProcedureIDs[m.Chunk.ProcedureID] {
				filtered = append(filtered, m)
			}
		}
		if len(filtered) == 0 && len(matches) > 0 {
			// Cross-tier filter eliminated everything; keep the top 5
			// unfiltered rather than starve this variation entirely.
			top := matches
			if len(top) > 5 {
				top = top[:5]
			}
			filtered = top
		}
		semanticSources[fmt.Sprintf("variation_%d", i)] = filtered
	}

	// Stage 6: reciprocal rank fusion across every source list.
	fused := FuseMultiSourceRRF(semanticSources, keywordResults, DefaultRRFK)

	// Stage 7: ensemble reranking, or a fixed RRF/semantic-score blend when
	// no reranker is configured.
	rerankTopK := cfg.Chunks*cfg.MaxDescendants + cfg.MaxSiblings
	if rerankTopK <= 0 {
		rerankTopK = childWidth
	}

	var scored []CandidateChunk
	if p.Reranker != nil {
		candidates := make([]rerank.Candidate, len(fused))
		byID := make(map[string]CandidateChunk, len(fused))
		for i, f := range fused {
			candidates[i] = rerank.Candidate{Chunk: f.Chunk, SemanticScore: f.Score, BM25Score: f.BM25Score}
			byID[f.Chunk.ChunkID] = f
		}
		reranked := p.Reranker.Rerank(ctx, question, candidates, rerankTopK)
		scored = make([]CandidateChunk, len(reranked))
		for i, r := range reranked {
			cc := byID[r.Chunk.ChunkID]
			cc.Chunk = r.Chunk
			cc.FinalScore = r.EnsembleScore
			scored[i] = cc
		}
	} else {
		scored = make([]CandidateChunk, len(fused))
		copy(scored, fused)
		for i := range scored {
			scored[i].FinalScore = fallbackRRFWeight*scored[i].RRFScore + fallbackSemanticWeight*scored[i].Score
		}
		sort.Slice(scored, func(i, j int) bool {
			if scored[i].FinalScore != scored[j].FinalScore {
				return scored[i].FinalScore > scored[j].FinalScore
			}
			return scored[i].Chunk.ChunkID < scored[j].Chunk.ChunkID
		})
		if rerankTopK > 0 && rerankTopK < len(scored) {
			scored = scored[:rerankTopK]
		}
	}

	// Stage 8: context assembly.
	assembled := assembleContext(scored, parentMatches, cfg, p.Graph, p.Logger)

	result := Result{
		Query:           question,
		Intent:          queryInfo.Intent,
		RetrievedChunks: scored,
		Context:         assembled.context,
		Confidence:      assembled.confidence,
		Metadata: map[string]any{
			"search_type":    "hybrid",
			"intent_outcome": queryInfo.IntentOutcome.String(),
			"top_k_final":    finalWidth,
		},
	}

	p.cacheResult(ctx, question, queryEmbedding, embeddingComputed, result)
	return result, nil
}

func (p *Pipeline) exactCodeRoute(ctx context.Context, question string, queryInfo queryenhancer.QueryInfo, cfg contextconfig.Config) (Result, bool, error) {
	parentFilters := vectorstore.Filters{"procedure_id": queryInfo.ExactCode, "chunk_tier": string(chunk.TierParent)}
	parents, err := p.Store.Scroll(ctx, parentFilters, exactScrollLimit)
	if err != nil {
		return Result{}, false, rerrors.Wrap("vector_store", err)
	}
	childFilters := vectorstore.Filters{"procedure_id": queryInfo.ExactCode, "chunk_tier": string(chunk.TierChild)}
	if childType, ok := queryInfo.Filters["chunk_type"]; ok {
		childFilters["chunk_type"] = childType
	}
	children, err := p.Store.Scroll(ctx, childFilters, exactScrollLimit)
	if err != nil {
		return Result{}, false, rerrors.Wrap("vector_store", err)
	}
	if len(parents) == 0 && len(children) == 0 {
		return Result{}, false, nil
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Chunk.ChunkID < children[j].Chunk.ChunkID })

	scored := make([]CandidateChunk, 0, len(parents)+len(children))
	for _, m := range parents {
		scored = append(scored, CandidateChunk{Chunk: m.Chunk, Score: 1.0, FinalScore: 1.0})
	}
	for _, m := range children {
		scored = append(scored, CandidateChunk{Chunk: m.Chunk, Score: 1.0, FinalScore: 1.0})
	}

	assembled := assembleContext(scored, parents, cfg, p.Graph, p.Logger)
	result := Result{
		Query:           question,
		Intent:          queryInfo.Intent,
		RetrievedChunks: scored,
		Context:         assembled.context,
		Confidence:      1.0,
		Metadata: map[string]any{
			"search_type": "exact_code_match",
			"exact_code":  queryInfo.ExactCode,
		},
	}
	return result, true, nil
}

func (p *Pipeline) cacheResult(ctx context.Context, question string, queryEmbedding []float32, embeddingComputed bool, result Result) {
	if p.Cache == nil {
		return
	}
	if !embeddingComputed {
		vecs, err := p.Embedder.EmbedBatch(ctx, []string{question})
		if err != nil {
			p.Logger.Error("pipeline: cache embed failed", map[string]any{"error": err.Error()})
			return
		}
		if len(vecs) != 1 {
			return
		}
		queryEmbedding = vecs[0]
	}
	p.Cache.Put(question, queryEmbedding, result)
	if p.CacheMirror != nil {
		data, err := json.Marshal(result)
		if err != nil {
			p.Logger.Error("pipeline: cache mirror marshal failed", map[string]any{"error": err.Error()})
			return
		}
		if err := p.CacheMirror.Mirror(ctx, question, queryEmbedding, string(data)); err != nil {
			p.Logger.Error("pipeline: cache mirror write failed", map[string]any{"error": err.Error()})
		}
	}
}
