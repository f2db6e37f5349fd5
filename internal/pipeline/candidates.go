package pipeline

import (
	"context"
	"errors"
	"time"

	"retrievalcore/internal/bm25"
	"retrievalcore/internal/rerrors"
	"retrievalcore/internal/vectorstore"
)

// SourceDiagnostics carries per-source retrieval timings and counts, logged
// alongside the fused result for latency debugging.
type SourceDiagnostics struct {
	SemanticLatency time.Duration
	BM25Latency     time.Duration
	SemanticCount   int
	BM25Count       int
}

// CandidateRequest bundles the inputs to one parallel candidate fetch.
type CandidateRequest struct {
	QueryText   string
	QueryVector []float32
	TopKVector  int
	TopKBM25    int
	Filters     vectorstore.Filters
	BM25Filters bm25.Filters
}

// ParallelCandidates queries the vector store and BM25 index concurrently
// and waits for both to finish, mirroring the fan-out-then-join shape used
// elsewhere in this codebase for independent, latency-bound lookups.
func ParallelCandidates(ctx context.Context, store vectorstore.Store, index *bm25.Index, req CandidateRequest) ([]vectorstore.Match, []bm25.Result, SourceDiagnostics, error) {
	type semOut struct {
		res []vectorstore.Match
		dur time.Duration
		err error
	}
	type kwOut struct {
		res []bm25.Result
		dur time.Duration
		err error
	}

	semCh := make(chan semOut, 1)
	kwCh := make(chan kwOut, 1)

	if req.TopKVector > 0 && store != nil && len(req.QueryVector) > 0 {
		go func() {
			t0 := time.Now()
			res, err := store.Search(ctx, req.QueryVector, req.TopKVector, req.Filters)
			semCh <- semOut{res: res, dur: time.Since(t0), err: err}
		}()
	} else {
		semCh <- semOut{}
	}

	if req.TopKBM25 > 0 && index != nil {
		go func() {
			t0 := time.Now()
			res, err := index.Search(req.QueryText, req.TopKBM25, req.BM25Filters)
			kwCh <- kwOut{res: res, dur: time.Since(t0), err: err}
		}()
	} else {
		kwCh <- kwOut{}
	}

	sem := <-semCh
	kw := <-kwCh

	if sem.err != nil {
		return nil, nil, SourceDiagnostics{}, rerrors.Wrap("vector_store", sem.err)
	}
	if kw.err != nil && !errors.Is(kw.err, rerrors.ErrNotReady) {
		return nil, nil, SourceDiagnostics{}, rerrors.Wrap("bm25", kw.err)
	}

	diag := SourceDiagnostics{
		SemanticLatency: sem.dur,
		BM25Latency:     kw.dur,
		SemanticCount:   len(sem.res),
		BM25Count:       len(kw.res),
	}
	return sem.res, kw.res, diag, nil
}
