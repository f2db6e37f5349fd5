// Package rerrors defines the error taxonomy the retrieval core surfaces
// to callers. Query-enhancer and semantic-cache failures never reach this
// package — both are designed to fall back internally — so everything
// here originates from the BM25 index, the vector store, or the embedder.
package rerrors

import "fmt"

// ErrNotReady is returned by bm25.Index.Search when called before Build.
var ErrNotReady = fmt.Errorf("bm25: index not built")

// EmbedderError wraps an embedder adapter failure.
type EmbedderError struct {
	Err error
}

func (e *EmbedderError) Error() string { return fmt.Sprintf("embedder: %v", e.Err) }
func (e *EmbedderError) Unwrap() error { return e.Err }

// VectorStoreError wraps a vector store adapter failure.
type VectorStoreError struct {
	Err error
}

func (e *VectorStoreError) Error() string { return fmt.Sprintf("vector store: %v", e.Err) }
func (e *VectorStoreError) Unwrap() error { return e.Err }

// RetrievalError is the single error type the pipeline returns for C2/C3/C4
// failures. Kind classifies the originating subsystem ("embedder",
// "vector_store", "bm25") for callers that want to branch on it without
// unwrapping.
type RetrievalError struct {
	Kind string
	Err  error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed (%s): %v", e.Kind, e.Err)
}
func (e *RetrievalError) Unwrap() error { return e.Err }

// Wrap builds a RetrievalError tagged with kind.
func Wrap(kind string, err error) error {
	if err == nil {
		return nil
	}
	return &RetrievalError{Kind: kind, Err: err}
}
