package rerank

import (
	"context"

	"retrievalcore/internal/embedder"
)

// embeddingProxy implements CrossEncoder as an embedding-cosine-similarity
// proxy: Ollama has no native reranker endpoint, so relevance is
// approximated by embedding both sides and scoring their cosine similarity,
// rescaled from [-1,1] to [0,1].
type embeddingProxy struct {
	embed embedder.Embedder
}

// NewEmbeddingProxy builds a CrossEncoder backed by embed.
func NewEmbeddingProxy(embed embedder.Embedder) CrossEncoder {
	return &embeddingProxy{embed: embed}
}

// Score embeds query and text independently and returns their rescaled
// cosine similarity.
func (p *embeddingProxy) Score(ctx context.Context, query, text string) (float64, error) {
	vectors, err := p.embed.EmbedBatch(ctx, []string{query, text})
	if err != nil {
		return 0, err
	}
	if len(vectors) != 2 {
		return neutralCrossEncoderScore, nil
	}
	similarity := embedder.CosineSimilarity(vectors[0], vectors[1])
	return clamp01((similarity + 1) / 2), nil
}
