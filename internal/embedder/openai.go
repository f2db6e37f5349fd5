package embedder

import (
	"context"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog/log"
)

// openaiEmbedder is an alternate Embedder backend for OpenAI-compatible
// embeddings endpoints, selected when the configured embedder provider is
// "openai".
type openaiEmbedder struct {
	client openai.Client
	model  string
	dim    int
}

// NewOpenAIClient constructs an Embedder backed by the OpenAI embeddings
// API (or any OpenAI-compatible gateway reachable via baseURL).
func NewOpenAIClient(apiKey, baseURL, model string, dim int) Embedder {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &openaiEmbedder{
		client: openai.NewClient(opts...),
		model:  model,
		dim:    dim,
	}
}

func (o *openaiEmbedder) Name() string   { return o.model }
func (o *openaiEmbedder) Dimension() int { return o.dim }

func (o *openaiEmbedder) Ping(ctx context.Context) error {
	_, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{"ping"}},
		Model: o.model,
	})
	return err
}

func (o *openaiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: o.model,
	})
	if err != nil {
		// fail-soft: zero vectors for the whole batch, logged warning.
		log.Warn().Err(err).Msg("embedder: openai embeddings call failed, returning zero vectors")
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = make([]float32, o.dim)
		}
		return out, nil
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[i] = normalize(vec)
	}
	return out, nil
}
