// Package embedder implements the C4 Embedder Adapter contract: mapping
// text to a fixed-dimension, unit-normalized vector.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Embedder converts text to embedding vectors. All implementations return
// unit-normalized output; connectivity failures produce a zero vector
// (fail-soft) plus a logged warning rather than an error, per spec.
type Embedder interface {
	// EmbedBatch returns an embedding vector per input text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns a model identifier string.
	Name() string
	// Dimension returns the embedding dimensionality.
	Dimension() int
	// Ping checks if the embedding service is reachable.
	Ping(ctx context.Context) error
}

// Config wires an HTTP-backed embedder to its endpoint.
type Config struct {
	BaseURL   string
	Path      string // default "/api/embeddings"
	Model     string
	APIKey    string
	APIHeader string // "Authorization" or a custom header name
	Dim       int
	Timeout   time.Duration
}

type ollamaEmbedder struct {
	cfg       Config
	mu        sync.Mutex
	lastCall  time.Time
	minDelay  time.Duration
	batchSize int
}

// NewOllamaClient returns an Embedder calling an Ollama-compatible
// /api/embeddings endpoint. Requests are sent one text at a time to avoid
// batch-inference issues some local embedding servers exhibit.
func NewOllamaClient(cfg Config) Embedder {
	if cfg.Path == "" {
		cfg.Path = "/api/embeddings"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ollamaEmbedder{cfg: cfg, batchSize: 1}
}

func (c *ollamaEmbedder) Name() string   { return c.cfg.Model }
func (c *ollamaEmbedder) Dimension() int { return c.cfg.Dim }

func (c *ollamaEmbedder) Ping(ctx context.Context) error {
	_, err := c.rateLimitedCall(ctx, []string{"ping"})
	return err
}

func (c *ollamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += c.batchSize {
		end := i + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := c.rateLimitedCall(ctx, texts[i:end])
		if err != nil {
			// fail-soft: zero vectors for the remaining batch, logged warning.
			log.Warn().Err(err).Int("batch_start", i).Msg("embedder: embedding call failed, returning zero vectors")
			for range texts[i:end] {
				out = append(out, make([]float32, c.cfg.Dim))
			}
			continue
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *ollamaEmbedder) rateLimitedCall(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	if !c.lastCall.IsZero() {
		if elapsed := time.Since(c.lastCall); elapsed < c.minDelay {
			time.Sleep(c.minDelay - elapsed)
		}
	}
	c.lastCall = time.Now()
	c.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = normalize(vec)
	}
	return out, nil
}

type ollamaReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResp struct {
	Embedding []float32 `json:"embedding"`
}

func (c *ollamaEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaReq{Model: c.cfg.Model, Prompt: text})
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, c.cfg.BaseURL+c.cfg.Path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		header := c.cfg.APIHeader
		if header == "" || header == "Authorization" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		} else {
			req.Header.Set(header, c.cfg.APIKey)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: request failed: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder: read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("embedder: status %s: %s", resp.Status, string(b))
	}
	var er ollamaResp
	if err := json.Unmarshal(b, &er); err != nil {
		return nil, fmt.Errorf("embedder: parse response: %w", err)
	}
	return er.Embedding, nil
}

// deterministicEmbedder is a lightweight, deterministic embedder for tests.
// It hashes byte 3-grams into a fixed-size vector and L2-normalizes.
type deterministicEmbedder struct {
	dim  int
	seed uint64
}

// NewDeterministic constructs a deterministic embedder with the given
// dimension, suitable for tests that need stable, unit-normalized vectors
// without a live embedding service.
func NewDeterministic(dim int, seed uint64) Embedder {
	if dim <= 0 {
		dim = 64
	}
	return &deterministicEmbedder{dim: dim, seed: seed}
}

func (d *deterministicEmbedder) Name() string   { return "deterministic" }
func (d *deterministicEmbedder) Dimension() int { return d.dim }

func (d *deterministicEmbedder) Ping(_ context.Context) error { return nil }

func (d *deterministicEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = normalize(d.embedOne(t))
	}
	return out, nil
}

func (d *deterministicEmbedder) embedOne(s string) []float32 {
	v := make([]float32, d.dim)
	b := []byte(s)
	if len(b) == 0 {
		return v
	}
	if len(b) < 3 {
		addGram(d.seed, b, v)
	} else {
		for i := 0; i <= len(b)-3; i++ {
			addGram(d.seed, b[i:i+3], v)
		}
	}
	return v
}

func addGram(seed uint64, gram []byte, v []float32) {
	h := fnv.New64a()
	if seed != 0 {
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[i] = byte(seed >> (8 * i))
		}
		_, _ = h.Write(tmp[:])
	}
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}

// normalize L2-normalizes v in place and returns it. A zero vector is
// returned unchanged (maximally dissimilar to everything, per spec's
// fail-soft contract for embedder errors).
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// CosineSimilarity computes cosine similarity between two equal-length
// vectors. Returns 0 if lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < -1 {
		sim = -1
	}
	if sim > 1 {
		sim = 1
	}
	return sim
}
