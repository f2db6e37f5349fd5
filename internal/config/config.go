// Package config loads retrieval-core configuration from environment
// variables (optionally a .env file) with an optional YAML overlay,
// following the teacher's env-first layered-config idiom.
package config

import "time"

// BM25Config holds the inverted-index scoring parameters.
type BM25Config struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
}

// CacheConfig holds the semantic cache's sizing and matching parameters.
type CacheConfig struct {
	Enabled             bool          `yaml:"enabled"`
	MaxSize             int           `yaml:"max_size"`
	TTLHours            float64       `yaml:"ttl_hours"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	TTL                 time.Duration `yaml:"-"`
	Redis               RedisMirrorConfig `yaml:"redis"`
}

// RedisMirrorConfig configures the semantic cache's optional Redis
// write-behind mirror, which lets a fresh process warm its in-memory
// cache from the last known-good state instead of starting cold.
type RedisMirrorConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RerankConfig holds the ensemble reranker's weights and toggles.
type RerankConfig struct {
	Enabled            bool    `yaml:"enabled"`
	UseCrossEncoder    bool    `yaml:"use_cross_encoder"`
	SemanticWeight     float64 `yaml:"semantic_weight"`
	BM25Weight         float64 `yaml:"bm25_weight"`
	CrossEncoderWeight float64 `yaml:"cross_encoder_weight"`
}

// RetrievalConfig holds the per-stage candidate-count defaults.
type RetrievalConfig struct {
	TopKParent int `yaml:"top_k_parent"`
	TopKChild  int `yaml:"top_k_child"`
	TopKFinal  int `yaml:"top_k_final"`
}

// ContextConfig toggles intent-based context assembly.
type ContextConfig struct {
	EnableIntentBased bool `yaml:"enable_intent_based"`
}

// EmbedderConfig holds the embedding service's wire configuration.
type EmbedderConfig struct {
	Provider string        `yaml:"provider"` // "ollama" | "openai"
	URL      string        `yaml:"url"`
	Model    string        `yaml:"model"`
	Dim      int           `yaml:"dim"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"-"`
}

// LLMConfig holds the query-enhancer's text-generation backend config.
type LLMConfig struct {
	Provider string        `yaml:"provider"` // "ollama" | "anthropic"
	URL      string        `yaml:"url"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"-"`
}

// Config is the full retrieval-core configuration surface.
type Config struct {
	LogPath  string `yaml:"log_path"`
	LogLevel string `yaml:"log_level"`

	BM25      BM25Config      `yaml:"bm25"`
	Cache     CacheConfig     `yaml:"cache"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Context   ContextConfig   `yaml:"context"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	LLM       LLMConfig       `yaml:"llm"`

	QdrantDSN        string `yaml:"qdrant_dsn"`
	QdrantCollection string `yaml:"qdrant_collection"`

	BM25IndexPath string `yaml:"bm25_index_path"`
}

func defaults() Config {
	return Config{
		LogLevel: "info",
		BM25:     BM25Config{K1: 1.5, B: 0.75},
		Cache: CacheConfig{
			Enabled:             true,
			MaxSize:             100,
			TTLHours:            24,
			SimilarityThreshold: 0.92,
			Redis:               RedisMirrorConfig{Addr: "localhost:6379", Prefix: "semcache"},
		},
		Rerank: RerankConfig{
			Enabled:            true,
			UseCrossEncoder:    true,
			SemanticWeight:     0.55,
			BM25Weight:         0.35,
			CrossEncoderWeight: 0.10,
		},
		Retrieval: RetrievalConfig{TopKParent: 5, TopKChild: 15, TopKFinal: 8},
		Context:   ContextConfig{EnableIntentBased: true},
		Embedder:  EmbedderConfig{Provider: "ollama", URL: "http://localhost:11434", Model: "nomic-embed-text", Dim: 1024, Timeout: 30 * time.Second},
		LLM:       LLMConfig{Provider: "ollama", URL: "http://localhost:11434", Model: "llama3.1", Timeout: 60 * time.Second},

		QdrantCollection: "procedures",
		BM25IndexPath:    "bm25_index.gob",
	}
}
