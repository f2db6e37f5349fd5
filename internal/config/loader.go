package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// Load reads configuration from an optional YAML file (CONFIG_PATH) merged
// with environment variables (optionally a .env file), env taking
// precedence. Defaults are applied first so a completely bare environment
// still yields a usable Config.
func Load() (Config, error) {
	// Use Overload so .env values override existing OS environment
	// variables, the same precedence the teacher's own loader uses.
	_ = godotenv.Overload()

	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	cfg.LogPath = firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_PATH")), cfg.LogPath)
	cfg.LogLevel = firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_LEVEL")), cfg.LogLevel)

	if v := strings.TrimSpace(os.Getenv("BM25_K1")); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.BM25.K1 = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("BM25_B")); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.BM25.B = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("BM25_INDEX_PATH")); v != "" {
		cfg.BM25IndexPath = v
	}

	if v := strings.TrimSpace(os.Getenv("CACHE_ENABLED")); v != "" {
		cfg.Cache.Enabled = parseBool(v, cfg.Cache.Enabled)
	}
	if v := strings.TrimSpace(os.Getenv("CACHE_MAX_SIZE")); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Cache.MaxSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CACHE_TTL_HOURS")); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Cache.TTLHours = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("CACHE_SIMILARITY_THRESHOLD")); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Cache.SimilarityThreshold = f
		}
	}
	cfg.Cache.TTL = time.Duration(cfg.Cache.TTLHours * float64(time.Hour))

	if v := strings.TrimSpace(os.Getenv("CACHE_REDIS_MIRROR_ENABLED")); v != "" {
		cfg.Cache.Redis.Enabled = parseBool(v, cfg.Cache.Redis.Enabled)
	}
	cfg.Cache.Redis.Addr = firstNonEmpty(strings.TrimSpace(os.Getenv("CACHE_REDIS_ADDR")), cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = firstNonEmpty(strings.TrimSpace(os.Getenv("CACHE_REDIS_PASSWORD")), cfg.Cache.Redis.Password)
	if v := strings.TrimSpace(os.Getenv("CACHE_REDIS_DB")); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Cache.Redis.DB = n
		}
	}
	cfg.Cache.Redis.Prefix = firstNonEmpty(strings.TrimSpace(os.Getenv("CACHE_REDIS_PREFIX")), cfg.Cache.Redis.Prefix)

	if v := strings.TrimSpace(os.Getenv("RERANK_ENABLED")); v != "" {
		cfg.Rerank.Enabled = parseBool(v, cfg.Rerank.Enabled)
	}
	if v := strings.TrimSpace(os.Getenv("RERANK_USE_CROSS_ENCODER")); v != "" {
		cfg.Rerank.UseCrossEncoder = parseBool(v, cfg.Rerank.UseCrossEncoder)
	}
	if v := strings.TrimSpace(os.Getenv("RERANK_SEMANTIC_WEIGHT")); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Rerank.SemanticWeight = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("RERANK_BM25_WEIGHT")); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Rerank.BM25Weight = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("RERANK_CROSS_ENCODER_WEIGHT")); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Rerank.CrossEncoderWeight = f
		}
	}

	if v := strings.TrimSpace(os.Getenv("RETRIEVAL_TOP_K_PARENT")); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Retrieval.TopKParent = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("RETRIEVAL_TOP_K_CHILD")); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Retrieval.TopKChild = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("RETRIEVAL_TOP_K_FINAL")); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Retrieval.TopKFinal = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("CONTEXT_ENABLE_INTENT_BASED")); v != "" {
		cfg.Context.EnableIntentBased = parseBool(v, cfg.Context.EnableIntentBased)
	}

	cfg.Embedder.Provider = firstNonEmpty(strings.TrimSpace(os.Getenv("EMBEDDER_PROVIDER")), cfg.Embedder.Provider)
	cfg.Embedder.URL = firstNonEmpty(strings.TrimSpace(os.Getenv("EMBEDDER_URL")), cfg.Embedder.URL)
	cfg.Embedder.Model = firstNonEmpty(strings.TrimSpace(os.Getenv("EMBEDDER_MODEL")), cfg.Embedder.Model)
	cfg.Embedder.APIKey = firstNonEmpty(strings.TrimSpace(os.Getenv("EMBEDDER_API_KEY")), cfg.Embedder.APIKey)
	if v := strings.TrimSpace(os.Getenv("EMBEDDER_DIM")); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Embedder.Dim = n
		}
	}
	if cfg.Embedder.Timeout == 0 {
		cfg.Embedder.Timeout = 30 * time.Second
	}

	cfg.LLM.Provider = firstNonEmpty(strings.TrimSpace(os.Getenv("LLM_PROVIDER")), cfg.LLM.Provider)
	cfg.LLM.URL = firstNonEmpty(strings.TrimSpace(os.Getenv("LLM_URL")), cfg.LLM.URL)
	cfg.LLM.Model = firstNonEmpty(strings.TrimSpace(os.Getenv("LLM_MODEL")), cfg.LLM.Model)
	cfg.LLM.APIKey = firstNonEmpty(strings.TrimSpace(os.Getenv("LLM_API_KEY")), strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")), cfg.LLM.APIKey)
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}

	cfg.QdrantDSN = firstNonEmpty(strings.TrimSpace(os.Getenv("QDRANT_DSN")), cfg.QdrantDSN)
	cfg.QdrantCollection = firstNonEmpty(strings.TrimSpace(os.Getenv("QDRANT_COLLECTION")), cfg.QdrantCollection)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Embedder.Dim <= 0 {
		return fmt.Errorf("config: embedder.dim must be > 0")
	}
	sum := cfg.Rerank.SemanticWeight + cfg.Rerank.BM25Weight + cfg.Rerank.CrossEncoderWeight
	if sum <= 0 {
		return fmt.Errorf("config: rerank weights must sum to a positive value")
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseBool(s string, def bool) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return strings.EqualFold(s, "true") || s == "1" || strings.EqualFold(s, "yes")
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
