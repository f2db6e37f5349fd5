// Command retrieved wires the retrieval core's adapters together and
// answers a single question against them — a smoke-test CLI for the
// pipeline, flag-driven and config.Load()-first.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"retrievalcore/internal/bm25"
	"retrievalcore/internal/config"
	"retrievalcore/internal/embedder"
	"retrievalcore/internal/obslog"
	"retrievalcore/internal/obsmetrics"
	"retrievalcore/internal/pipeline"
	"retrievalcore/internal/queryenhancer"
	"retrievalcore/internal/rerank"
	"retrievalcore/internal/semcache"
	"retrievalcore/internal/vectorstore"
)

func main() {
	log.SetFlags(0)
	var (
		question  = flag.String("q", "", "question to retrieve context for (required)")
		topParent = flag.Int("top-parent", 0, "override top_k_parent (0 = config default)")
		topChild  = flag.Int("top-child", 0, "override top_k_child (0 = config default)")
		memStore  = flag.Bool("mem-store", false, "use an in-memory vector store instead of Qdrant (for local smoke tests)")
	)
	flag.Parse()

	if *question == "" {
		log.Fatal("retrieved: -q is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("retrieved: load config: %v", err)
	}
	obslog.InitLogger(cfg.LogPath, cfg.LogLevel)

	var emb embedder.Embedder
	switch cfg.Embedder.Provider {
	case "openai":
		emb = embedder.NewOpenAIClient(cfg.Embedder.APIKey, cfg.Embedder.URL, cfg.Embedder.Model, cfg.Embedder.Dim)
	default:
		emb = embedder.NewOllamaClient(embedder.Config{
			BaseURL: cfg.Embedder.URL,
			Model:   cfg.Embedder.Model,
			APIKey:  cfg.Embedder.APIKey,
			Dim:     cfg.Embedder.Dim,
			Timeout: cfg.Embedder.Timeout,
		})
	}

	var store vectorstore.Store
	if *memStore {
		store = vectorstore.NewMemory()
	} else {
		store, err = vectorstore.NewQdrant(cfg.QdrantDSN, cfg.QdrantCollection)
		if err != nil {
			log.Fatalf("retrieved: connect vector store: %v", err)
		}
	}

	var llm queryenhancer.LLM
	switch cfg.LLM.Provider {
	case "anthropic":
		llm = queryenhancer.NewAnthropicLLM(cfg.LLM.APIKey, cfg.LLM.Model)
	default:
		llm = queryenhancer.NewOllamaLLM(cfg.LLM.URL, cfg.LLM.Model)
	}
	enhancer := queryenhancer.New(llm)

	opts := []pipeline.Option{
		pipeline.WithTopKDefaults(cfg.Retrieval.TopKParent, cfg.Retrieval.TopKChild),
		pipeline.WithLogger(obslog.PipelineLogger{}),
		pipeline.WithMetrics(obsmetrics.NewOtelMetrics()),
	}
	if cfg.Rerank.Enabled {
		var crossEncoder rerank.CrossEncoder
		if cfg.Rerank.UseCrossEncoder {
			crossEncoder = rerank.NewEmbeddingProxy(emb)
		}
		opts = append(opts, pipeline.WithReranker(rerank.New(cfg.Rerank.SemanticWeight, cfg.Rerank.BM25Weight,
			cfg.Rerank.CrossEncoderWeight, cfg.Rerank.UseCrossEncoder, crossEncoder)))
	}
	if cfg.Cache.Enabled {
		cache := semcache.New(cfg.Cache.MaxSize, time.Duration(cfg.Cache.TTLHours*float64(time.Hour)), cfg.Cache.SimilarityThreshold)
		opts = append(opts, pipeline.WithCache(cache))
		if cfg.Cache.Redis.Enabled {
			mirror, err := semcache.NewRedisMirror(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix, cfg.Cache.TTL)
			if err != nil {
				log.Fatalf("retrieved: connect cache redis mirror: %v", err)
			}
			if restored, err := mirror.Warm(context.Background(), cache); err != nil {
				log.Printf("retrieved: cache redis mirror warm: %v", err)
			} else {
				log.Printf("retrieved: cache redis mirror restored %d entries", restored)
			}
			opts = append(opts, pipeline.WithCacheMirror(mirror))
		}
	}
	// BM25 augmentation needs a built index over the corpus, produced by an
	// offline ingestion-time process and persisted via a bm25.Persister.
	// cfg.BM25IndexPath selects the backend: a "postgres://" DSN loads from
	// Postgres, anything else is treated as a gob-encoded file path. A
	// missing or unreadable artifact just disables keyword augmentation
	// rather than failing the query path.
	if idx := loadBM25Index(cfg); idx != nil {
		opts = append(opts, pipeline.WithBM25(idx))
	}
	p := pipeline.New(emb, store, enhancer, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := p.Retrieve(ctx, *question, pipeline.TopK{Parent: *topParent, Child: *topChild})
	if err != nil {
		log.Fatalf("retrieved: retrieve: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		log.Fatalf("retrieved: encode result: %v", err)
	}
}

// loadBM25Index restores a previously-built index via the persister
// cfg.BM25IndexPath selects, logging and returning nil rather than failing
// the process when nothing has been built yet.
func loadBM25Index(cfg config.Config) *bm25.Index {
	if cfg.BM25IndexPath == "" {
		return nil
	}

	var persister bm25.Persister
	if strings.HasPrefix(cfg.BM25IndexPath, "postgres://") {
		pool, err := pgxpool.New(context.Background(), cfg.BM25IndexPath)
		if err != nil {
			log.Printf("retrieved: bm25 postgres connect failed, keyword augmentation disabled: %v", err)
			return nil
		}
		persister = bm25.PostgresPersister{Pool: pool}
	} else {
		persister = bm25.FilePersister{Path: cfg.BM25IndexPath}
	}

	idx := bm25.New(cfg.BM25.K1, cfg.BM25.B)
	if err := idx.Load(context.Background(), persister); err != nil {
		log.Printf("retrieved: bm25 index load skipped, keyword augmentation disabled: %v", err)
		return nil
	}
	return idx
}
