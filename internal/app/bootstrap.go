package app

import (
	"context"
	"fmt"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/data/redisStore"
	"github.com/akolanti/docqa/internal/data/store"
	"github.com/akolanti/docqa/internal/domain/runModel"
	"github.com/akolanti/docqa/internal/rag"
	"github.com/akolanti/docqa/internal/rag/chunk"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/akolanti/docqa/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/docqa/internal/rag/embedding/hashEmbedding"
	"github.com/akolanti/docqa/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/docqa/internal/rag/fetch"
	"github.com/akolanti/docqa/internal/rag/ingest"
	"github.com/akolanti/docqa/internal/rag/llm"
	"github.com/akolanti/docqa/internal/rag/llm/gemini"
	"github.com/akolanti/docqa/internal/rag/llm/openaiLLM"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/internal/rag/vectorDB/memoryDB"
	"github.com/akolanti/docqa/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/docqa/internal/worker"
	"github.com/akolanti/docqa/pkg/logger_i"
)

// Components are the process-wide values built once at start.
type Components struct {
	Service rag.Service
	Pool    *worker.Pool
}

type Options struct {
	// UseRedis records runs in redis when it is reachable. The CLI keeps runs in memory.
	UseRedis bool
}

// Build selects the configured backends and wires the run service. ctx bounds the
// lifetime of the shared clients.
func Build(ctx context.Context, cfg config.Settings, opts Options) (*Components, error) {
	logger := logger_i.NewLogger("bootstrap")

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder %s: %w", cfg.Backends.Embedder, err)
	}
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("llm %s: %w", cfg.Backends.LLM, err)
	}
	builder, err := newIndexBuilder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", cfg.Backends.Index, err)
	}

	var runStore runModel.RunStore = store.InitInMemoryRunStore()
	if opts.UseRedis {
		runStore = store.GetRunStore(ctx, redisStore.Options{Addr: cfg.Backends.RedisAddr, Password: cfg.Backends.RedisPassword})
	}

	pool := worker.NewPool(worker.Options{
		MinWorkers:  config.MinWorkerCount,
		MaxWorkers:  config.MaxWorkerCount,
		IdleTimeout: config.IdleWorkerTimeout,
		Buffer:      config.TaskBufferLimit,
	})

	p := cfg.Pipeline
	service := rag.NewService(rag.Dependencies{
		Settings: p,
		Fetcher: fetch.NewFetcher(fetch.Options{
			MaxBytes:     p.MaxDocumentBytes,
			Timeout:      p.FetchTimeout,
			RetryBackoff: p.FetchRetryBackoff,
		}),
		Extractor: ingest.NewRegistry(),
		Splitter:  chunk.New(chunk.WithChunkSize(p.ChunkSize), chunk.WithOverlap(p.ChunkOverlap)),
		Embedder:  embedder,
		Builder:   builder,
		LLM:       provider,
		RunStore:  runStore,
		Runner:    pool,
	})

	logger.Info("Backends ready", "embedder", embedder.Name(), "dimension", embedder.Dimension(), "llm", cfg.Backends.LLM, "index", builder.Name())
	return &Components{Service: service, Pool: pool}, nil
}

func newEmbedder(ctx context.Context, cfg config.Settings) (embedding.Embedder, error) {
	b := cfg.Backends
	switch b.Embedder {
	case config.EmbedderGoogle:
		return googleEmbedding.GetGoogleEmbeddingClient(ctx, googleEmbedding.Options{
			Model:        valueOr(b.EmbeddingModel, config.GoogleEmbeddingModel),
			APIKey:       b.GeminiAPIKey,
			Dimension:    config.EmbeddingOutputDimensionality,
			RetryBackoff: cfg.Pipeline.LLMRetryBackoff,
		})
	case config.EmbedderOpenAI:
		return openaiEmbedding.New(openaiEmbedding.Options{
			Model:        valueOr(b.EmbeddingModel, config.OpenAIEmbeddingModel),
			APIKey:       b.OpenAIAPIKey,
			BaseURL:      b.OpenAIBaseURL,
			RetryBackoff: cfg.Pipeline.LLMRetryBackoff,
		})
	default:
		return hashEmbedding.New(config.HashEmbeddingDimension), nil
	}
}

func newProvider(ctx context.Context, cfg config.Settings) (llm.Provider, error) {
	b := cfg.Backends
	switch b.LLM {
	case config.LLMOpenAI:
		return openaiLLM.New(openaiLLM.Options{
			Model:   valueOr(b.LLMModel, config.OpenAIModelName),
			APIKey:  b.OpenAIAPIKey,
			BaseURL: b.OpenAIBaseURL,
		})
	default:
		return gemini.GetGeminiClient(ctx, valueOr(b.LLMModel, config.GeminiModelName), b.GeminiAPIKey)
	}
}

func newIndexBuilder(ctx context.Context, cfg config.Settings) (vectorDB.Builder, error) {
	if cfg.Backends.Index == config.IndexQdrant {
		return qdrantDB.GetQuadrantClient(ctx, cfg.Backends.QdrantHost, cfg.Backends.QdrantPort)
	}
	return memoryDB.NewBuilder(), nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
