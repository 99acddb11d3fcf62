package googleEmbedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/akolanti/docqa/pkg/logger_i"
	"google.golang.org/genai"
)

var logger *logger_i.Logger
var once sync.Once
var embeddingClient *client
var initErr error

// every text is embedded with the same task type, questions included
const taskType = "SEMANTIC_SIMILARITY"

type Options struct {
	Model        string
	APIKey       string
	Dimension    int32
	RetryBackoff time.Duration
}

type client struct {
	genAi        *genai.Client
	model        string
	dimension    int32
	retryBackoff time.Duration
}

func newGoogleEmbedder(ctx context.Context, opts Options) {
	if opts.APIKey == "" {
		initErr = errors.New("google embedding needs GEMINI_API_KEY")
		return
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: opts.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		logger.Error("Error creating Google Embedding client", "error", err)
		initErr = err
		return
	}
	if opts.Model == "" {
		opts.Model = config.GoogleEmbeddingModel
	}
	if opts.Dimension <= 0 {
		opts.Dimension = config.EmbeddingOutputDimensionality
	}
	embeddingClient = &client{
		genAi:        c,
		model:        opts.Model,
		dimension:    opts.Dimension,
		retryBackoff: opts.RetryBackoff,
	}
	logger.Info("Google Embedding client created", "model", opts.Model, "dimension", opts.Dimension)
}

// GetGoogleEmbeddingClient builds the process-wide client once.
func GetGoogleEmbeddingClient(ctx context.Context, opts Options) (embedding.Embedder, error) {
	once.Do(func() {
		logger = logger_i.NewLogger("google_embedding")
		newGoogleEmbedder(ctx, opts)
	})
	if embeddingClient == nil {
		return nil, initErr
	}
	return embeddingClient, nil
}

func (c *client) Name() string   { return config.EmbedderGoogle }
func (c *client) Dimension() int { return int(c.dimension) }

func (c *client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.BatchEmbedding(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	results := make([][]float32, 0, len(texts))
	for _, batch := range embedding.Batches(texts, config.EmbeddingBatchSize) {
		res, err := c.doCall(ctx, getContent(batch))
		if doRetry(err, log) {
			log.Debug("Retrying embedding call", "backoff", c.retryBackoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryBackoff):
			}
			res, err = c.doCall(ctx, getContent(batch))
		}
		if err != nil {
			log.Error("Error getting Embeddings from Google", "error", err)
			return nil, err
		}
		if res == nil || len(res.Embeddings) != len(batch) {
			return nil, fmt.Errorf("google embedding returned %d vectors for %d texts", embeddingCount(res), len(batch))
		}
		for _, r := range res.Embeddings {
			// values are only unit length at full dimensionality
			results = append(results, embedding.Normalize(r.Values))
		}
	}
	return results, nil
}

func (c *client) doCall(ctx context.Context, content []*genai.Content) (*genai.EmbedContentResponse, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("GoogleEmbedding", time.Since(start)) }()
	return c.genAi.Models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{OutputDimensionality: &c.dimension, TaskType: taskType})
}

func embeddingCount(res *genai.EmbedContentResponse) int {
	if res == nil {
		return 0
	}
	return len(res.Embeddings)
}
