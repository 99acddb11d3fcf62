package openaiEmbedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/customHttpClient"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Options struct {
	Model        string
	APIKey       string
	BaseURL      string
	Dimension    int
	RetryBackoff time.Duration
}

type client struct {
	api          openai.Client
	model        string
	dimension    int
	retryBackoff time.Duration
	logger       *logger_i.Logger
}

// dimensions of the hosted models when no explicit size is requested
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

func New(opts Options) (embedding.Embedder, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai embedding needs OPENAI_API_KEY")
	}
	if opts.Model == "" {
		opts.Model = config.OpenAIEmbeddingModel
	}
	if opts.Dimension <= 0 {
		opts.Dimension = modelDimensions[opts.Model]
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("unknown dimension for embedding model %q", opts.Model)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(customHttpClient.NewClient(config.DefaultLLMCallTimeout)),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &client{
		api:          openai.NewClient(reqOpts...),
		model:        opts.Model,
		dimension:    opts.Dimension,
		retryBackoff: opts.RetryBackoff,
		logger:       logger_i.NewLogger("openai_embedding"),
	}, nil
}

func (c *client) Name() string   { return config.EmbedderOpenAI }
func (c *client) Dimension() int { return c.dimension }

func (c *client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.BatchEmbedding(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	log := c.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	results := make([][]float32, 0, len(texts))
	for _, batch := range embedding.Batches(texts, config.EmbeddingBatchSize) {
		vectors, err := c.doCall(ctx, batch)
		if isRetryable(err) {
			log.Warn("embedding call failed, retrying once", "error", err, "backoff", c.retryBackoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryBackoff):
			}
			vectors, err = c.doCall(ctx, batch)
		}
		if err != nil {
			log.Error("Error getting Embeddings from OpenAI", "error", err)
			return nil, err
		}
		results = append(results, vectors...)
	}
	return results, nil
}

func (c *client) doCall(ctx context.Context, batch []string) ([][]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("OpenAIEmbedding", time.Since(start)) }()

	// the api rejects empty strings
	input := make([]string, len(batch))
	for i, t := range batch {
		if t == "" {
			t = " "
		}
		input[i] = t
	}

	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: input},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("openai returned %d vectors for %d texts", len(resp.Data), len(batch))
	}

	// results may arrive in any order, Index points back into the input
	out := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("openai returned out of range index %d", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = embedding.Normalize(vec)
	}
	return out, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
