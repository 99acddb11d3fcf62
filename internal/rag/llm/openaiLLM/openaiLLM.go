package openaiLLM

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/customHttpClient"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/internal/rag/llm"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Options struct {
	Model   string
	APIKey  string
	BaseURL string
}

type llmClient struct {
	api         openai.Client
	modelName   string
	temperature float64
	logger      *logger_i.Logger
}

func New(opts Options) (llm.Provider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai needs OPENAI_API_KEY")
	}
	if opts.Model == "" {
		opts.Model = config.OpenAIModelName
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(customHttpClient.NewClient(config.DefaultLLMCallTimeout)),
		// retries are owned by the answerer
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &llmClient{
		api:         openai.NewClient(reqOpts...),
		modelName:   opts.Model,
		temperature: float64(config.ModelTemperature),
		logger:      logger_i.NewLogger("llm_openai"),
	}, nil
}

func (c *llmClient) Complete(ctx context.Context, prompt string) (string, error) {
	log := c.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(config.ModelContext),
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(c.modelName),
		Temperature: openai.Float(c.temperature),
	})
	metrics.CaptureExecutionMetrics("OpenAI", time.Since(start))
	if err != nil {
		log.Error("OpenAI call failed", "error", err)
		if isTransient(err) {
			return "", fmt.Errorf("%w: %w", llm.ErrTransient, err)
		}
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", llm.ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	// transport level failures without a response
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
