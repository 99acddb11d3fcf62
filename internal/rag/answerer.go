package rag

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/internal/rag/chunk"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/akolanti/docqa/internal/rag/llm"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/pkg/logger_i"
	"golang.org/x/time/rate"
)

const contextSeparator = "\n\n---\n\n"

// answerer handles one question against a ready index: retrieve, assemble, complete.
type answerer struct {
	embedder embedding.Embedder
	llm      llm.Provider
	limiter  *rate.Limiter
	settings config.PipelineSettings
	logger   *logger_i.Logger
}

func newAnswerer(e embedding.Embedder, p llm.Provider, settings config.PipelineSettings) *answerer {
	a := &answerer{
		embedder: e,
		llm:      p,
		settings: settings,
		logger:   logger_i.NewLogger("Answerer"),
	}
	if settings.LLMRequestsPerSecond > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(settings.LLMRequestsPerSecond), max(1, int(settings.LLMRequestsPerSecond)))
	}
	return a
}

func (a *answerer) answer(ctx context.Context, index vectorDB.Index, position int, question string) (string, error) {
	log := a.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "position", position)

	vec, err := a.embedder.GetEmbedding(ctx, question)
	if err != nil {
		return "", &commonModels.AnswerError{Position: position, Err: err}
	}

	matches, err := index.Query(ctx, vec, a.settings.TopK)
	if err != nil {
		return "", &commonModels.AnswerError{Position: position, Err: err}
	}

	selected := selectPassages(matches, a.settings.MinSimilarity, a.settings.FallbackPassages)
	contextText := assembleContext(selected, a.settings.MaxContextTokens)
	log.Debug("context assembled", "matches", len(matches), "used", len(selected), "tokens", chunk.CountTokens(contextText))

	raw, err := a.complete(ctx, llm.BuildPrompt(contextText, question))
	if err != nil {
		return "", &commonModels.AnswerError{Position: position, Err: err}
	}
	answer := llm.CleanAnswer(raw)
	if answer == "" {
		return "", &commonModels.AnswerError{Position: position, Err: llm.ErrEmptyCompletion}
	}
	return answer, nil
}

// complete makes one LLM call and retries once after a backoff on transient failures.
func (a *answerer) complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			a.logger.Warn("retrying llm call", "error", lastErr, "backoff", a.settings.LLMRetryBackoff)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(a.settings.LLMRetryBackoff):
			}
		}
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		out, err := a.callOnce(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !a.retryable(ctx, err) {
			return "", err
		}
	}
	return "", lastErr
}

func (a *answerer) callOnce(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.settings.LLMCallTimeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()
	return a.llm.Complete(callCtx, prompt)
}

// retryable is true for provider-flagged transient errors and for a per-call timeout
// while the run itself still has time left.
func (a *answerer) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return errors.Is(err, llm.ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}

// selectPassages keeps matches at or above minSimilarity. When none qualifies the
// best fallback matches are used instead so the model still sees the closest text.
func selectPassages(matches []commonModels.Match, minSimilarity float32, fallback int) []commonModels.Match {
	kept := make([]commonModels.Match, 0, len(matches))
	for _, m := range matches {
		if m.Score >= minSimilarity {
			kept = append(kept, m)
		}
	}
	if len(kept) > 0 {
		return kept
	}
	return matches[:min(fallback, len(matches))]
}

// assembleContext joins passages in rank order until the token budget is spent.
// The first passage is truncated instead of dropped.
func assembleContext(matches []commonModels.Match, budget int) string {
	parts := make([]string, 0, len(matches))
	used := 0
	for i, m := range matches {
		n := chunk.CountTokens(m.Passage.Text)
		if used+n > budget {
			if i == 0 {
				parts = append(parts, chunk.TruncateTokens(m.Passage.Text, budget))
			}
			break
		}
		parts = append(parts, m.Passage.Text)
		used += n
	}
	return strings.Join(parts, contextSeparator)
}
