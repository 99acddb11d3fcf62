package rag

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/runModel"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/akolanti/docqa/internal/rag/fetch"
	"github.com/akolanti/docqa/internal/rag/llm"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

/*
Service is the public contract handlers, the MCP tool and the CLI call.
service is the private implementation holding the process-wide clients.
NewService wires them so tests can swap any dependency for a mock.
*/

type Service interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
	Status(ctx context.Context, runId string) (runModel.Run, bool)
}

type RunRequest struct {
	// RunId is generated when empty.
	RunId       string
	DocumentURL string
	Questions   []string
}

type RunResult struct {
	RunId         string
	Answers       []string
	PassageCount  int
	FallbackCount int
}

type Extractor interface {
	Extract(ctx context.Context, doc commonModels.Document) ([]commonModels.TextSegment, error)
}

type Splitter interface {
	Split(segments []commonModels.TextSegment) []commonModels.Passage
}

// TaskRunner runs CPU heavy work off the request goroutine. *worker.Pool satisfies it.
type TaskRunner interface {
	Submit(ctx context.Context, fn func(ctx context.Context) error) error
}

type Dependencies struct {
	Settings  config.PipelineSettings
	Fetcher   fetch.Fetcher
	Extractor Extractor
	Splitter  Splitter
	Embedder  embedding.Embedder
	Builder   vectorDB.Builder
	LLM       llm.Provider
	RunStore  runModel.RunStore
	// Runner is optional, work runs inline when nil.
	Runner TaskRunner
}

type service struct {
	settings  config.PipelineSettings
	fetcher   fetch.Fetcher
	extractor Extractor
	splitter  Splitter
	embedder  embedding.Embedder
	builder   vectorDB.Builder
	runStore  runModel.RunStore
	runner    TaskRunner
	answerer  *answerer
	logger    *logger_i.Logger
}

func NewService(deps Dependencies) Service {
	return &service{
		settings:  deps.Settings,
		fetcher:   deps.Fetcher,
		extractor: deps.Extractor,
		splitter:  deps.Splitter,
		embedder:  deps.Embedder,
		builder:   deps.Builder,
		runStore:  deps.RunStore,
		runner:    deps.Runner,
		answerer:  newAnswerer(deps.Embedder, deps.LLM, deps.Settings),
		logger:    logger_i.NewLogger("RAG Service"),
	}
}

func (s *service) Status(ctx context.Context, runId string) (runModel.Run, bool) {
	return s.runStore.GetRun(ctx, runId)
}

func (s *service) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	runId := req.RunId
	if runId == "" {
		runId = uuid.NewString()
	}
	if ctx.Value(config.TRACE_ID_KEY) == nil {
		ctx = context.WithValue(ctx, config.TRACE_ID_KEY, runId)
	}
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "runId", runId)
	result := RunResult{RunId: runId}

	runCtx, cancel := context.WithTimeout(ctx, s.settings.RequestTimeout)
	defer cancel()

	tracker := newRunTracker(ctx, s.runStore, log, runModel.Run{
		Id:            runId,
		TraceId:       traceId(ctx),
		DocumentURL:   req.DocumentURL,
		QuestionCount: len(req.Questions),
	})

	doc, err := s.executeFetchStep(runCtx, log, req.DocumentURL)
	if err != nil {
		return result, s.failRun(runCtx, tracker, err)
	}
	tracker.update(func(r *runModel.Run) { r.DocumentKind = string(doc.Kind) })

	prepared, err := s.executePrepareStep(runCtx, tracker, log, doc)
	if err != nil {
		return result, s.failRun(runCtx, tracker, err)
	}
	result.PassageCount = len(prepared.passages)
	tracker.update(func(r *runModel.Run) { r.PassageCount = len(prepared.passages) })

	if len(prepared.passages) == 0 {
		log.Warn("document produced no passages, skipping the model")
		result.Answers = make([]string, len(req.Questions))
		for i := range result.Answers {
			result.Answers[i] = s.settings.NoContentAnswer
		}
		tracker.finish(len(result.Answers), 0)
		return result, nil
	}

	index, err := s.executeIndexStep(runCtx, log, prepared)
	if err != nil {
		return result, s.failRun(runCtx, tracker, err)
	}
	defer func() {
		if err := index.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("index close failed", "error", err)
		}
	}()
	tracker.transition(runModel.StageIndexReady)

	tracker.transition(runModel.StageAnswering)
	answers, fallbacks, err := s.executeAnswerStep(runCtx, log, index, req.Questions)
	if err != nil {
		return result, s.failRun(runCtx, tracker, err)
	}

	result.Answers = answers
	result.FallbackCount = fallbacks
	tracker.finish(len(answers), fallbacks)
	log.Info("run complete", "questions", len(answers), "fallbacks", fallbacks)
	return result, nil
}

// executeAnswerStep answers every question into its own slot. A failed question gets the
// fallback answer; only the request deadline fails the step.
func (s *service) executeAnswerStep(ctx context.Context, log *logger_i.Logger, index vectorDB.Index, questions []string) ([]string, int, error) {
	answers := make([]string, len(questions))
	var fallbacks atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.settings.MaxConcurrentLLMCalls)
	for i, question := range questions {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			answer, err := s.answerer.answer(ctx, index, i, question)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error("question failed, using fallback", "position", i, "error", err)
				metrics.IncrementAnswerFallback()
				fallbacks.Add(1)
				answer = s.settings.FallbackAnswer
			}
			answers[i] = answer
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return answers, int(fallbacks.Load()), nil
}

// failRun records the failure and returns the error the caller should see. Deadline
// expiry is reported as a timeout regardless of which stage noticed it.
func (s *service) failRun(runCtx context.Context, tracker *runTracker, err error) error {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		var timeoutErr *commonModels.TimeoutError
		if !errors.As(err, &timeoutErr) {
			err = &commonModels.TimeoutError{During: tracker.stage(), Err: err}
		}
	}
	tracker.fail(err)
	return err
}

func traceId(ctx context.Context) string {
	if v, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		return v
	}
	return ""
}
