package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/runModel"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/pkg/logger_i"
)

type prepared struct {
	passages []commonModels.Passage
	vectors  [][]float32
}

func (s *service) executeFetchStep(ctx context.Context, log *logger_i.Logger, docURL string) (commonModels.Document, error) {
	log.Debug("Run", "Current Stage", runModel.StageFetching)
	return s.fetcher.Fetch(ctx, docURL)
}

// executePrepareStep extracts, chunks and embeds on the task runner and waits for it.
func (s *service) executePrepareStep(ctx context.Context, tracker *runTracker, log *logger_i.Logger, doc commonModels.Document) (prepared, error) {
	var out prepared
	work := func(ctx context.Context) error {
		tracker.transition(runModel.StageExtracting)
		segments, err := s.extractor.Extract(ctx, doc)
		if err != nil {
			return err
		}
		log.Debug("Run", "segments", len(segments))

		tracker.transition(runModel.StageChunking)
		passages := s.splitter.Split(segments)
		if len(passages) == 0 {
			return nil
		}

		tracker.transition(runModel.StageEmbedding)
		vectors, err := s.executeEmbeddingStep(ctx, passages)
		if err != nil {
			return err
		}
		out = prepared{passages: passages, vectors: vectors}
		return nil
	}

	var err error
	if s.runner == nil {
		err = work(ctx)
	} else {
		err = s.runner.Submit(ctx, work)
	}
	if err != nil {
		return prepared{}, err
	}
	return out, nil
}

func (s *service) executeEmbeddingStep(ctx context.Context, passages []commonModels.Passage) ([][]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("passage_embedding", time.Since(start)) }()

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vectors, err := s.embedder.BatchEmbedding(ctx, texts)
	if err != nil {
		return nil, asEmbeddingError(err)
	}
	if len(vectors) != len(passages) {
		return nil, &commonModels.EmbeddingError{Err: fmt.Errorf("got %d vectors for %d passages", len(vectors), len(passages))}
	}
	return vectors, nil
}

func (s *service) executeIndexStep(ctx context.Context, log *logger_i.Logger, p prepared) (vectorDB.Index, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("index_build_"+s.builder.Name(), time.Since(start)) }()

	entries := make([]vectorDB.Entry, len(p.passages))
	for i := range p.passages {
		entries[i] = vectorDB.Entry{Passage: p.passages[i], Vector: p.vectors[i]}
	}
	index, err := s.builder.Build(ctx, entries)
	if err != nil {
		return nil, asEmbeddingError(err)
	}
	log.Debug("Run", "indexed", index.Len(), "backend", s.builder.Name())
	return index, nil
}

func asEmbeddingError(err error) error {
	var staged commonModels.StagedError
	if errors.As(err, &staged) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &commonModels.EmbeddingError{Err: err}
}

// runTracker owns the run record. Transitions may come from the pool goroutine
// while the coordinator is failing the run, so every access is locked and nothing
// moves once the run is terminal.
type runTracker struct {
	mu         sync.Mutex
	ctx        context.Context
	store      runModel.RunStore
	log        *logger_i.Logger
	run        runModel.Run
	started    time.Time
	stageStart time.Time
}

func newRunTracker(ctx context.Context, store runModel.RunStore, log *logger_i.Logger, run runModel.Run) *runTracker {
	now := time.Now()
	run.Stage = runModel.StageFetching
	run.CreatedTime = now
	run.StageMillis = make(map[runModel.Stage]int64)
	t := &runTracker{
		ctx:        context.WithoutCancel(ctx),
		store:      store,
		log:        log,
		run:        run,
		started:    now,
		stageStart: now,
	}
	t.save()
	return t
}

func (t *runTracker) transition(next runModel.Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run.Stage.Terminal() {
		return
	}
	t.closeStage()
	t.run.Stage = next
	t.log.Debug("Run", "Current Stage", next)
	t.save()
}

func (t *runTracker) update(fn func(r *runModel.Run)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.run)
}

func (t *runTracker) stage() runModel.Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.run.Stage
}

func (t *runTracker) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run.Stage.Terminal() {
		return
	}
	t.closeStage()
	failedAt := t.run.Stage
	code := commonModels.ErrorCode(err)
	t.run.Error = &runModel.RunError{Code: code, Stage: failedAt, Message: err.Error()}
	t.run.Stage = runModel.StageFailed
	t.run.EndTime = time.Now()

	metrics.CountRun(string(failedAt), code)
	metrics.CaptureRunMetrics("failed", time.Since(t.started))
	t.log.Error("run failed", "stage", failedAt, "code", code, "error", err)
	t.save()
}

func (t *runTracker) finish(answers, fallbacks int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run.Stage.Terminal() {
		return
	}
	t.closeStage()
	t.run.AnswerCount = answers
	t.run.FallbackCount = fallbacks
	t.run.Stage = runModel.StageDone
	t.run.EndTime = time.Now()

	metrics.CountRun(string(runModel.StageDone), "ok")
	metrics.CaptureRunMetrics("done", time.Since(t.started))
	t.save()
}

// closeStage books the time spent in the current stage. Callers hold mu.
func (t *runTracker) closeStage() {
	now := time.Now()
	elapsed := now.Sub(t.stageStart)
	t.run.StageMillis[t.run.Stage] += elapsed.Milliseconds()
	metrics.CaptureStageMetrics(string(t.run.Stage), elapsed)
	t.stageStart = now
}

func (t *runTracker) save() {
	if t.store == nil {
		return
	}
	if err := t.store.SaveRun(t.ctx, t.run); err != nil {
		t.log.Warn("could not record run", "error", err)
	}
}
