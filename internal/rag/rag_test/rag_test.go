package rag_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/data/store"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/runModel"
	"github.com/akolanti/docqa/internal/rag"
	"github.com/akolanti/docqa/internal/rag/chunk"
	"github.com/akolanti/docqa/internal/rag/llm"
	"github.com/akolanti/docqa/internal/rag/vectorDB/memoryDB"
	"github.com/akolanti/docqa/internal/worker"
)

const policyText = `The policy covers hospital stays up to a limit of $500 per day.
Claims must be filed within 30 days of discharge.
Dental treatment is excluded unless caused by an accident.`

type fixture struct {
	fetcher   *MockFetcher
	extractor *MockExtractor
	embedder  *MockEmbedder
	llm       *MockLLM
	runStore  *store.InMemoryRunStore
	settings  config.PipelineSettings
	runner    rag.TaskRunner
}

func newFixture() *fixture {
	settings := config.Default().Pipeline
	settings.ChunkSize = 20
	settings.ChunkOverlap = 5
	settings.LLMRetryBackoff = time.Millisecond
	settings.RequestTimeout = 5 * time.Second
	return &fixture{
		fetcher: &MockFetcher{
			OnFetch: func(ctx context.Context, docURL string) (commonModels.Document, error) {
				return commonModels.Document{SourceURL: docURL, Kind: commonModels.TEXT, Raw: []byte(policyText)}, nil
			},
		},
		extractor: &MockExtractor{},
		embedder:  &MockEmbedder{},
		llm:       &MockLLM{},
		runStore:  store.InitInMemoryRunStore(),
		settings:  settings,
	}
}

func (f *fixture) service() rag.Service {
	return rag.NewService(rag.Dependencies{
		Settings:  f.settings,
		Fetcher:   f.fetcher,
		Extractor: f.extractor,
		Splitter:  chunk.New(chunk.WithChunkSize(f.settings.ChunkSize), chunk.WithOverlap(f.settings.ChunkOverlap)),
		Embedder:  f.embedder,
		Builder:   memoryDB.NewBuilder(),
		LLM:       f.llm,
		RunStore:  f.runStore,
		Runner:    f.runner,
	})
}

func questionOf(prompt string) string {
	_, after, _ := strings.Cut(prompt, "Question: ")
	q, _, _ := strings.Cut(after, "\n")
	return q
}

func TestRun_Scenarios(t *testing.T) {
	tests := []struct {
		name          string
		setupMocks    func(f *fixture)
		questions     []string
		expectedErr   string
		expectedStage runModel.Stage
		check         func(t *testing.T, f *fixture, res rag.RunResult)
	}{
		{
			name: "Success_Full_Flow",
			setupMocks: func(f *fixture) {
				f.llm.OnComplete = func(ctx context.Context, prompt string) (string, error) {
					if !strings.Contains(prompt, "$500") {
						return "", errors.New("context missing")
					}
					return "Answer: The limit is $500 per day.", nil
				}
			},
			questions:     []string{"What is the daily limit for hospital stays?"},
			expectedStage: runModel.StageDone,
			check: func(t *testing.T, f *fixture, res rag.RunResult) {
				if res.Answers[0] != "The limit is $500 per day." {
					t.Errorf("Answer got %q", res.Answers[0])
				}
				if res.PassageCount == 0 {
					t.Error("Expected passages to be counted")
				}
			},
		},
		{
			name: "Empty_Document_Skips_LLM",
			setupMocks: func(f *fixture) {
				f.extractor.OnExtract = func(ctx context.Context, doc commonModels.Document) ([]commonModels.TextSegment, error) {
					return []commonModels.TextSegment{{Text: "  ", Origin: "page 1"}}, nil
				}
			},
			questions:     []string{"a?", "b?"},
			expectedStage: runModel.StageDone,
			check: func(t *testing.T, f *fixture, res rag.RunResult) {
				for i, a := range res.Answers {
					if a != config.NoContentAnswer {
						t.Errorf("Answer %d got %q", i, a)
					}
				}
				if f.llm.Calls() != 0 {
					t.Errorf("LLM called %d times for an empty document", f.llm.Calls())
				}
			},
		},
		{
			name: "Failure_Fetch",
			setupMocks: func(f *fixture) {
				f.fetcher.OnFetch = func(ctx context.Context, docURL string) (commonModels.Document, error) {
					return commonModels.Document{}, &commonModels.FetchError{URL: docURL, Status: 404, Err: errors.New("not found")}
				}
			},
			questions:     []string{"a?"},
			expectedErr:   "fetch_failed",
			expectedStage: runModel.StageFailed,
		},
		{
			name: "Failure_Unsupported_Format",
			setupMocks: func(f *fixture) {
				f.extractor.OnExtract = func(ctx context.Context, doc commonModels.Document) ([]commonModels.TextSegment, error) {
					return nil, &commonModels.UnsupportedFormatError{Kind: commonModels.UNKNOWN, ContentType: "image/png"}
				}
			},
			questions:     []string{"a?"},
			expectedErr:   "unsupported_format",
			expectedStage: runModel.StageFailed,
		},
		{
			name: "Failure_Embedding",
			setupMocks: func(f *fixture) {
				f.embedder.OnBatchEmbedding = func(ctx context.Context, texts []string) ([][]float32, error) {
					return nil, errors.New("api limit")
				}
			},
			questions:     []string{"a?"},
			expectedErr:   "embedding_failed",
			expectedStage: runModel.StageFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setupMocks(f)

			ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
			res, err := f.service().Run(ctx, rag.RunRequest{RunId: "run-1", DocumentURL: "https://example.com/policy.txt", Questions: tt.questions})

			if tt.expectedErr != "" {
				if err == nil {
					t.Fatalf("Expected error %s, got answers %v", tt.expectedErr, res.Answers)
				}
				if code := commonModels.ErrorCode(err); code != tt.expectedErr {
					t.Errorf("Error code got %s, want %s (%v)", code, tt.expectedErr, err)
				}
				if res.Answers != nil {
					t.Errorf("Expected no answers on failure, got %v", res.Answers)
				}
			} else if err != nil {
				t.Fatalf("Run failed: %v", err)
			} else if len(res.Answers) != len(tt.questions) {
				t.Fatalf("Got %d answers for %d questions", len(res.Answers), len(tt.questions))
			}

			run, ok := f.runStore.GetRun(ctx, "run-1")
			if !ok {
				t.Fatal("Run was not recorded")
			}
			if run.Stage != tt.expectedStage {
				t.Errorf("Stage got %s, want %s", run.Stage, tt.expectedStage)
			}
			if tt.expectedErr != "" && (run.Error == nil || run.Error.Code != tt.expectedErr) {
				t.Errorf("Recorded error got %+v, want code %s", run.Error, tt.expectedErr)
			}
			if tt.check != nil {
				tt.check(t, f, res)
			}
		})
	}
}

func TestRun_AnswersKeepQuestionOrder(t *testing.T) {
	f := newFixture()
	f.settings.MaxConcurrentLLMCalls = 5
	f.llm.OnComplete = func(ctx context.Context, prompt string) (string, error) {
		time.Sleep(time.Duration(rand.IntN(15)) * time.Millisecond)
		return "re: " + questionOf(prompt), nil
	}

	questions := make([]string, 25)
	for i := range questions {
		questions[i] = fmt.Sprintf("question number %d", i)
	}

	res, err := f.service().Run(context.Background(), rag.RunRequest{DocumentURL: "https://example.com/doc", Questions: questions})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Answers) != len(questions) {
		t.Fatalf("Got %d answers, want %d", len(res.Answers), len(questions))
	}
	for i, q := range questions {
		if res.Answers[i] != "re: "+q {
			t.Errorf("Answer %d got %q", i, res.Answers[i])
		}
	}
}

func TestRun_PartialFailureUsesFallback(t *testing.T) {
	f := newFixture()
	f.llm.OnComplete = func(ctx context.Context, prompt string) (string, error) {
		if questionOf(prompt) == "second?" {
			return "", errors.New("provider rejected the prompt")
		}
		return "ok", nil
	}

	res, err := f.service().Run(context.Background(), rag.RunRequest{RunId: "partial", DocumentURL: "https://example.com/doc", Questions: []string{"first?", "second?", "third?"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := []string{"ok", config.FallbackAnswer, "ok"}
	for i := range want {
		if res.Answers[i] != want[i] {
			t.Errorf("Answer %d got %q, want %q", i, res.Answers[i], want[i])
		}
	}
	if res.FallbackCount != 1 {
		t.Errorf("FallbackCount got %d, want 1", res.FallbackCount)
	}
	if run, _ := f.runStore.GetRun(context.Background(), "partial"); run.FallbackCount != 1 || run.Stage != runModel.StageDone {
		t.Errorf("Recorded run got %+v", run)
	}
}

func TestRun_TransientErrorRetriedOnce(t *testing.T) {
	f := newFixture()
	f.llm.OnComplete = func(ctx context.Context, prompt string) (string, error) {
		if f.llm.Calls() == 1 {
			return "", fmt.Errorf("%w: %w", llm.ErrTransient, errors.New("503"))
		}
		return "second time lucky", nil
	}

	res, err := f.service().Run(context.Background(), rag.RunRequest{DocumentURL: "https://example.com/doc", Questions: []string{"q?"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Answers[0] != "second time lucky" {
		t.Errorf("Answer got %q", res.Answers[0])
	}
	if f.llm.Calls() != 2 {
		t.Errorf("LLM calls got %d, want 2", f.llm.Calls())
	}
}

func TestRun_PermanentErrorNotRetried(t *testing.T) {
	f := newFixture()
	f.llm.OnComplete = func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("invalid api key")
	}

	res, err := f.service().Run(context.Background(), rag.RunRequest{DocumentURL: "https://example.com/doc", Questions: []string{"q?"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Answers[0] != config.FallbackAnswer {
		t.Errorf("Answer got %q", res.Answers[0])
	}
	if f.llm.Calls() != 1 {
		t.Errorf("LLM calls got %d, want 1", f.llm.Calls())
	}
}

func TestRun_TimeoutReturnsNoAnswers(t *testing.T) {
	f := newFixture()
	f.settings.RequestTimeout = 50 * time.Millisecond
	f.llm.OnComplete = func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	res, err := f.service().Run(context.Background(), rag.RunRequest{RunId: "slow", DocumentURL: "https://example.com/doc", Questions: []string{"a?", "b?"}})
	var timeoutErr *commonModels.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("Expected TimeoutError, got %v", err)
	}
	if timeoutErr.During != runModel.StageAnswering {
		t.Errorf("Timeout stage got %s", timeoutErr.During)
	}
	if res.Answers != nil {
		t.Errorf("Expected no partial answers, got %v", res.Answers)
	}
	run, _ := f.runStore.GetRun(context.Background(), "slow")
	if run.Stage != runModel.StageFailed || run.Error == nil || run.Error.Code != "timeout" {
		t.Errorf("Recorded run got %+v", run)
	}
}

func TestRun_OnWorkerPool(t *testing.T) {
	pool := worker.NewPool(worker.Options{MinWorkers: 1, MaxWorkers: 2, IdleTimeout: time.Second, Buffer: 4})
	defer pool.Stop()

	f := newFixture()
	f.runner = pool
	res, err := f.service().Run(context.Background(), rag.RunRequest{RunId: "pooled", DocumentURL: "https://example.com/doc", Questions: []string{"How long do I have to file a claim?"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Answers[0] != "mocked llm response" {
		t.Errorf("Answer got %q", res.Answers[0])
	}

	run, _ := f.runStore.GetRun(context.Background(), "pooled")
	for _, stage := range []runModel.Stage{runModel.StageFetching, runModel.StageExtracting, runModel.StageChunking, runModel.StageEmbedding, runModel.StageAnswering} {
		if _, ok := run.StageMillis[stage]; !ok {
			t.Errorf("Stage %s has no recorded duration", stage)
		}
	}
}
