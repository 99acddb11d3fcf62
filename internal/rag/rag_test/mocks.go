package rag_test

import (
	"context"
	"sync/atomic"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/rag/embedding/hashEmbedding"
)

// MockFetcher implements fetch.Fetcher
type MockFetcher struct {
	OnFetch func(ctx context.Context, docURL string) (commonModels.Document, error)
}

func (m *MockFetcher) Fetch(ctx context.Context, docURL string) (commonModels.Document, error) {
	if m.OnFetch != nil {
		return m.OnFetch(ctx, docURL)
	}
	return commonModels.Document{SourceURL: docURL, Kind: commonModels.TEXT, Raw: []byte("default document")}, nil
}

// MockExtractor implements rag.Extractor
type MockExtractor struct {
	OnExtract func(ctx context.Context, doc commonModels.Document) ([]commonModels.TextSegment, error)
}

func (m *MockExtractor) Extract(ctx context.Context, doc commonModels.Document) ([]commonModels.TextSegment, error) {
	if m.OnExtract != nil {
		return m.OnExtract(ctx, doc)
	}
	return []commonModels.TextSegment{{Text: string(doc.Raw), Origin: "body"}}, nil
}

// MockEmbedder falls back to the hashing embedder so retrieval still behaves.
type MockEmbedder struct {
	OnGetEmbedding   func(ctx context.Context, text string) ([]float32, error)
	OnBatchEmbedding func(ctx context.Context, texts []string) ([][]float32, error)
}

var fallbackEmbedder = hashEmbedding.New(64)

func (m *MockEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, text)
	}
	return fallbackEmbedder.GetEmbedding(ctx, text)
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if m.OnBatchEmbedding != nil {
		return m.OnBatchEmbedding(ctx, texts)
	}
	return fallbackEmbedder.BatchEmbedding(ctx, texts)
}

func (m *MockEmbedder) Dimension() int { return fallbackEmbedder.Dimension() }
func (m *MockEmbedder) Name() string   { return "mock" }

// MockLLM implements llm.Provider and counts calls.
type MockLLM struct {
	OnComplete func(ctx context.Context, prompt string) (string, error)
	calls      atomic.Int64
}

func (m *MockLLM) Complete(ctx context.Context, prompt string) (string, error) {
	m.calls.Add(1)
	if m.OnComplete != nil {
		return m.OnComplete(ctx, prompt)
	}
	return "mocked llm response", nil
}

func (m *MockLLM) Calls() int64 { return m.calls.Load() }
