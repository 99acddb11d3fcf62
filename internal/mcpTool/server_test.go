package mcpTool

import (
	"context"
	"errors"
	"testing"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/runModel"
	"github.com/akolanti/docqa/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	err error
	got rag.RunRequest
}

func (m *mockService) Run(ctx context.Context, req rag.RunRequest) (rag.RunResult, error) {
	m.got = req
	if m.err != nil {
		return rag.RunResult{}, m.err
	}
	return rag.RunResult{RunId: req.RunId, Answers: []string{"30 days"}}, nil
}

func (m *mockService) Status(context.Context, string) (runModel.Run, bool) {
	return runModel.Run{}, false
}

func TestServer_handleAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answers", func(t *testing.T) {
		svc := &mockService{}
		s := NewServer(svc, 5)

		_, out, err := s.handleAnswer(ctx, nil, AnswerInput{Documents: "https://example.com/p.pdf", Questions: []string{" grace period? "}})
		require.NoError(t, err)
		assert.Equal(t, []string{"30 days"}, out.Answers)
		assert.NotEmpty(t, out.RunId)
		assert.Equal(t, []string{"grace period?"}, svc.got.Questions)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		s := NewServer(&mockService{}, 5)
		_, _, err := s.handleAnswer(ctx, nil, AnswerInput{Documents: "https://example.com/p.pdf"})
		require.Error(t, err)
	})

	t.Run("returns run errors", func(t *testing.T) {
		s := NewServer(&mockService{err: &commonModels.FetchError{URL: "u", Err: errors.New("dns")}}, 5)
		_, _, err := s.handleAnswer(ctx, nil, AnswerInput{Documents: "https://example.com/p.pdf", Questions: []string{"q?"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dns")
	})

	t.Run("handler is built", func(t *testing.T) {
		assert.NotNil(t, NewServer(&mockService{}, 5).Handler())
	})
}
