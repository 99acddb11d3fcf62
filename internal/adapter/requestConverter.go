package adapter

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/akolanti/docqa/internal/api"
	"github.com/akolanti/docqa/internal/rag"
)

var (
	ErrMissingDocument = errors.New("documents must be an http(s) URL")
	ErrNoQuestions     = errors.New("questions must not be empty")
	ErrBlankQuestion   = errors.New("questions must not contain blank entries")
)

// ToRagRequest validates an incoming request and maps it onto a run.
func ToRagRequest(req api.RunRequest, runId string, maxQuestions int) (rag.RunRequest, error) {
	docURL := strings.TrimSpace(req.Documents)
	u, err := url.Parse(docURL)
	if docURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return rag.RunRequest{}, ErrMissingDocument
	}
	if len(req.Questions) == 0 {
		return rag.RunRequest{}, ErrNoQuestions
	}
	if maxQuestions > 0 && len(req.Questions) > maxQuestions {
		return rag.RunRequest{}, fmt.Errorf("at most %d questions are accepted, got %d", maxQuestions, len(req.Questions))
	}
	questions := make([]string, len(req.Questions))
	for i, q := range req.Questions {
		q = strings.TrimSpace(q)
		if q == "" {
			return rag.RunRequest{}, fmt.Errorf("%w (position %d)", ErrBlankQuestion, i)
		}
		questions[i] = q
	}
	return rag.RunRequest{RunId: runId, DocumentURL: docURL, Questions: questions}, nil
}
