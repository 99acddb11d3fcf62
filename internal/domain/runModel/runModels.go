package runModel

import (
	"context"
	"time"
)

type Stage string

const (
	StageFetching   Stage = "FETCHING"
	StageExtracting Stage = "EXTRACTING"
	StageChunking   Stage = "CHUNKING"
	StageEmbedding  Stage = "EMBEDDING"
	StageIndexReady Stage = "INDEX_READY"
	StageAnswering  Stage = "ANSWERING"
	StageDone       Stage = "DONE"
	StageFailed     Stage = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

type Run struct {
	Id            string          `json:"id"`
	TraceId       string          `json:"trace_id"`
	DocumentURL   string          `json:"document_url"`
	DocumentKind  string          `json:"document_kind,omitempty"`
	QuestionCount int             `json:"question_count"`
	PassageCount  int             `json:"passage_count"`
	AnswerCount   int             `json:"answer_count"`
	FallbackCount int             `json:"fallback_count"`
	Stage         Stage           `json:"stage"`
	StageMillis   map[Stage]int64 `json:"stage_millis,omitempty"`
	Error         *RunError       `json:"error,omitempty"`
	CreatedTime   time.Time       `json:"created_time"`
	EndTime       time.Time       `json:"end_time,omitempty"`
}

type RunError struct {
	Code    string `json:"code"`
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

type RunStore interface {
	GetRun(ctx context.Context, runId string) (Run, bool)
	SaveRun(ctx context.Context, run Run) error
	DeleteRun(ctx context.Context, runId string)
}
