package api

import "time"

// requests---------------------

type RunRequest struct {
	Documents string   `json:"documents" validate:"required" example:"https://example.com/policy.pdf"`
	Questions []string `json:"questions" validate:"required"`
}

// responses---------------------

type RunResponse struct {
	Answers []string `json:"answers"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code" example:"fetch_failed"`
	Message string `json:"message" example:"fetch https://example.com/policy.pdf: status 404"`
	Stage   string `json:"stage,omitempty" example:"FETCHING"`
	RunId   string `json:"run_id,omitempty"`
}

type RunStatusResponse struct {
	Id            string           `json:"id"`
	Stage         string           `json:"stage" example:"DONE"`
	DocumentURL   string           `json:"document_url"`
	DocumentKind  string           `json:"document_kind,omitempty" example:"PDF"`
	QuestionCount int              `json:"question_count"`
	PassageCount  int              `json:"passage_count"`
	AnswerCount   int              `json:"answer_count"`
	FallbackCount int              `json:"fallback_count"`
	StageMillis   map[string]int64 `json:"stage_millis,omitempty"`
	Error         *ErrorBody       `json:"error,omitempty"`
	StartTime     time.Time        `json:"start_time"`
	EndTime       *time.Time       `json:"end_time,omitempty"`
}

type HealthResponse struct {
	Status    string `json:"status" example:"healthy"`
	Service   string `json:"service,omitempty"`
	Version   string `json:"version,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}
