package commonModels

import (
	"errors"
	"fmt"

	"github.com/akolanti/docqa/internal/domain/runModel"
)

var ErrDocumentTooLarge = errors.New("document exceeds the configured size limit")

// StagedError is implemented by every pipeline error so callers can report where a run failed.
type StagedError interface {
	error
	Stage() runModel.Stage
}

type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error         { return e.Err }
func (e *FetchError) Stage() runModel.Stage { return runModel.StageFetching }

type UnsupportedFormatError struct {
	Kind        DocKind
	ContentType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document format (kind %s, content type %q)", e.Kind, e.ContentType)
}

func (e *UnsupportedFormatError) Unwrap() error         { return nil }
func (e *UnsupportedFormatError) Stage() runModel.Stage { return runModel.StageExtracting }

type ExtractionError struct {
	Kind DocKind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error         { return e.Err }
func (e *ExtractionError) Stage() runModel.Stage { return runModel.StageExtracting }

type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string         { return "embedding: " + e.Err.Error() }
func (e *EmbeddingError) Unwrap() error         { return e.Err }
func (e *EmbeddingError) Stage() runModel.Stage { return runModel.StageEmbedding }

// AnswerError is scoped to one question. It never fails the run.
type AnswerError struct {
	Position int
	Err      error
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("answer question %d: %v", e.Position, e.Err)
}

func (e *AnswerError) Unwrap() error         { return e.Err }
func (e *AnswerError) Stage() runModel.Stage { return runModel.StageAnswering }

type TimeoutError struct {
	During runModel.Stage
	Err    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out during %s: %v", e.During, e.Err)
}

func (e *TimeoutError) Unwrap() error         { return e.Err }
func (e *TimeoutError) Stage() runModel.Stage { return e.During }

// ErrorCode is the short machine-readable name used in responses and run records.
func ErrorCode(err error) string {
	var (
		fetchErr       *FetchError
		unsupportedErr *UnsupportedFormatError
		extractErr     *ExtractionError
		embedErr       *EmbeddingError
		answerErr      *AnswerError
		timeoutErr     *TimeoutError
	)
	switch {
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &fetchErr):
		if errors.Is(err, ErrDocumentTooLarge) {
			return "document_too_large"
		}
		return "fetch_failed"
	case errors.As(err, &unsupportedErr):
		return "unsupported_format"
	case errors.As(err, &extractErr):
		return "extraction_failed"
	case errors.As(err, &embedErr):
		return "embedding_failed"
	case errors.As(err, &answerErr):
		return "answer_failed"
	default:
		return "internal"
	}
}
