package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/akolanti/docqa/internal/adapter"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/pkg/logger_i"
)

var logRH = logger_i.NewLogger("RequestHandler")

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are gone already, nothing else to send
		logRH.Error("Error encoding response", "error", err)
	}
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, code string, message string, runId string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(code, message, runId))
}

// StatusFor maps a run error onto the HTTP status the client sees.
func StatusFor(err error) int {
	var (
		fetchErr       *commonModels.FetchError
		unsupportedErr *commonModels.UnsupportedFormatError
		extractErr     *commonModels.ExtractionError
		timeoutErr     *commonModels.TimeoutError
	)
	switch {
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout
	case errors.As(err, &fetchErr):
		if errors.Is(err, commonModels.ErrDocumentTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadGateway
	case errors.As(err, &unsupportedErr):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &extractErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func traceFrom(ctx context.Context) string {
	if trace, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		return trace
	}
	return ""
}
