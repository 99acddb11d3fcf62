package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/akolanti/docqa/internal/adapter"
	"github.com/akolanti/docqa/internal/adapter/utils"
	"github.com/akolanti/docqa/internal/api"
	"github.com/akolanti/docqa/internal/rag"
	"github.com/akolanti/docqa/pkg/logger_i"
)

const maxRequestBodyBytes = 1 << 20

type RunHandler struct {
	service      rag.Service
	maxQuestions int
	logger       *logger_i.Logger
}

func NewRunHandler(service rag.Service, maxQuestions int) *RunHandler {
	return &RunHandler{
		service:      service,
		maxQuestions: maxQuestions,
		logger:       logger_i.NewLogger("RunHandler"),
	}
}

// Run godoc
// @Summary      Answer questions about a document
// @Description  Downloads the document, indexes it for this request only and answers every question in order.
// @Tags         Run
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.RunRequest     true  "Document URL and questions"
// @Success      200      {object}  api.RunResponse    "One answer per question, same order"
// @Failure      401      {object}  api.ErrorResponse  "Missing or invalid bearer token"
// @Failure      413      {object}  api.ErrorResponse  "Document larger than the configured ceiling"
// @Failure      415      {object}  api.ErrorResponse  "Unsupported document format"
// @Failure      422      {object}  api.ErrorResponse  "Invalid request or unreadable document"
// @Failure      502      {object}  api.ErrorResponse  "Document could not be downloaded"
// @Failure      504      {object}  api.ErrorResponse  "Request timed out"
// @Router       /hackrx/run [post]
func (h *RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	// run ids are always minted here, the client trace id is only for log correlation
	runId := utils.GetNewUUID()
	log := h.logger.With("traceId", traceFrom(r.Context()), "runId", runId)
	w.Header().Set("X-Run-Id", runId)

	var requestData api.RunRequest
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Error("Couldn't close the run request reader", "error", err)
		}
	}(r.Body)

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(&requestData); err != nil {
		log.Warn("Bad run request", "error", err)
		WriteErrorResponse(w, http.StatusUnprocessableEntity, "invalid_request", "request body must be JSON with documents and questions", runId)
		return
	}

	runRequest, err := adapter.ToRagRequest(requestData, runId, h.maxQuestions)
	if err != nil {
		log.Warn("Invalid run request", "error", err)
		WriteErrorResponse(w, http.StatusUnprocessableEntity, "invalid_request", err.Error(), runId)
		return
	}

	start := time.Now()
	result, err := h.service.Run(r.Context(), runRequest)
	if err != nil {
		status := StatusFor(err)
		log.Error("Run failed", "status", status, "error", err, "elapsed", time.Since(start))
		writeJsonResponse(w, status, adapter.ToErrorResponse(err, runId))
		return
	}

	log.Info("Run answered", "questions", len(result.Answers), "fallbacks", result.FallbackCount, "elapsed", time.Since(start))
	writeJsonResponse(w, http.StatusOK, adapter.ToRunResponse(result.Answers))
}

// GetRunStatus godoc
// @Summary      Get run status
// @Description  Returns the recorded stage, timings and counts of a run.
// @Tags         Run
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Run ID"
// @Success      200  {object}  api.RunStatusResponse  "The recorded run"
// @Failure      404  {object}  api.ErrorResponse      "Run not found"
// @Router       /runs/{id} [get]
func (h *RunHandler) GetRunStatus(w http.ResponseWriter, r *http.Request) {
	id := utils.GetChiURLParam(r, "id")
	if id == "" {
		WriteErrorResponse(w, http.StatusNotFound, "not_found", "run not found", id)
		return
	}

	run, found := h.service.Status(r.Context(), id)
	if !found {
		h.logger.Debug("Run not found", "runId", id)
		WriteErrorResponse(w, http.StatusNotFound, "not_found", "run not found", id)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToRunStatusResponse(run))
}
