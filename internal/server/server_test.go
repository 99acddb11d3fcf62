package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/akolanti/docqa/internal/api"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/data/store"
	"github.com/akolanti/docqa/internal/rag"
	"github.com/akolanti/docqa/internal/rag/chunk"
	"github.com/akolanti/docqa/internal/rag/embedding/hashEmbedding"
	"github.com/akolanti/docqa/internal/rag/fetch"
	"github.com/akolanti/docqa/internal/rag/ingest"
	"github.com/akolanti/docqa/internal/rag/vectorDB/memoryDB"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const policy = `Hospital room charges are covered up to a daily limit of $500 for each insured person.

Claims must be submitted within 30 days of discharge from the hospital.

Cosmetic surgery is excluded from coverage under every plan.`

// contextLLM answers from the prompt context only, like a well behaved model would.
type contextLLM struct{}

func (contextLLM) Complete(ctx context.Context, prompt string) (string, error) {
	_, question, _ := strings.Cut(prompt, "Question: ")
	switch {
	case strings.Contains(question, "limit") && strings.Contains(prompt, "$500"):
		return "Answer: The daily limit is $500.", nil
	case strings.Contains(question, "submitted") && strings.Contains(prompt, "30 days"):
		return "Claims must be submitted within 30 days.", nil
	default:
		return "The document does not say.", nil
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *httptest.Server) {
	t.Helper()
	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/policy.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(policy))
	}))
	t.Cleanup(docServer.Close)

	settings := config.Default()
	settings.Server.AuthToken = "test-token"
	settings.Server.RateLimit = 0
	settings.Pipeline.ChunkSize = 20
	settings.Pipeline.ChunkOverlap = 4

	service := rag.NewService(rag.Dependencies{
		Settings:  settings.Pipeline,
		Fetcher:   fetch.NewFetcher(fetch.Options{MaxBytes: settings.Pipeline.MaxDocumentBytes, Timeout: settings.Pipeline.FetchTimeout, Client: docServer.Client()}),
		Extractor: ingest.NewRegistry(),
		Splitter:  chunk.New(chunk.WithChunkSize(settings.Pipeline.ChunkSize), chunk.WithOverlap(settings.Pipeline.ChunkOverlap)),
		Embedder:  hashEmbedding.New(config.HashEmbeddingDimension),
		Builder:   memoryDB.NewBuilder(),
		LLM:       contextLLM{},
		RunStore:  store.InitInMemoryRunStore(),
	})

	apiServer := httptest.NewServer(NewRouter(service, settings))
	t.Cleanup(apiServer.Close)
	return apiServer, docServer
}

func post(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestRun_EndToEnd(t *testing.T) {
	apiServer, docServer := newTestServer(t)

	body := api.RunRequest{
		Documents: docServer.URL + "/policy.txt",
		Questions: []string{
			"What is the daily limit for hospital room charges?",
			"When must claims be submitted?",
		},
	}
	res := post(t, apiServer.URL+"/hackrx/run", "test-token", body)
	require.Equal(t, http.StatusOK, res.StatusCode)

	runId := res.Header.Get("X-Run-Id")
	require.NotEmpty(t, runId)

	var out api.RunResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.Len(t, out.Answers, 2)
	assert.Contains(t, out.Answers[0], "$500")
	assert.Contains(t, out.Answers[1], "30 days")

	statusReq, err := http.NewRequest(http.MethodGet, apiServer.URL+"/runs/"+runId, nil)
	require.NoError(t, err)
	statusReq.Header.Set("Authorization", "Bearer test-token")
	statusRes, err := http.DefaultClient.Do(statusReq)
	require.NoError(t, err)
	defer statusRes.Body.Close()
	require.Equal(t, http.StatusOK, statusRes.StatusCode)

	var run api.RunStatusResponse
	require.NoError(t, json.NewDecoder(statusRes.Body).Decode(&run))
	assert.Equal(t, "DONE", run.Stage)
	assert.Equal(t, "TEXT", run.DocumentKind)
	assert.Equal(t, 2, run.AnswerCount)
	assert.Greater(t, run.PassageCount, 0)
}

func TestRun_VersionedAliasAndErrors(t *testing.T) {
	apiServer, docServer := newTestServer(t)

	t.Run("alias route", func(t *testing.T) {
		res := post(t, apiServer.URL+"/api/v1/hackrx/run", "test-token", api.RunRequest{Documents: docServer.URL + "/policy.txt", Questions: []string{"Is cosmetic surgery covered?"}})
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("unauthorized", func(t *testing.T) {
		res := post(t, apiServer.URL+"/hackrx/run", "wrong", api.RunRequest{Documents: docServer.URL + "/policy.txt", Questions: []string{"q?"}})
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("missing document", func(t *testing.T) {
		res := post(t, apiServer.URL+"/hackrx/run", "test-token", api.RunRequest{Documents: docServer.URL + "/gone.pdf", Questions: []string{"q?"}})
		assert.Equal(t, http.StatusBadGateway, res.StatusCode)

		var out api.ErrorResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
		assert.Equal(t, "fetch_failed", out.Error.Code)
		assert.Equal(t, "FETCHING", out.Error.Stage)
		assert.Equal(t, res.Header.Get("X-Run-Id"), out.Error.RunId)
	})

	t.Run("empty questions", func(t *testing.T) {
		res := post(t, apiServer.URL+"/hackrx/run", "test-token", api.RunRequest{Documents: docServer.URL + "/policy.txt"})
		assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	})
}

func TestHealthRoutes(t *testing.T) {
	apiServer, _ := newTestServer(t)
	for _, path := range []string{"/", "/health", "/metrics"} {
		res, err := http.Get(apiServer.URL + path)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
	}
}
