package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/customHttpClient"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/pkg/logger_i"
)

type Fetcher interface {
	Fetch(ctx context.Context, docURL string) (commonModels.Document, error)
}

type Options struct {
	MaxBytes     int64
	Timeout      time.Duration
	RetryBackoff time.Duration
	// Client overrides the pooled client, mostly for tests.
	Client *http.Client
}

type fetcher struct {
	client       *http.Client
	maxBytes     int64
	retryBackoff time.Duration
	logger       *logger_i.Logger
}

func NewFetcher(opts Options) Fetcher {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = config.DefaultMaxDocumentBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultFetchTimeout
	}
	client := opts.Client
	if client == nil {
		client = customHttpClient.NewClient(opts.Timeout)
	}
	return &fetcher{
		client:       client,
		maxBytes:     opts.MaxBytes,
		retryBackoff: opts.RetryBackoff,
		logger:       logger_i.NewLogger("Fetcher"),
	}
}

// transientError marks failures worth one more attempt.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func (f *fetcher) Fetch(ctx context.Context, docURL string) (commonModels.Document, error) {
	log := f.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	u, err := url.Parse(docURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return commonModels.Document{}, &commonModels.FetchError{URL: docURL, Err: errors.New("url must be absolute http or https")}
	}

	start := time.Now()
	raw, contentType, status, err := f.download(ctx, docURL)
	var transient *transientError
	if errors.As(err, &transient) && ctx.Err() == nil {
		log.Warn("fetch failed, retrying once", "url", docURL, "error", err, "backoff", f.retryBackoff)
		select {
		case <-ctx.Done():
			return commonModels.Document{}, &commonModels.FetchError{URL: docURL, Status: status, Err: ctx.Err()}
		case <-time.After(f.retryBackoff):
		}
		raw, contentType, status, err = f.download(ctx, docURL)
	}
	metrics.CaptureExecutionMetrics("Fetch", time.Since(start))
	if err != nil {
		if errors.As(err, &transient) {
			err = transient.err
		}
		return commonModels.Document{}, &commonModels.FetchError{URL: docURL, Status: status, Err: err}
	}

	kind := DetectKind(contentType, u, raw)
	log.Info("document fetched", "url", docURL, "bytes", len(raw), "kind", kind, "contentType", contentType)
	return commonModels.Document{
		SourceURL:   docURL,
		Raw:         raw,
		Kind:        kind,
		ContentType: contentType,
	}, nil
}

func (f *fetcher) download(ctx context.Context, docURL string) ([]byte, string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, "", 0, err
	}
	req.Header.Set("User-Agent", "docqa/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", 0, ctx.Err()
		}
		return nil, "", 0, &transientError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("unexpected status %s", resp.Status)
		if isTransientStatus(resp.StatusCode) {
			return nil, "", resp.StatusCode, &transientError{err: err}
		}
		return nil, "", resp.StatusCode, err
	}
	if resp.ContentLength > f.maxBytes {
		return nil, "", resp.StatusCode, fmt.Errorf("%w: content length %d > %d", commonModels.ErrDocumentTooLarge, resp.ContentLength, f.maxBytes)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", resp.StatusCode, ctx.Err()
		}
		return nil, "", resp.StatusCode, &transientError{err: err}
	}
	if int64(len(raw)) > f.maxBytes {
		return nil, "", resp.StatusCode, fmt.Errorf("%w: more than %d bytes", commonModels.ErrDocumentTooLarge, f.maxBytes)
	}
	return raw, resp.Header.Get("Content-Type"), resp.StatusCode, nil
}

func isTransientStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}
