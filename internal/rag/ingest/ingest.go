package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/pkg/logger_i"
)

// Extractor turns one kind of raw payload into ordered text segments.
type Extractor interface {
	Extract(ctx context.Context, raw []byte) ([]commonModels.TextSegment, error)
}

// Registry maps a document kind to its extractor. The set is closed and built by NewRegistry.
type Registry struct {
	extractors map[commonModels.DocKind]Extractor
	logger     *logger_i.Logger
}

func NewRegistry() *Registry {
	r := &Registry{
		extractors: make(map[commonModels.DocKind]Extractor, 4),
		logger:     logger_i.NewLogger("Document Extraction"),
	}
	r.extractors[commonModels.PDF] = &pdfExtractor{pageTimeout: config.PageExtractTimeout, logger: r.logger}
	r.extractors[commonModels.DOCX] = &docxExtractor{}
	r.extractors[commonModels.TEXT] = &textExtractor{}
	r.extractors[commonModels.EMAIL] = &emailExtractor{attachments: r}
	return r
}

// Extract dispatches on doc.Kind. Unknown kinds give an UnsupportedFormatError and
// payloads the extractor cannot parse give an ExtractionError.
func (r *Registry) Extract(ctx context.Context, doc commonModels.Document) ([]commonModels.TextSegment, error) {
	log := r.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "kind", doc.Kind)

	ex, ok := r.extractors[doc.Kind]
	if !ok {
		return nil, &commonModels.UnsupportedFormatError{Kind: doc.Kind, ContentType: doc.ContentType}
	}

	start := time.Now()
	segments, err := ex.Extract(ctx, doc.Raw)
	metrics.CaptureExecutionMetrics("Extract"+string(doc.Kind), time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var unsupported *commonModels.UnsupportedFormatError
		if errors.As(err, &unsupported) {
			return nil, err
		}
		log.Error("extraction failed", "error", err)
		return nil, &commonModels.ExtractionError{Kind: doc.Kind, Err: err}
	}

	log.Debug("document extracted", "segments", len(segments), "took", time.Since(start))
	return segments, nil
}

func (r *Registry) supports(kind commonModels.DocKind) bool {
	_, ok := r.extractors[kind]
	return ok
}

func errEmptyPayload(kind commonModels.DocKind) error {
	return fmt.Errorf("empty %s payload", kind)
}
