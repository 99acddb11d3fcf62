package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/dslipak/pdf"
)

type pdfExtractor struct {
	pageTimeout time.Duration
	logger      *logger_i.Logger
}

// pageBlock is a run of prose lines or one table, in page order.
type pageBlock struct {
	text  string
	table bool
}

func (p *pdfExtractor) Extract(ctx context.Context, raw []byte) (segments []commonModels.TextSegment, err error) {
	if len(raw) == 0 {
		return nil, errEmptyPayload(commonModels.PDF)
	}

	// the reader panics on some malformed trailers
	defer func() {
		if r := recover(); r != nil {
			segments, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := reader.NumPage()
	p.logger.Debug("extractPDF", "number of pages", numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			segments = append(segments, commonModels.TextSegment{Origin: "page " + strconv.Itoa(i)})
			continue
		}
		segments = append(segments, p.extractPage(i, func() ([]pageBlock, error) {
			return readPage(page, i)
		})...)
	}
	return segments, nil
}

// extractPage turns one page into segments in reading order. A page that fails,
// panics or times out yields a single empty segment so page numbering stays intact.
func (p *pdfExtractor) extractPage(pageNum int, read func() ([]pageBlock, error)) []commonModels.TextSegment {
	origin := "page " + strconv.Itoa(pageNum)
	blocks, err := p.protectExtract(read)
	if err != nil {
		p.logger.Warn("page skipped", "page", pageNum, "error", err)
		return []commonModels.TextSegment{{Origin: origin}}
	}

	var segments []commonModels.TextSegment
	tables := 0
	for _, b := range blocks {
		if !b.table {
			segments = append(segments, commonModels.TextSegment{Text: b.text, Origin: origin})
			continue
		}
		tables++
		segments = append(segments, commonModels.TextSegment{
			Text:   b.text,
			Origin: fmt.Sprintf("table %d page %d", tables, pageNum),
		})
	}
	if len(segments) == 0 {
		return []commonModels.TextSegment{{Origin: origin}}
	}
	return segments
}

// protectExtract bounds the work on one page: content streams can loop or panic.
func (p *pdfExtractor) protectExtract(read func() ([]pageBlock, error)) ([]pageBlock, error) {
	type result struct {
		blocks []pageBlock
		err    error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{err: fmt.Errorf("panic while reading page: %v", r)}
			}
		}()
		blocks, err := read()
		resChan <- result{blocks, err}
	}()

	timer := time.NewTimer(p.pageTimeout)
	defer timer.Stop()
	select {
	case r := <-resChan:
		return r.blocks, r.err
	case <-timer.C:
		return nil, errors.New("page extraction timed out")
	}
}

func readPage(page pdf.Page, pageNum int) ([]pageBlock, error) {
	texts := page.Content().Text
	if len(texts) == 0 {
		return nil, nil
	}

	// without glyph widths positions cannot be trusted, fall back to plain text
	if !hasWidths(texts) {
		plain, err := page.GetPlainText(nil)
		if err != nil {
			return nil, err
		}
		if plain = strings.TrimSpace(plain); plain == "" {
			return nil, nil
		}
		return []pageBlock{{text: plain}}, nil
	}

	return renderLines(layoutLines(texts), pageNum), nil
}

func hasWidths(texts []pdf.Text) bool {
	for _, t := range texts {
		if t.W > 0 {
			return true
		}
	}
	return false
}
