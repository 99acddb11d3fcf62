package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/lu4p/cat"
)

// textExtractor covers plain text, rtf and odt. cat works on files, so the
// payload goes through a temp file unless it is already valid utf-8 text.
type textExtractor struct{}

func (t *textExtractor) Extract(ctx context.Context, raw []byte) ([]commonModels.TextSegment, error) {
	if len(raw) == 0 {
		return nil, errEmptyPayload(commonModels.TEXT)
	}
	if isPlainText(raw) {
		return []commonModels.TextSegment{{Text: string(raw), Origin: "text"}}, nil
	}

	f, err := os.CreateTemp("", "docqa-*"+textExtension(raw))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(raw); err != nil {
		f.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	text, err := cat.File(f.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}
	return []commonModels.TextSegment{{Text: text, Origin: "text"}}, nil
}

func isPlainText(raw []byte) bool {
	return utf8.Valid(raw) && !strings.HasPrefix(string(raw[:min(len(raw), 5)]), "{\\rtf")
}

func textExtension(raw []byte) string {
	switch {
	case strings.HasPrefix(string(raw[:min(len(raw), 5)]), "{\\rtf"):
		return ".rtf"
	case len(raw) > 4 && string(raw[:4]) == "PK\x03\x04":
		return ".odt"
	default:
		return ".txt"
	}
}
