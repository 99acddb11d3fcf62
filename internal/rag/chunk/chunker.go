package chunk

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
)

// Chunker cuts normalized document text into overlapping token windows.
// A token is a run of non-whitespace plus the normalized whitespace after it.
type Chunker struct {
	size    int
	overlap int
}

type Option func(*Chunker)

func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:    config.DefaultChunkSize,
		overlap: config.DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the passages of the segments in reading order. A text shorter than
// one window gives exactly one passage and text with no content gives none.
func (c *Chunker) Split(segments []commonModels.TextSegment) []commonModels.Passage {
	tokens := Tokenize(Normalize(segments))
	if len(tokens) == 0 {
		return nil
	}

	stride := c.size - c.overlap
	passages := make([]commonModels.Passage, 0, len(tokens)/stride+1)
	for start := 0; ; start += stride {
		end := min(start+c.size, len(tokens))
		passages = append(passages, commonModels.Passage{
			Id:   "p-" + strconv.Itoa(len(passages)),
			Text: strings.TrimRightFunc(strings.Join(tokens[start:end], ""), unicode.IsSpace),
			Span: commonModels.TokenSpan{Start: start, End: end},
		})
		if end == len(tokens) {
			break
		}
	}
	return passages
}

// Normalize joins the segments with blank lines and collapses every whitespace run
// to "\n\n" when it holds a blank line, "\n" when it holds a line break, " " otherwise.
func Normalize(segments []commonModels.TextSegment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return normalizeText(strings.Join(parts, "\n\n"))
}

func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	newlines := 0
	inSpace := false
	flushSpace := func() {
		switch {
		case newlines >= 2:
			b.WriteString("\n\n")
		case newlines == 1:
			b.WriteByte('\n')
		default:
			b.WriteByte(' ')
		}
		newlines = 0
		inSpace = false
	}

	runes := []rune(text)
	for i, r := range runes {
		if unicode.IsSpace(r) {
			inSpace = true
			if r == '\n' || (r == '\r' && (i+1 == len(runes) || runes[i+1] != '\n')) {
				newlines++
			}
			continue
		}
		if inSpace {
			if b.Len() > 0 {
				flushSpace()
			} else {
				newlines, inSpace = 0, false
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Tokenize splits normalized text. Concatenating the tokens gives the text back.
func Tokenize(normalized string) []string {
	var tokens []string
	start := 0
	inSpace := false
	for i, r := range normalized {
		space := unicode.IsSpace(r)
		if !space && inSpace {
			tokens = append(tokens, normalized[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(normalized) {
		tokens = append(tokens, normalized[start:])
	}
	return tokens
}

func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// TruncateTokens keeps the first n tokens of text, whitespace normalized.
func TruncateTokens(text string, n int) string {
	if n <= 0 {
		return ""
	}
	tokens := Tokenize(normalizeText(text))
	if len(tokens) <= n {
		return strings.Join(tokens, "")
	}
	return strings.TrimRightFunc(strings.Join(tokens[:n], ""), unicode.IsSpace)
}
