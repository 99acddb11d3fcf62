package hashEmbedding

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/cespare/xxhash/v2"
)

// Embedder is a local feature-hashing embedder. It needs no network and no corpus,
// and it is safe for concurrent use since nothing is mutated after construction.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = config.HashEmbeddingDimension
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’.,][\p{L}\p{N}]+)*`),
		stopwords:    defaultStopwords(),
	}
}

var _ embedding.Embedder = (*Embedder)(nil)

func (e *Embedder) Name() string   { return config.EmbedderHash }
func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

func (e *Embedder) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *Embedder) embed(text string) []float32 {
	counts := make(map[string]int)
	terms := e.terms(text)
	for i, t := range terms {
		counts[t]++
		if i > 0 {
			counts[terms[i-1]+" "+t]++
		}
	}

	// fixed order so float sums are reproducible
	features := make([]string, 0, len(counts))
	for f := range counts {
		features = append(features, f)
	}
	sort.Strings(features)

	vec := make([]float32, e.dimension)
	for _, f := range features {
		h := xxhash.Sum64String(f)
		weight := float32(1 + math.Log(float64(counts[f])))
		if h>>63 == 1 {
			weight = -weight
		}
		vec[h%uint64(e.dimension)] += weight
	}
	return embedding.Normalize(vec)
}

func (e *Embedder) terms(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "been", "but", "by", "can", "do", "does",
		"for", "from", "has", "have", "how", "i", "if", "in", "into", "is", "it", "its",
		"of", "on", "or", "so", "such", "than", "that", "the", "their", "then", "there",
		"these", "they", "this", "to", "was", "were", "what", "when", "where", "which",
		"while", "who", "will", "with", "would", "you", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
