package embedding

import (
	"context"
	"math"
)

// Embedder maps text to fixed-width vectors. Passages and questions go through the
// same function, and BatchEmbedding(texts)[i] equals GetEmbedding(texts[i]).
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Name() string
}

// Normalize scales v to unit length in place. Zero vectors are left as they are.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

// Batches splits texts into consecutive slices of at most size entries.
func Batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = len(texts)
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		out = append(out, texts[start:min(start+size, len(texts))])
	}
	return out
}
