package hashEmbedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestEmbedder_Deterministic(t *testing.T) {
	e := New(0)
	ctx := context.Background()
	text := "The grace period for premium payment is thirty days."

	first, err := e.GetEmbedding(ctx, text)
	require.NoError(t, err)
	again, err := New(0).GetEmbedding(ctx, text)
	require.NoError(t, err)

	assert.Equal(t, first, again, "same text, fresh instance, same vector")
	assert.Len(t, first, 384)
}

func TestEmbedder_BatchMatchesSingle(t *testing.T) {
	e := New(128)
	ctx := context.Background()
	texts := []string{"alpha beta", "", "policy covers dental care", "alpha beta"}

	batch, err := e.BatchEmbedding(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := e.GetEmbedding(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "position %d", i)
	}
}

func TestEmbedder_UnitLengthAndZero(t *testing.T) {
	e := New(64)
	v, _ := e.GetEmbedding(context.Background(), "hospital room rent limits")
	assert.InDelta(t, 1.0, math.Sqrt(cosine(v, v)), 1e-5)

	empty, _ := e.GetEmbedding(context.Background(), "the of and")
	for _, x := range empty {
		assert.Zero(t, x)
	}
}

func TestEmbedder_SimilarTextScoresHigher(t *testing.T) {
	e := New(0)
	ctx := context.Background()
	q, _ := e.GetEmbedding(ctx, "What is the waiting period for cataract surgery?")
	near, _ := e.GetEmbedding(ctx, "Cataract surgery has a waiting period of two years.")
	far, _ := e.GetEmbedding(ctx, "The hotel offers breakfast between seven and ten.")

	assert.Greater(t, cosine(q, near), cosine(q, far))
}

func TestEmbedder_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(0).BatchEmbedding(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
