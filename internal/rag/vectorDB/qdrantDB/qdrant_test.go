package qdrantDB

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func hit(order int, score float32, id string) *qdrant.ScoredPoint {
	return &qdrant.ScoredPoint{
		Id:    qdrant.NewIDNum(uint64(order)),
		Score: score,
		Payload: qdrant.NewValueMap(map[string]any{
			"order":      order,
			"passage_id": id,
			"content":    "text of " + id,
			"span_start": order * 10,
			"span_end":   order*10 + 10,
		}),
	}
}

func TestMatchesFromHits_RestoresPassagesAndTieOrder(t *testing.T) {
	matches := matchesFromHits([]*qdrant.ScoredPoint{
		hit(5, 0.9, "p-5"),
		hit(2, 0.9, "p-2"),
		hit(7, 0.95, "p-7"),
	})
	require.Len(t, matches, 3)

	assert.Equal(t, "p-7", matches[0].Passage.Id)
	assert.Equal(t, "p-2", matches[1].Passage.Id)
	assert.Equal(t, "p-5", matches[2].Passage.Id)
	assert.Equal(t, "text of p-2", matches[1].Passage.Text)
	assert.Equal(t, 20, matches[1].Passage.Span.Start)
	assert.Equal(t, 2, matches[1].Order)
}

func TestClassify(t *testing.T) {
	err := classify("query", status.Error(codes.Unavailable, "down"))
	assert.Contains(t, err.Error(), "unavailable")

	err = classify("upsert", status.Error(codes.InvalidArgument, "bad dim"))
	assert.Contains(t, err.Error(), "rejected")
}
