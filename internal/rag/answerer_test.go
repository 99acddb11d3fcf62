package rag

import (
	"strings"
	"testing"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/rag/chunk"
	"github.com/stretchr/testify/assert"
)

func match(text string, score float32, order int) commonModels.Match {
	return commonModels.Match{Passage: commonModels.Passage{Id: "p", Text: text}, Score: score, Order: order}
}

func TestSelectPassages(t *testing.T) {
	matches := []commonModels.Match{match("a", 0.9, 0), match("b", 0.5, 1), match("c", 0.2, 2)}

	got := selectPassages(matches, 0.3, 5)
	assert.Len(t, got, 2, "low scoring passage dropped")

	low := []commonModels.Match{match("a", 0.2, 0), match("b", 0.1, 1), match("c", 0.05, 2)}
	got = selectPassages(low, 0.3, 2)
	assert.Equal(t, []string{"a", "b"}, []string{got[0].Passage.Text, got[1].Passage.Text}, "falls back to best matches")

	assert.Empty(t, selectPassages(nil, 0.3, 5))
}

func TestAssembleContext(t *testing.T) {
	first := strings.Repeat("alpha ", 10)
	second := strings.Repeat("beta ", 10)

	got := assembleContext([]commonModels.Match{match(first, 1, 0), match(second, 0.9, 1)}, 100)
	assert.Equal(t, first+contextSeparator+second, got)

	got = assembleContext([]commonModels.Match{match(first, 1, 0), match(second, 0.9, 1)}, 15)
	assert.NotContains(t, got, "beta", "second passage does not fit")

	got = assembleContext([]commonModels.Match{match(first, 1, 0)}, 4)
	assert.Equal(t, 4, chunk.CountTokens(got), "first passage truncated to the budget")
}
