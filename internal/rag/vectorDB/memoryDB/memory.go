package memoryDB

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/rag/embedding"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
)

// Builder makes flat in-process indexes. It holds no state.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Name() string { return config.IndexMemory }

func (b *Builder) Build(ctx context.Context, entries []vectorDB.Entry) (vectorDB.Index, error) {
	dim, err := vectorDB.CheckDimensions(entries)
	if err != nil {
		return nil, err
	}
	idx := &index{
		dimension: dim,
		passages:  make([]commonModels.Passage, len(entries)),
		vectors:   make([][]float32, len(entries)),
	}
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v := make([]float32, len(e.Vector))
		copy(v, e.Vector)
		idx.passages[i] = e.Passage
		idx.vectors[i] = embedding.Normalize(v)
	}
	return idx, nil
}

// index is immutable after Build, so queries need no locking.
type index struct {
	dimension int
	passages  []commonModels.Passage
	vectors   [][]float32
}

func (idx *index) Len() int { return len(idx.passages) }

func (idx *index) Close(context.Context) error { return nil }

func (idx *index) Query(ctx context.Context, vector []float32, k int) ([]commonModels.Match, error) {
	if k <= 0 || len(idx.vectors) == 0 {
		return nil, nil
	}
	if len(vector) != idx.dimension {
		return nil, &commonModels.EmbeddingError{Err: fmt.Errorf("query dimension %d, index dimension %d", len(vector), idx.dimension)}
	}

	q := make([]float32, len(vector))
	copy(q, vector)
	embedding.Normalize(q)

	h := make(matchHeap, 0, k+1)
	for i, v := range idx.vectors {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		m := candidate{score: dot(q, v), order: i}
		if len(h) < k {
			heap.Push(&h, m)
			continue
		}
		if better(m, h[0]) {
			h[0] = m
			heap.Fix(&h, 0)
		}
	}

	out := make([]commonModels.Match, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		c := heap.Pop(&h).(candidate)
		out[i] = commonModels.Match{Passage: idx.passages[c.order], Score: c.score, Order: c.order}
	}
	return out, nil
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

type candidate struct {
	score float32
	order int
}

// better ranks by score, then earlier insertion.
func better(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.order < b.order
}

// matchHeap keeps the worst kept candidate at the root.
type matchHeap []candidate

func (h matchHeap) Len() int           { return len(h) }
func (h matchHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h matchHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *matchHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *matchHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
