package vectorDB

import (
	"context"
	"fmt"
	"sort"

	"github.com/akolanti/docqa/internal/domain/commonModels"
)

type Entry struct {
	Passage commonModels.Passage
	Vector  []float32
}

// Builder creates one read-only index per run. Indexes are never shared across runs.
type Builder interface {
	Build(ctx context.Context, entries []Entry) (Index, error)
	Name() string
}

// Index answers nearest neighbour queries by cosine similarity. Query is safe for
// concurrent use. Results are ordered by descending score, ties by insertion order.
type Index interface {
	Query(ctx context.Context, vector []float32, k int) ([]commonModels.Match, error)
	Len() int
	Close(ctx context.Context) error
}

// CheckDimensions returns the shared dimension of the entries or an EmbeddingError.
func CheckDimensions(entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	dim := len(entries[0].Vector)
	if dim == 0 {
		return 0, &commonModels.EmbeddingError{Err: fmt.Errorf("passage %s has an empty vector", entries[0].Passage.Id)}
	}
	for _, e := range entries[1:] {
		if len(e.Vector) != dim {
			return 0, &commonModels.EmbeddingError{
				Err: fmt.Errorf("passage %s has dimension %d, index dimension is %d", e.Passage.Id, len(e.Vector), dim),
			}
		}
	}
	return dim, nil
}

func SortMatches(matches []commonModels.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Order < matches[j].Order
	})
}
