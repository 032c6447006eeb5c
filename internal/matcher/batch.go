package matcher

import (
	"context"
	"fmt"
	"iter"

	"github.com/hupe1980/vecmatch/matrix"
)

// Source supplies bounded slices of a target embedding matrix.
type Source interface {
	Len() int
	EmbeddingsRange(ctx context.Context, lo, hi int) (*matrix.Dense, error)
}

// Batch is one chunk of target embeddings starting at target row Offset.
type Batch struct {
	Offset     int
	Embeddings *matrix.Dense
}

// Batches returns a lazy sequence of consecutive chunks of at most size
// rows covering src. Every call returns a fresh sequence, so iteration can
// be restarted. The sequence stops after yielding the first error.
func Batches(ctx context.Context, src Source, size int) iter.Seq2[Batch, error] {
	return func(yield func(Batch, error) bool) {
		if size <= 0 {
			yield(Batch{}, fmt.Errorf("batch size must be positive, got %d", size))
			return
		}
		n := src.Len()
		for lo := 0; lo < n; lo += size {
			if err := ctx.Err(); err != nil {
				yield(Batch{}, err)
				return
			}
			hi := min(lo+size, n)
			emb, err := src.EmbeddingsRange(ctx, lo, hi)
			if err != nil {
				yield(Batch{}, fmt.Errorf("batch [%d, %d): %w", lo, hi, err))
				return
			}
			if !yield(Batch{Offset: lo, Embeddings: emb}, nil) {
				return
			}
		}
	}
}
