package collection

import (
	"context"
	"errors"

	"github.com/hupe1980/vecmatch/matrix"
	"github.com/hupe1980/vecmatch/model"
)

var (
	// ErrInvalidEmbeddingType is returned when a collection's embeddings are
	// not a uniform dense float32 array.
	ErrInvalidEmbeddingType = errors.New("collection: embeddings are not a uniform float32 array")
	// ErrOutOfRange is returned for positions or slices outside [0, Len()).
	ErrOutOfRange = errors.New("collection: index out of range")
	// ErrDuplicateID is returned when two records share an id.
	ErrDuplicateID = errors.New("collection: duplicate id")
)

// Collection is an ordered sequence of records as seen by the matcher.
//
// Implementations must be safe for concurrent reads.
type Collection interface {
	// Len returns the number of records.
	Len() int
	// Contains reports whether a record with the given id exists.
	Contains(id string) bool
	// ID returns the id of the record at position i without hydrating it.
	ID(ctx context.Context, i int) (string, error)
	// Record returns the record at position i.
	Record(ctx context.Context, i int) (*model.Record, error)
	// Dim returns the embedding dimension. It fails with
	// ErrInvalidEmbeddingType unless every record has a dense float32
	// embedding of the same length. An empty collection has dimension 0.
	Dim() (int, error)
	// Embeddings returns the stacked [Len, Dim] embedding matrix.
	Embeddings(ctx context.Context) (*matrix.Dense, error)
	// EmbeddingsRange returns the embeddings of rows [lo, hi) without
	// hydrating records.
	EmbeddingsRange(ctx context.Context, lo, hi int) (*matrix.Dense, error)
}

// SparseCollection is implemented by collections that can stack their
// embeddings as a CSR matrix.
type SparseCollection interface {
	Collection
	SparseEmbeddings(ctx context.Context) (*matrix.Sparse, error)
}

func checkRange(lo, hi, n int) error {
	if lo < 0 || hi > n || lo > hi {
		return ErrOutOfRange
	}
	return nil
}
