package collection

import (
	"context"
	"fmt"

	"github.com/hupe1980/vecmatch/matrix"
	"github.com/hupe1980/vecmatch/model"
)

// Array is an in-memory collection holding record pointers. Records are
// shared with the caller; matching mutates their match lists.
type Array struct {
	records []*model.Record
	index   map[string]int
}

var _ SparseCollection = (*Array)(nil)

// NewArray creates an array from records.
func NewArray(records ...*model.Record) (*Array, error) {
	a := &Array{
		records: make([]*model.Record, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for _, r := range records {
		if err := a.Append(r); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Append adds a record at the end.
func (a *Array) Append(r *model.Record) error {
	if r == nil {
		return fmt.Errorf("collection: nil record")
	}
	if _, ok := a.index[r.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, r.ID)
	}
	a.index[r.ID] = len(a.records)
	a.records = append(a.records, r)
	return nil
}

// Len returns the number of records.
func (a *Array) Len() int {
	return len(a.records)
}

// At returns the record at position i. It panics if i is out of range.
func (a *Array) At(i int) *model.Record {
	return a.records[i]
}

// Get returns the record with the given id.
func (a *Array) Get(id string) (*model.Record, bool) {
	i, ok := a.index[id]
	if !ok {
		return nil, false
	}
	return a.records[i], true
}

// Records returns the records in order. The slice must not be modified.
func (a *Array) Records() []*model.Record {
	return a.records
}

// Contains reports whether a record with the given id exists.
func (a *Array) Contains(id string) bool {
	_, ok := a.index[id]
	return ok
}

// ID returns the id at position i.
func (a *Array) ID(_ context.Context, i int) (string, error) {
	if i < 0 || i >= len(a.records) {
		return "", ErrOutOfRange
	}
	return a.records[i].ID, nil
}

// Record returns the record at position i.
func (a *Array) Record(_ context.Context, i int) (*model.Record, error) {
	if i < 0 || i >= len(a.records) {
		return nil, ErrOutOfRange
	}
	return a.records[i], nil
}

// Dim returns the common dense dimension of all records. Records holding
// only a sparse embedding count with their sparse Dim.
func (a *Array) Dim() (int, error) {
	dim := -1
	for _, r := range a.records {
		d, ok := denseDim(r)
		if !ok {
			return 0, fmt.Errorf("%w: record %q has no embedding", ErrInvalidEmbeddingType, r.ID)
		}
		if dim >= 0 && d != dim {
			return 0, fmt.Errorf("%w: record %q has dimension %d, want %d", ErrInvalidEmbeddingType, r.ID, d, dim)
		}
		dim = d
	}
	return max(dim, 0), nil
}

// rangeDim validates rows [lo, hi) against the dimension of the first
// record, so chunked reads only touch their own rows.
func (a *Array) rangeDim(lo, hi int) (int, error) {
	if len(a.records) == 0 {
		return 0, nil
	}
	first := a.records[0]
	dim, ok := denseDim(first)
	if !ok {
		return 0, fmt.Errorf("%w: record %q has no embedding", ErrInvalidEmbeddingType, first.ID)
	}
	for _, r := range a.records[lo:hi] {
		d, ok := denseDim(r)
		if !ok {
			return 0, fmt.Errorf("%w: record %q has no embedding", ErrInvalidEmbeddingType, r.ID)
		}
		if d != dim {
			return 0, fmt.Errorf("%w: record %q has dimension %d, want %d", ErrInvalidEmbeddingType, r.ID, d, dim)
		}
	}
	return dim, nil
}

// Embeddings stacks all embeddings into a dense matrix.
func (a *Array) Embeddings(ctx context.Context) (*matrix.Dense, error) {
	return a.EmbeddingsRange(ctx, 0, len(a.records))
}

// EmbeddingsRange stacks the embeddings of rows [lo, hi).
func (a *Array) EmbeddingsRange(_ context.Context, lo, hi int) (*matrix.Dense, error) {
	if err := checkRange(lo, hi, len(a.records)); err != nil {
		return nil, err
	}
	dim, err := a.rangeDim(lo, hi)
	if err != nil {
		return nil, err
	}

	out := matrix.NewDense(hi-lo, dim)
	for i, r := range a.records[lo:hi] {
		row := out.Row(i)
		if r.Embedding != nil {
			copy(row, r.Embedding)
			continue
		}
		for j, idx := range r.Sparse.Indices {
			if idx < 0 || idx >= dim || j >= len(r.Sparse.Values) {
				return nil, fmt.Errorf("%w: record %q has a malformed sparse embedding", ErrInvalidEmbeddingType, r.ID)
			}
			row[idx] = r.Sparse.Values[j]
		}
	}
	return out, nil
}

// SparseEmbeddings stacks all embeddings as a CSR matrix. Dense embeddings
// contribute their non-zero entries.
func (a *Array) SparseEmbeddings(_ context.Context) (*matrix.Sparse, error) {
	dim, err := a.Dim()
	if err != nil {
		return nil, err
	}

	out := matrix.NewSparse(dim)
	var (
		indices []int
		values  []float32
	)
	for _, r := range a.records {
		if r.Sparse != nil && r.Embedding == nil {
			if err := out.AppendRow(r.Sparse.Indices, r.Sparse.Values); err != nil {
				return nil, fmt.Errorf("record %q: %w", r.ID, err)
			}
			continue
		}
		indices, values = indices[:0], values[:0]
		for j, v := range r.Embedding {
			if v != 0 {
				indices = append(indices, j)
				values = append(values, v)
			}
		}
		if err := out.AppendRow(indices, values); err != nil {
			return nil, fmt.Errorf("record %q: %w", r.ID, err)
		}
	}
	return out, nil
}

func denseDim(r *model.Record) (int, bool) {
	switch {
	case r.Embedding != nil:
		return len(r.Embedding), true
	case r.Sparse != nil:
		return r.Sparse.Dim, true
	default:
		return 0, false
	}
}
