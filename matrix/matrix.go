// Package matrix provides the row-major float32 matrices exchanged between
// collections, distance providers and matchers.
package matrix

import (
	"errors"
	"fmt"
)

// ErrShape is returned when a matrix is built from inconsistent dimensions.
var ErrShape = errors.New("matrix: inconsistent shape")

// Dense is a row-major [Rows, Cols] float32 matrix.
type Dense struct {
	Rows int
	Cols int
	Data []float32
}

// NewDense allocates a zeroed rows x cols matrix.
func NewDense(rows, cols int) *Dense {
	return &Dense{
		Rows: rows,
		Cols: cols,
		Data: make([]float32, rows*cols),
	}
}

// NewDenseFill allocates a rows x cols matrix with every element set to v.
func NewDenseFill(rows, cols int, v float32) *Dense {
	m := NewDense(rows, cols)
	for i := range m.Data {
		m.Data[i] = v
	}
	return m
}

// FromRows stacks equally sized vectors into a matrix. The vectors are copied.
func FromRows(rows [][]float32) (*Dense, error) {
	if len(rows) == 0 {
		return &Dense{}, nil
	}
	cols := len(rows[0])
	m := NewDense(len(rows), cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrShape, i, len(r), cols)
		}
		copy(m.Data[i*cols:(i+1)*cols], r)
	}
	return m, nil
}

// Row returns row i as a sub-slice of the backing array.
func (m *Dense) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// At returns element (i, j).
func (m *Dense) At(i, j int) float32 {
	return m.Data[i*m.Cols+j]
}

// Set sets element (i, j).
func (m *Dense) Set(i, j int, v float32) {
	m.Data[i*m.Cols+j] = v
}

// SizeBytes returns the size of the backing array in bytes.
func (m *Dense) SizeBytes() int64 {
	return int64(len(m.Data)) * 4
}

// Sparse is a [Rows, Cols] matrix in compressed sparse row layout.
//
// Row i owns Indices[Indptr[i]:Indptr[i+1]] and the matching Data entries.
// Column indices within a row are strictly increasing.
type Sparse struct {
	Rows    int
	Cols    int
	Indptr  []int
	Indices []int
	Data    []float32
}

// NewSparse returns an empty sparse matrix with the given column count.
func NewSparse(cols int) *Sparse {
	return &Sparse{Cols: cols, Indptr: []int{0}}
}

// AppendRow appends a row given as parallel index/value slices.
// Indices must be strictly increasing and smaller than Cols.
func (s *Sparse) AppendRow(indices []int, values []float32) error {
	if len(indices) != len(values) {
		return fmt.Errorf("%w: %d indices, %d values", ErrShape, len(indices), len(values))
	}
	prev := -1
	for _, idx := range indices {
		if idx <= prev || idx >= s.Cols {
			return fmt.Errorf("%w: column index %d out of order or beyond %d columns", ErrShape, idx, s.Cols)
		}
		prev = idx
	}
	s.Indices = append(s.Indices, indices...)
	s.Data = append(s.Data, values...)
	s.Indptr = append(s.Indptr, len(s.Indices))
	s.Rows++
	return nil
}

// Row returns the index and value slices of row i.
func (s *Sparse) Row(i int) ([]int, []float32) {
	lo, hi := s.Indptr[i], s.Indptr[i+1]
	return s.Indices[lo:hi], s.Data[lo:hi]
}

// NNZ returns the number of stored values.
func (s *Sparse) NNZ() int {
	return len(s.Data)
}

// ToDense expands the matrix.
func (s *Sparse) ToDense() *Dense {
	d := NewDense(s.Rows, s.Cols)
	for i := 0; i < s.Rows; i++ {
		idx, val := s.Row(i)
		row := d.Row(i)
		for k, j := range idx {
			row[j] = val[k]
		}
	}
	return d
}
