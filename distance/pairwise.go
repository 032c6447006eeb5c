package distance

import (
	"github.com/hupe1980/vecmatch/matrix"
)

// PairwiseFunc computes the [x.Rows, y.Rows] distance matrix between the rows
// of x and the rows of y. Implementations must return an error satisfying
// errors.Is(err, ErrShapeMismatch) when the column counts differ.
type PairwiseFunc func(x, y *matrix.Dense) (*matrix.Dense, error)

// SparsePairwiseFunc is the sparse-operand variant of PairwiseFunc.
// The returned distance matrix is always dense.
type SparsePairwiseFunc func(x, y *matrix.Sparse) (*matrix.Dense, error)

// Pairwise returns the pairwise provider for the metric registered under name.
func Pairwise(name string) (PairwiseFunc, error) {
	fn, err := Provider(name)
	if err != nil {
		return nil, err
	}
	return func(x, y *matrix.Dense) (*matrix.Dense, error) {
		return Cdist(x, y, fn)
	}, nil
}

// PairwiseSparse returns the sparse pairwise provider for the metric
// registered under name.
func PairwiseSparse(name string) (SparsePairwiseFunc, error) {
	fn, err := ProviderSparse(name)
	if err != nil {
		return nil, err
	}
	return func(x, y *matrix.Sparse) (*matrix.Dense, error) {
		return CdistSparse(x, y, fn)
	}, nil
}

// Cdist applies fn to every (row of x, row of y) pair.
func Cdist(x, y *matrix.Dense, fn Func) (*matrix.Dense, error) {
	if x.Cols != y.Cols {
		return nil, &ShapeError{XCols: x.Cols, YCols: y.Cols}
	}
	out := matrix.NewDense(x.Rows, y.Rows)
	for i := 0; i < x.Rows; i++ {
		a := x.Row(i)
		row := out.Row(i)
		for j := 0; j < y.Rows; j++ {
			row[j] = fn(a, y.Row(j))
		}
	}
	return out, nil
}

// CdistSparse applies fn to every (row of x, row of y) pair of two CSR matrices.
func CdistSparse(x, y *matrix.Sparse, fn SparseFunc) (*matrix.Dense, error) {
	if x.Cols != y.Cols {
		return nil, &ShapeError{XCols: x.Cols, YCols: y.Cols}
	}
	out := matrix.NewDense(x.Rows, y.Rows)
	for i := 0; i < x.Rows; i++ {
		ai, av := x.Row(i)
		row := out.Row(i)
		for j := 0; j < y.Rows; j++ {
			bi, bv := y.Row(j)
			row[j] = fn(ai, av, bi, bv)
		}
	}
	return out, nil
}
