package distance

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/viterin/vek/vek32"
)

var (
	// ErrUnsupportedMetric is returned when a metric name is not registered.
	ErrUnsupportedMetric = errors.New("unsupported metric")

	// ErrShapeMismatch is returned when two operands have different column counts.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// ShapeError reports the column counts of two incompatible operands.
// It satisfies errors.Is(err, ErrShapeMismatch).
type ShapeError struct {
	XCols int
	YCols int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: x has %d columns, y has %d", ErrShapeMismatch, e.XCols, e.YCols)
}

// Is reports whether target is ErrShapeMismatch.
func (e *ShapeError) Is(target error) bool {
	return target == ErrShapeMismatch
}

// ResultShapeError reports a pairwise result whose shape does not match its
// operands. A nil result has Rows and Cols of -1.
// It satisfies errors.Is(err, ErrShapeMismatch).
type ResultShapeError struct {
	Rows, Cols         int
	WantRows, WantCols int
}

func (e *ResultShapeError) Error() string {
	if e.Rows < 0 {
		return fmt.Sprintf("%s: pairwise result is nil, want %dx%d", ErrShapeMismatch, e.WantRows, e.WantCols)
	}
	return fmt.Sprintf("%s: pairwise result is %dx%d, want %dx%d", ErrShapeMismatch, e.Rows, e.Cols, e.WantRows, e.WantCols)
}

// Is reports whether target is ErrShapeMismatch.
func (e *ResultShapeError) Is(target error) bool {
	return target == ErrShapeMismatch
}

// Built-in metric names. All of them follow the distance convention:
// lower values mean closer.
const (
	Cosine      = "cosine"
	Euclidean   = "euclidean"
	SqEuclidean = "sqeuclidean"
	Cityblock   = "cityblock"
	Chebyshev   = "chebyshev"
)

// Func computes the distance between two vectors of equal length.
type Func func(a, b []float32) float32

// SparseFunc computes the distance between two sparse vectors given as
// strictly increasing index slices with matching values.
type SparseFunc func(ai []int, av []float32, bi []int, bv []float32) float32

type entry struct {
	dense  Func
	sparse SparseFunc
}

var (
	registryMu sync.RWMutex
	registry   = map[string]entry{
		Cosine:      {dense: CosineDistance, sparse: sparseCosine},
		Euclidean:   {dense: EuclideanDistance, sparse: sparseEuclidean},
		SqEuclidean: {dense: SquaredEuclidean, sparse: sparseSqEuclidean},
		Cityblock:   {dense: CityblockDistance, sparse: sparseCityblock},
		Chebyshev:   {dense: ChebyshevDistance, sparse: sparseChebyshev},
	}
)

// Register adds or replaces a named metric. sparse may be nil, in which case
// the metric is only available for dense operands.
func Register(name string, dense Func, sparse SparseFunc) error {
	if name == "" || dense == nil {
		return errors.New("distance: register requires a name and a dense function")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = entry{dense: dense, sparse: sparse}
	return nil
}

// Names returns the registered metric names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Provider returns the vector distance function registered under name.
func Provider(name string) (Func, error) {
	registryMu.RLock()
	e, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMetric, name)
	}
	return e.dense, nil
}

// ProviderSparse returns the sparse vector distance function registered under name.
func ProviderSparse(name string) (SparseFunc, error) {
	registryMu.RLock()
	e, ok := registry[name]
	registryMu.RUnlock()
	if !ok || e.sparse == nil {
		return nil, fmt.Errorf("%w: %q has no sparse implementation", ErrUnsupportedMetric, name)
	}
	return e.sparse, nil
}

// CosineDistance returns 1 - cosine similarity, clamped at zero.
// A zero vector is at distance 1 from everything.
func CosineDistance(a, b []float32) float32 {
	if len(a) == 0 {
		return 1
	}
	sim := vek32.CosineSimilarity(a, b)
	if math.IsNaN(float64(sim)) {
		return 1
	}
	return max(0, 1-sim)
}

// EuclideanDistance returns the L2 distance.
func EuclideanDistance(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vek32.Distance(a, b)
}

// SquaredEuclidean returns the squared L2 distance.
func SquaredEuclidean(a, b []float32) float32 {
	d := EuclideanDistance(a, b)
	return d * d
}

// CityblockDistance returns the L1 (Manhattan) distance.
func CityblockDistance(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vek32.ManhattanDistance(a, b)
}

// ChebyshevDistance returns the largest absolute coordinate difference.
func ChebyshevDistance(a, b []float32) float32 {
	var m float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		if d > m {
			m = d
		}
	}
	return m
}
