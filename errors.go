package vecmatch

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecmatch/collection"
	"github.com/hupe1980/vecmatch/distance"
)

var (
	// ErrInvalidArgument is returned when Match is called with a bad limit,
	// batch size, metric or option combination. Nothing is computed or
	// mutated in that case.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedMetric is returned when a metric name is not registered.
	ErrUnsupportedMetric = distance.ErrUnsupportedMetric

	// ErrShapeMismatch is returned when source and target column counts differ.
	ErrShapeMismatch = distance.ErrShapeMismatch

	// ErrInvalidEmbeddingType is returned when a collection does not expose a
	// uniform float32 embedding array.
	ErrInvalidEmbeddingType = collection.ErrInvalidEmbeddingType
)

// ErrDimensionMismatch indicates that source and target embeddings have
// different dimensions. It satisfies errors.Is(err, ErrShapeMismatch).
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// Is reports whether target is ErrShapeMismatch.
func (e *ErrDimensionMismatch) Is(target error) bool {
	return target == ErrShapeMismatch
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var se *distance.ShapeError
	if errors.As(err, &se) {
		return &ErrDimensionMismatch{Expected: se.XCols, Actual: se.YCols, cause: err}
	}

	return err
}
