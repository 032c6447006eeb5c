package vecmatch

import (
	"fmt"

	"github.com/hupe1980/vecmatch/distance"
)

// Metric selects the distance used by Match: either a metric registered in
// the distance package (Named) or a caller-supplied pairwise function
// (Custom). The zero value is invalid.
type Metric struct {
	name string
	fn   distance.PairwiseFunc
}

// Named returns the registered metric with the given name.
func Named(name string) Metric {
	return Metric{name: name}
}

// Custom returns a metric backed by fn. name is the default score key.
func Custom(name string, fn distance.PairwiseFunc) Metric {
	return Metric{name: name, fn: fn}
}

// Name returns the metric's name.
func (m Metric) Name() string { return m.name }

// IsCustom reports whether m wraps a caller-supplied function.
func (m Metric) IsCustom() bool { return m.fn != nil }

// String implements fmt.Stringer.
func (m Metric) String() string {
	if m.IsCustom() {
		return fmt.Sprintf("custom(%s)", m.name)
	}
	return m.name
}

type resolvedMetric struct {
	dense  distance.PairwiseFunc
	sparse distance.SparsePairwiseFunc
}

// resolve turns m into the invocable used by the matchers.
func (m Metric) resolve(sparse bool) (resolvedMetric, error) {
	if m.fn != nil {
		if sparse {
			return resolvedMetric{}, invalidArgument("custom metric %q has no sparse form", m.name)
		}
		return resolvedMetric{dense: m.fn}, nil
	}
	if m.name == "" {
		return resolvedMetric{}, invalidArgument("metric must be a registered name or a pairwise function")
	}

	if sparse {
		fn, err := distance.PairwiseSparse(m.name)
		if err != nil {
			return resolvedMetric{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		return resolvedMetric{sparse: fn}, nil
	}
	fn, err := distance.Pairwise(m.name)
	if err != nil {
		return resolvedMetric{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return resolvedMetric{dense: fn}, nil
}
