// Package minmax implements linear min-max rescaling of distance scores.
package minmax

import (
	"github.com/hupe1980/vecmatch/matrix"
	"github.com/viterin/vek/vek32"
)

// Range is an ordered (Lo, Hi) pair. Lo may be greater than Hi, which
// inverts the mapping.
type Range struct {
	Lo float32
	Hi float32
}

// Rescale maps v linearly from observed into target. When observed is
// degenerate (Lo == Hi) the result is target.Lo. Results are clamped into
// the target interval.
func Rescale(v float32, target, observed Range) float32 {
	span := observed.Hi - observed.Lo
	if span == 0 {
		return target.Lo
	}
	out := target.Lo + (v-observed.Lo)*(target.Hi-target.Lo)/span
	lo, hi := min(target.Lo, target.Hi), max(target.Lo, target.Hi)
	return min(max(out, lo), hi)
}

// RescaleSlice rescales values in place. A nil observed range is computed
// from values itself.
func RescaleSlice(values []float32, target Range, observed *Range) {
	if len(values) == 0 {
		return
	}
	obs := Bounds(values)
	if observed != nil {
		obs = *observed
	}
	for i, v := range values {
		values[i] = Rescale(v, target, obs)
	}
}

// Bounds returns the smallest and largest element of values.
// values must not be empty.
func Bounds(values []float32) Range {
	return Range{Lo: vek32.Min(values), Hi: vek32.Max(values)}
}

// RowBounds returns Bounds for every row of d.
func RowBounds(d *matrix.Dense) []Range {
	out := make([]Range, d.Rows)
	if d.Cols == 0 {
		return out
	}
	for i := range out {
		out[i] = Bounds(d.Row(i))
	}
	return out
}
