// Package matcher computes per-row top-k candidates between a source
// embedding matrix and a target, either in one step (InMemory) or by
// streaming target chunks (Online).
package matcher

import (
	"time"

	"github.com/hupe1980/vecmatch/distance"
	"github.com/hupe1980/vecmatch/internal/minmax"
	"github.com/hupe1980/vecmatch/internal/topk"
	"github.com/hupe1980/vecmatch/matrix"
	"github.com/hupe1980/vecmatch/resource"
)

// Mode selects how the online matcher derives the observed range used for
// normalization.
type Mode int

const (
	// PerBatch rescales each candidate with the row min/max of the chunk it
	// came from.
	PerBatch Mode = iota
	// Global rescales with the row min/max over all chunks, matching the
	// in-memory result.
	Global
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case PerBatch:
		return "per-batch"
	case Global:
		return "global"
	default:
		return "unknown"
	}
}

// Options configures a matcher run.
type Options struct {
	// K is the number of candidates kept per row before clamping to the
	// target size.
	K int
	// Normalize, when set, rescales scores into this range.
	Normalize *minmax.Range
	// Mode selects the online normalization mode.
	Mode Mode
	// Parallelism bounds concurrent batches or row partitions. Values below
	// 1 mean 1.
	Parallelism int
	// ResourceController reserves memory for distance blocks.
	ResourceController *resource.Controller
	// OnBatch is called after every scored batch with its target offset,
	// row count and duration.
	OnBatch func(offset, rows int, d time.Duration)
}

func (o *Options) parallelism() int {
	return max(o.Parallelism, 1)
}

func (o *Options) batchDone(offset, rows int, start time.Time) {
	if o.OnBatch != nil {
		o.OnBatch(offset, rows, time.Since(start))
	}
}

// rescale sets the Score of every candidate from its raw distance.
func rescale(cands []topk.Candidate, target, observed minmax.Range) {
	for i := range cands {
		cands[i].Score = minmax.Rescale(cands[i].Distance, target, observed)
	}
}

// checkDistances rejects a pairwise result that is not rows x cols.
func checkDistances(d *matrix.Dense, rows, cols int) error {
	if d == nil {
		return &distance.ResultShapeError{Rows: -1, Cols: -1, WantRows: rows, WantCols: cols}
	}
	if d.Rows != rows || d.Cols != cols || len(d.Data) != rows*cols {
		return &distance.ResultShapeError{Rows: d.Rows, Cols: d.Cols, WantRows: rows, WantCols: cols}
	}
	return nil
}
