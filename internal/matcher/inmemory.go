package matcher

import (
	"context"
	"time"

	"github.com/hupe1980/vecmatch/distance"
	"github.com/hupe1980/vecmatch/internal/minmax"
	"github.com/hupe1980/vecmatch/internal/topk"
	"github.com/hupe1980/vecmatch/matrix"
	"golang.org/x/sync/errgroup"
)

// InMemory scores x against the fully materialized y. Normalization uses
// the row min/max of the complete distance row, taken before trimming to k.
//
// With Parallelism > 1 the source rows are split into contiguous partitions
// scored concurrently; every partition still sees all of y, so the result
// is identical to the sequential run.
func InMemory(ctx context.Context, x, y *matrix.Dense, fn distance.PairwiseFunc, opts Options) (topk.Result, error) {
	res := topk.Result{Rows: make([][]topk.Candidate, x.Rows)}
	if x.Rows == 0 || y.Rows == 0 {
		return res, nil
	}

	parts := min(opts.parallelism(), x.Rows)
	size := (x.Rows + parts - 1) / parts

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parts)
	for lo := 0; lo < x.Rows; lo += size {
		hi := min(lo+size, x.Rows)
		g.Go(func() error {
			start := time.Now()
			part := &matrix.Dense{Rows: hi - lo, Cols: x.Cols, Data: x.Data[lo*x.Cols : hi*x.Cols]}

			bytes := int64(part.Rows) * int64(y.Rows) * 4
			if err := opts.ResourceController.AcquireMemory(gctx, bytes); err != nil {
				return err
			}
			defer opts.ResourceController.ReleaseMemory(bytes)

			if err := opts.ResourceController.AcquireWorker(gctx); err != nil {
				return err
			}
			defer opts.ResourceController.ReleaseWorker()

			d, err := fn(part, y)
			if err != nil {
				return err
			}
			if err := checkDistances(d, part.Rows, y.Rows); err != nil {
				return err
			}
			local := reduce(d, opts)
			copy(res.Rows[lo:hi], local.Rows)
			opts.batchDone(0, y.Rows, start)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return topk.Result{}, err
	}
	return res, nil
}

// InMemorySparse is InMemory for CSR operands. It runs sequentially.
func InMemorySparse(ctx context.Context, x, y *matrix.Sparse, fn distance.SparsePairwiseFunc, opts Options) (topk.Result, error) {
	res := topk.Result{Rows: make([][]topk.Candidate, x.Rows)}
	if x.Rows == 0 || y.Rows == 0 {
		return res, nil
	}
	start := time.Now()

	bytes := int64(x.Rows) * int64(y.Rows) * 4
	if err := opts.ResourceController.AcquireMemory(ctx, bytes); err != nil {
		return topk.Result{}, err
	}
	defer opts.ResourceController.ReleaseMemory(bytes)

	d, err := fn(x, y)
	if err != nil {
		return topk.Result{}, err
	}
	if err := checkDistances(d, x.Rows, y.Rows); err != nil {
		return topk.Result{}, err
	}
	res = reduce(d, opts)
	opts.batchDone(0, y.Rows, start)
	return res, nil
}

// reduce trims a full distance matrix to top-k and applies normalization
// with the pre-trim row bounds.
func reduce(d *matrix.Dense, opts Options) topk.Result {
	var bounds []minmax.Range
	if opts.Normalize != nil {
		bounds = minmax.RowBounds(d)
	}
	res := topk.Select(d, opts.K)
	if opts.Normalize != nil {
		for i, row := range res.Rows {
			rescale(row, *opts.Normalize, bounds[i])
		}
	}
	return res
}
