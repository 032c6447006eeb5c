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

// Online streams src in chunks of batchSize rows and keeps a running best-k
// per source row.
//
// Chunks are read sequentially; up to Parallelism chunks are scored
// concurrently and merged into a shared per-call accumulator. Ranking is by
// raw distance with the lower target index winning ties, so the result does
// not depend on chunk size, chunk order or parallelism.
func Online(ctx context.Context, x *matrix.Dense, src Source, batchSize int, fn distance.PairwiseFunc, opts Options) (topk.Result, error) {
	k := min(opts.K, src.Len())
	if x.Rows == 0 || k <= 0 {
		return topk.Result{Rows: make([][]topk.Candidate, x.Rows)}, nil
	}

	acc := topk.NewAccumulator(x.Rows, k)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.parallelism())

	var iterErr error
	for batch, err := range Batches(gctx, src, batchSize) {
		if err != nil {
			iterErr = err
			break
		}
		g.Go(func() error {
			return scoreBatch(gctx, x, batch, fn, acc, opts)
		})
	}
	if err := g.Wait(); err != nil {
		return topk.Result{}, err
	}
	if iterErr != nil {
		return topk.Result{}, iterErr
	}

	res := acc.Result()
	if opts.Normalize != nil && opts.Mode == Global {
		for i, row := range res.Rows {
			lo, hi := acc.Bounds(i)
			rescale(row, *opts.Normalize, minmax.Range{Lo: lo, Hi: hi})
		}
	}
	return res, nil
}

func scoreBatch(ctx context.Context, x *matrix.Dense, b Batch, fn distance.PairwiseFunc, acc *topk.Accumulator, opts Options) error {
	start := time.Now()
	y := b.Embeddings

	bytes := int64(x.Rows) * int64(y.Rows) * 4
	if err := opts.ResourceController.AcquireMemory(ctx, bytes); err != nil {
		return err
	}
	defer opts.ResourceController.ReleaseMemory(bytes)

	if err := opts.ResourceController.AcquireWorker(ctx); err != nil {
		return err
	}
	defer opts.ResourceController.ReleaseWorker()

	d, err := fn(x, y)
	if err != nil {
		return err
	}
	if err := checkDistances(d, x.Rows, y.Rows); err != nil {
		return err
	}

	var bounds []minmax.Range
	if opts.Normalize != nil {
		bounds = minmax.RowBounds(d)
	}

	local := topk.Select(d, acc.K())
	for i, row := range local.Rows {
		for j := range row {
			row[j].Index += b.Offset
		}
		if opts.Normalize == nil {
			continue
		}
		switch opts.Mode {
		case Global:
			acc.Observe(i, bounds[i].Lo, bounds[i].Hi)
		default:
			rescale(row, *opts.Normalize, bounds[i])
		}
	}
	acc.Merge(local)

	opts.batchDone(b.Offset, y.Rows, start)
	return nil
}
