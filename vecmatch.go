package vecmatch

import (
	"context"
	"time"

	"github.com/hupe1980/vecmatch/collection"
	"github.com/hupe1980/vecmatch/internal/assemble"
	"github.com/hupe1980/vecmatch/internal/matcher"
	"github.com/hupe1980/vecmatch/internal/topk"
)

// Match finds, for every record of source, the nearest records of target
// under metric and stores them as the record's ranked match list. Existing
// match lists are cleared and rebuilt, so repeated calls are idempotent.
//
// Matches are ordered by ascending raw distance. Each score is the raw
// distance, or its rescaled value when WithNormalization is given.
//
// Argument errors wrap ErrInvalidArgument and are returned before anything
// is computed. An empty source or target is a no-op. A failure while
// computing distances leaves source untouched.
func Match(ctx context.Context, source *collection.Array, target collection.Collection, metric Metric, optFns ...Option) error {
	o := applyOptions(optFns)
	if err := o.validate(); err != nil {
		return err
	}
	if source == nil || target == nil {
		return invalidArgument("source and target must not be nil")
	}

	fn, err := metric.resolve(o.sparse)
	if err != nil {
		return err
	}

	name := o.metricName
	if name == "" {
		name = metric.Name()
	}
	if name == "" {
		return invalidArgument("custom metric needs a name or WithMetricName")
	}

	if source.Len() == 0 || target.Len() == 0 {
		return nil
	}

	start := time.Now()
	matches, err := match(ctx, source, target, fn, name, &o)
	err = translateError(err)

	d := time.Since(start)
	o.metricsCollector.RecordMatch(source.Len(), target.Len(), d, err)
	o.logger.WithK(o.limit).LogMatch(ctx, name, source.Len(), target.Len(), matches, d, err)
	return err
}

func match(ctx context.Context, source *collection.Array, target collection.Collection, fn resolvedMetric, name string, o *options) (int, error) {
	srcDim, err := source.Dim()
	if err != nil {
		return 0, err
	}
	tgtDim, err := target.Dim()
	if err != nil {
		return 0, err
	}
	if srcDim != tgtDim {
		return 0, &ErrDimensionMismatch{Expected: srcDim, Actual: tgtDim}
	}

	k := min(o.limit, target.Len())
	if o.excludeSelf && k < target.Len() {
		k++
	}

	mopts := matcher.Options{
		K:                  k,
		Normalize:          o.normalize,
		Mode:               o.mode,
		Parallelism:        o.parallelism,
		ResourceController: o.rc,
		OnBatch: func(offset, rows int, d time.Duration) {
			o.logger.LogBatch(ctx, offset, rows, d)
			o.metricsCollector.RecordBatch(rows, d)
		},
	}

	var res topk.Result
	switch {
	case o.sparse:
		st, ok := target.(collection.SparseCollection)
		if !ok {
			return 0, invalidArgument("target %T does not support sparse embeddings", target)
		}
		x, err := source.SparseEmbeddings(ctx)
		if err != nil {
			return 0, err
		}
		y, err := st.SparseEmbeddings(ctx)
		if err != nil {
			return 0, err
		}
		res, err = matcher.InMemorySparse(ctx, x, y, fn.sparse, mopts)
		if err != nil {
			return 0, err
		}
	case o.batched:
		x, err := source.Embeddings(ctx)
		if err != nil {
			return 0, err
		}
		res, err = matcher.Online(ctx, x, target, o.batchSize, fn.dense, mopts)
		if err != nil {
			return 0, err
		}
	default:
		x, err := source.Embeddings(ctx)
		if err != nil {
			return 0, err
		}
		y, err := target.Embeddings(ctx)
		if err != nil {
			return 0, err
		}
		res, err = matcher.InMemory(ctx, x, y, fn.dense, mopts)
		if err != nil {
			return 0, err
		}
	}

	stats, err := assemble.Assemble(ctx, source, target, res, assemble.Options{
		Metric:      name,
		Limit:       o.limit,
		ExcludeSelf: o.excludeSelf,
		OnlyID:      o.onlyID,
	})
	if err != nil {
		return 0, err
	}
	o.logger.DebugContext(ctx, "matches assembled",
		"targets", stats.Targets,
		"shared", stats.Shared,
		"matches", stats.Matches,
	)
	return stats.Matches, nil
}
