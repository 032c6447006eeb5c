package matcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/vecmatch/distance"
	"github.com/hupe1980/vecmatch/internal/minmax"
	"github.com/hupe1980/vecmatch/matrix"
	"github.com/hupe1980/vecmatch/resource"
	"github.com/hupe1980/vecmatch/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type denseSource struct {
	m      *matrix.Dense
	failAt int
	calls  atomic.Int64
}

var errSource = errors.New("source failure")

func (s *denseSource) Len() int { return s.m.Rows }

func (s *denseSource) EmbeddingsRange(_ context.Context, lo, hi int) (*matrix.Dense, error) {
	s.calls.Add(1)
	if s.failAt > 0 && lo >= s.failAt {
		return nil, errSource
	}
	c := s.m.Cols
	return &matrix.Dense{Rows: hi - lo, Cols: c, Data: append([]float32(nil), s.m.Data[lo*c:hi*c]...)}, nil
}

func mustRows(t *testing.T, rows [][]float32) *matrix.Dense {
	t.Helper()
	m, err := matrix.FromRows(rows)
	require.NoError(t, err)
	return m
}

func euclidean(t *testing.T) distance.PairwiseFunc {
	t.Helper()
	fn, err := distance.Pairwise(distance.Euclidean)
	require.NoError(t, err)
	return fn
}

func TestInMemory_NearestExample(t *testing.T) {
	x := mustRows(t, [][]float32{{0, 0}, {10, 10}})
	y := mustRows(t, [][]float32{{0, 1}, {9, 9}})

	res, err := InMemory(context.Background(), x, y, euclidean(t), Options{K: 1})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0}, {1}}, res.Indices())
	assert.InDelta(t, 1.0, res.Rows[0][0].Distance, 1e-6)
}

func TestInMemory_PreTrimNormalization(t *testing.T) {
	x := mustRows(t, [][]float32{{0}})
	y := mustRows(t, [][]float32{{5}, {1}, {2}})

	res, err := InMemory(context.Background(), x, y, euclidean(t), Options{
		K:         2,
		Normalize: &minmax.Range{Lo: 0, Hi: 1},
	})
	require.NoError(t, err)

	// Observed range is [1, 5] from the full row, not [1, 2] from the kept pair.
	require.Len(t, res.Rows[0], 2)
	assert.Equal(t, 1, res.Rows[0][0].Index)
	assert.InDelta(t, 0.0, res.Rows[0][0].Score, 1e-6)
	assert.InDelta(t, 0.25, res.Rows[0][1].Score, 1e-6)
	assert.InDelta(t, 2.0, res.Rows[0][1].Distance, 1e-6)
}

func TestInMemory_ClampAndEmpty(t *testing.T) {
	x := mustRows(t, [][]float32{{0}})
	y := mustRows(t, [][]float32{{1}, {2}})

	res, err := InMemory(context.Background(), x, y, euclidean(t), Options{K: 10})
	require.NoError(t, err)
	assert.Len(t, res.Rows[0], 2)

	res, err = InMemory(context.Background(), x, matrix.NewDense(0, 1), euclidean(t), Options{K: 3})
	require.NoError(t, err)
	assert.Empty(t, res.Rows[0])
}

func TestInMemory_ParallelMatchesSequential(t *testing.T) {
	rng := testutil.NewRNG(42)
	x := mustRows(t, rng.UniformVectors(37, 8))
	y := mustRows(t, rng.UniformVectors(50, 8))
	norm := &minmax.Range{Lo: 0, Hi: 1}

	seq, err := InMemory(context.Background(), x, y, euclidean(t), Options{K: 5, Normalize: norm})
	require.NoError(t, err)

	for _, p := range []int{2, 4, 37, 64} {
		t.Run(fmt.Sprint(p), func(t *testing.T) {
			par, err := InMemory(context.Background(), x, y, euclidean(t), Options{K: 5, Normalize: norm, Parallelism: p})
			require.NoError(t, err)
			assert.Equal(t, seq, par)
		})
	}
}

func TestInMemory_ShapeMismatch(t *testing.T) {
	x := mustRows(t, [][]float32{{0, 0}})
	y := mustRows(t, [][]float32{{0, 0, 0}})

	_, err := InMemory(context.Background(), x, y, euclidean(t), Options{K: 1})
	assert.ErrorIs(t, err, distance.ErrShapeMismatch)
}

func TestPairwiseResultShape(t *testing.T) {
	x := mustRows(t, [][]float32{{0, 0}, {1, 1}})
	y := mustRows(t, [][]float32{{0, 1}, {1, 0}, {2, 2}})
	sx, sy := matrix.NewSparse(2), matrix.NewSparse(2)
	require.NoError(t, sx.AppendRow([]int{0}, []float32{1}))
	require.NoError(t, sy.AppendRow([]int{1}, []float32{1}))

	results := map[string]*matrix.Dense{
		"Nil":         nil,
		"MissingCols": matrix.NewDense(2, 2),
		"MissingRows": matrix.NewDense(1, 3),
	}

	for name, d := range results {
		t.Run(name, func(t *testing.T) {
			fn := func(_, _ *matrix.Dense) (*matrix.Dense, error) { return d, nil }

			_, err := InMemory(context.Background(), x, y, fn, Options{K: 2})
			var rse *distance.ResultShapeError
			require.ErrorAs(t, err, &rse)
			assert.Equal(t, 2, rse.WantRows)
			assert.Equal(t, 3, rse.WantCols)
			assert.ErrorIs(t, err, distance.ErrShapeMismatch)

			rse = nil
			_, err = Online(context.Background(), x, &denseSource{m: y}, 3, fn, Options{K: 2})
			require.ErrorAs(t, err, &rse)
			assert.Equal(t, 3, rse.WantCols)
		})
	}

	sfn := func(_, _ *matrix.Sparse) (*matrix.Dense, error) { return nil, nil }
	_, err := InMemorySparse(context.Background(), sx, sy, sfn, Options{K: 1})
	assert.ErrorIs(t, err, distance.ErrShapeMismatch)
}

func TestInMemorySparse(t *testing.T) {
	rng := testutil.NewRNG(7)
	xs := rng.SparseVectors(6, 20, 0.3)
	ys := rng.SparseVectors(9, 20, 0.3)

	x, y := matrix.NewSparse(20), matrix.NewSparse(20)
	for _, v := range xs {
		require.NoError(t, x.AppendRow(v.Indices, v.Values))
	}
	for _, v := range ys {
		require.NoError(t, y.AppendRow(v.Indices, v.Values))
	}

	sfn, err := distance.PairwiseSparse(distance.Cosine)
	require.NoError(t, err)
	dfn, err := distance.Pairwise(distance.Cosine)
	require.NoError(t, err)

	opts := Options{K: 4, Normalize: &minmax.Range{Lo: 1, Hi: 0}}
	sparse, err := InMemorySparse(context.Background(), x, y, sfn, opts)
	require.NoError(t, err)
	dense, err := InMemory(context.Background(), x.ToDense(), y.ToDense(), dfn, opts)
	require.NoError(t, err)

	assert.InDeltaSlice(t, dense.Distances().Data, sparse.Distances().Data, 1e-5)
	assert.InDeltaSlice(t, dense.Scores().Data, sparse.Scores().Data, 1e-5)
}

func TestOnline_MatchesInMemory(t *testing.T) {
	rng := testutil.NewRNG(1234)
	x := mustRows(t, rng.UniformVectors(12, 6))
	// Clustered targets create near-ties at the k boundary.
	y := mustRows(t, rng.ClusteredVectors(41, 6, 3, 0.05))
	norm := &minmax.Range{Lo: 0, Hi: 1}

	want, err := InMemory(context.Background(), x, y, euclidean(t), Options{K: 7, Normalize: norm})
	require.NoError(t, err)

	for _, batch := range []int{1, 2, 3, 7, 40, 41, 100} {
		for _, p := range []int{1, 4} {
			t.Run(fmt.Sprintf("batch=%d/parallel=%d", batch, p), func(t *testing.T) {
				got, err := Online(context.Background(), x, &denseSource{m: y}, batch, euclidean(t), Options{
					K:           7,
					Normalize:   norm,
					Mode:        Global,
					Parallelism: p,
				})
				require.NoError(t, err)
				assert.Equal(t, want.Indices(), got.Indices())
				assert.InDeltaSlice(t, want.Distances().Data, got.Distances().Data, 1e-6)
				assert.InDeltaSlice(t, want.Scores().Data, got.Scores().Data, 1e-6)
			})
		}
	}
}

func TestOnline_GroundTruth(t *testing.T) {
	rng := testutil.NewRNG(99)
	queries := rng.UniformVectors(5, 4)
	targets := rng.UniformVectors(5, 4)

	exact := testutil.ExactTopK(queries, targets, 3, distance.EuclideanDistance)

	for _, batch := range []int{1, 5} {
		got, err := Online(context.Background(), mustRows(t, queries), &denseSource{m: mustRows(t, targets)}, batch, euclidean(t), Options{K: 3})
		require.NoError(t, err)
		for q, row := range got.Rows {
			require.Len(t, row, 3)
			for j, c := range row {
				assert.Equal(t, exact[q][j].Index, c.Index)
				assert.InDelta(t, exact[q][j].Distance, c.Distance, 1e-5)
			}
		}
	}
}

func TestOnline_TiesLowestIndexWins(t *testing.T) {
	x := mustRows(t, [][]float32{{0}})
	y := mustRows(t, [][]float32{{1}, {-1}, {1}, {-1}, {1}})

	for _, batch := range []int{1, 2, 5} {
		got, err := Online(context.Background(), x, &denseSource{m: y}, batch, euclidean(t), Options{K: 3, Parallelism: 3})
		require.NoError(t, err)
		assert.Equal(t, [][]int{{0, 1, 2}}, got.Indices())
	}
}

func TestOnline_PerBatchNormalization(t *testing.T) {
	x := mustRows(t, [][]float32{{0}})
	y := mustRows(t, [][]float32{{1}, {2}, {4}, {8}})
	norm := &minmax.Range{Lo: 0, Hi: 1}

	t.Run("SingleRowChunksAreDegenerate", func(t *testing.T) {
		got, err := Online(context.Background(), x, &denseSource{m: y}, 1, euclidean(t), Options{K: 4, Normalize: norm})
		require.NoError(t, err)
		for _, c := range got.Rows[0] {
			assert.Zero(t, c.Score)
		}
	})

	t.Run("ChunkLocalBounds", func(t *testing.T) {
		got, err := Online(context.Background(), x, &denseSource{m: y}, 2, euclidean(t), Options{K: 4, Normalize: norm})
		require.NoError(t, err)
		// Chunks [1,2] and [4,8] are rescaled independently.
		scores := make([]float32, 0, 4)
		for _, c := range got.Rows[0] {
			scores = append(scores, c.Score)
		}
		assert.InDeltaSlice(t, []float32{0, 1, 0, 1}, scores, 1e-6)
	})

	t.Run("Global", func(t *testing.T) {
		got, err := Online(context.Background(), x, &denseSource{m: y}, 2, euclidean(t), Options{K: 4, Normalize: norm, Mode: Global})
		require.NoError(t, err)
		scores := make([]float32, 0, 4)
		for _, c := range got.Rows[0] {
			scores = append(scores, c.Score)
		}
		assert.InDeltaSlice(t, []float32{0, 1.0 / 7, 3.0 / 7, 1}, scores, 1e-6)
	})
}

func TestOnline_Errors(t *testing.T) {
	x := mustRows(t, [][]float32{{0}})
	y := mustRows(t, [][]float32{{1}, {2}, {3}, {4}})

	t.Run("Source", func(t *testing.T) {
		_, err := Online(context.Background(), x, &denseSource{m: y, failAt: 2}, 1, euclidean(t), Options{K: 1})
		assert.ErrorIs(t, err, errSource)
	})

	t.Run("Distance", func(t *testing.T) {
		fail := func(_, _ *matrix.Dense) (*matrix.Dense, error) { return nil, distance.ErrShapeMismatch }
		_, err := Online(context.Background(), x, &denseSource{m: y}, 2, fail, Options{K: 1, Parallelism: 2})
		assert.ErrorIs(t, err, distance.ErrShapeMismatch)
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Online(ctx, x, &denseSource{m: y}, 1, euclidean(t), Options{K: 1})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("MemoryLimit", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MemoryLimitBytes: 4})
		_, err := Online(context.Background(), x, &denseSource{m: y}, 2, euclidean(t), Options{K: 1, ResourceController: rc})
		assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
		assert.Zero(t, rc.MemoryUsage())
	})
}

func TestOnline_OnBatchAndResources(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 20, MaxWorkers: 2})
	x := mustRows(t, [][]float32{{0}, {1}})
	y := mustRows(t, [][]float32{{1}, {2}, {3}, {4}, {5}})

	var batches atomic.Int64
	_, err := Online(context.Background(), x, &denseSource{m: y}, 2, euclidean(t), Options{
		K:                  2,
		Parallelism:        3,
		ResourceController: rc,
		OnBatch: func(_, _ int, _ time.Duration) {
			batches.Add(1)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), batches.Load())
	assert.Zero(t, rc.MemoryUsage())
}

func TestBatches(t *testing.T) {
	src := &denseSource{m: mustRows(t, [][]float32{{1}, {2}, {3}, {4}, {5}})}
	seq := Batches(context.Background(), src, 2)

	collect := func() ([]int, []int) {
		var offsets, sizes []int
		for b, err := range seq {
			require.NoError(t, err)
			offsets = append(offsets, b.Offset)
			sizes = append(sizes, b.Embeddings.Rows)
		}
		return offsets, sizes
	}

	offsets, sizes := collect()
	assert.Equal(t, []int{0, 2, 4}, offsets)
	assert.Equal(t, []int{2, 2, 1}, sizes)

	// Restartable.
	offsets2, _ := collect()
	assert.Equal(t, offsets, offsets2)

	// Lazy: stopping early does not fetch the remaining chunks.
	src.calls.Store(0)
	for range seq {
		break
	}
	assert.Equal(t, int64(1), src.calls.Load())

	for _, err := range Batches(context.Background(), src, 0) {
		assert.Error(t, err)
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "per-batch", PerBatch.String())
	assert.Equal(t, "global", Global.String())
}
