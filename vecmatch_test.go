package vecmatch_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/hupe1980/vecmatch"
	"github.com/hupe1980/vecmatch/blobstore"
	"github.com/hupe1980/vecmatch/collection"
	"github.com/hupe1980/vecmatch/distance"
	"github.com/hupe1980/vecmatch/matrix"
	"github.com/hupe1980/vecmatch/model"
	"github.com/hupe1980/vecmatch/resource"
	"github.com/hupe1980/vecmatch/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArray(t *testing.T, records ...*model.Record) *collection.Array {
	t.Helper()
	a, err := collection.NewArray(records...)
	require.NoError(t, err)
	return a
}

func randomArray(t *testing.T, rng *testutil.RNG, prefix string, n, dim int) *collection.Array {
	t.Helper()
	return newArray(t, testutil.Records(prefix, rng.UniformVectors(n, dim))...)
}

func matchIDs(a *collection.Array) [][]string {
	out := make([][]string, a.Len())
	for i, r := range a.Records() {
		out[i] = r.MatchIDs()
	}
	return out
}

func scores(t *testing.T, r *model.Record, metric string) []float32 {
	t.Helper()
	out := make([]float32, len(r.Matches))
	for i, m := range r.Matches {
		s, ok := m.Score(metric)
		require.True(t, ok, "missing score %q", metric)
		out[i] = s
	}
	return out
}

func TestMatch_NearestExample(t *testing.T) {
	src := newArray(t, model.NewRecord("A", []float32{0, 0}), model.NewRecord("B", []float32{10, 10}))
	tgt := newArray(t, model.NewRecord("C", []float32{0, 1}), model.NewRecord("D", []float32{9, 9}))

	for _, opts := range [][]vecmatch.Option{
		{vecmatch.WithLimit(1)},
		{vecmatch.WithLimit(1), vecmatch.WithBatchSize(1)},
		{vecmatch.WithLimit(1), vecmatch.WithSparse()},
	} {
		require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean), opts...))
		assert.Equal(t, [][]string{{"C"}, {"D"}}, matchIDs(src))

		s := scores(t, src.At(0), distance.Euclidean)
		assert.InDelta(t, 1.0, s[0], 1e-6)
	}
}

func TestMatch_LimitAndOrdering(t *testing.T) {
	rng := testutil.NewRNG(1)
	src := randomArray(t, rng, "q", 8, 6)
	tgt := randomArray(t, rng, "t", 50, 6)

	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Cosine), vecmatch.WithLimit(7)))

	for _, r := range src.Records() {
		require.Len(t, r.Matches, 7)
		s := scores(t, r, distance.Cosine)
		for i := 1; i < len(s); i++ {
			assert.LessOrEqual(t, s[i-1], s[i])
		}
	}
}

func TestMatch_LimitClampedToTarget(t *testing.T) {
	rng := testutil.NewRNG(2)
	src := randomArray(t, rng, "q", 3, 4)
	tgt := randomArray(t, rng, "t", 4, 4)

	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean)))
	for _, r := range src.Records() {
		assert.Len(t, r.Matches, 4)
	}
}

func TestMatch_Idempotent(t *testing.T) {
	rng := testutil.NewRNG(3)
	src := randomArray(t, rng, "q", 5, 3)
	tgt := randomArray(t, rng, "t", 20, 3)
	opts := []vecmatch.Option{vecmatch.WithLimit(4), vecmatch.WithNormalization(0, 1)}

	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean), opts...))
	first := matchIDs(src)
	firstScores := scores(t, src.At(0), distance.Euclidean)

	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean), opts...))
	assert.Equal(t, first, matchIDs(src))
	assert.Equal(t, firstScores, scores(t, src.At(0), distance.Euclidean))
	assert.Len(t, src.At(0).Matches, 4)
}

func TestMatch_ExcludeSelf(t *testing.T) {
	rng := testutil.NewRNG(4)
	self := randomArray(t, rng, "r", 25, 5)

	for _, opts := range [][]vecmatch.Option{
		{vecmatch.WithLimit(5), vecmatch.WithExcludeSelf()},
		{vecmatch.WithLimit(5), vecmatch.WithExcludeSelf(), vecmatch.WithBatchSize(4), vecmatch.WithParallelism(3)},
		{vecmatch.WithLimit(24), vecmatch.WithExcludeSelf()},
	} {
		require.NoError(t, vecmatch.Match(context.Background(), self, self, vecmatch.Named(distance.SqEuclidean), opts...))
		for _, r := range self.Records() {
			require.NotEmpty(t, r.Matches)
			for _, m := range r.Matches {
				assert.NotEqual(t, r.ID, m.Record.ID)
				assert.Empty(t, m.Record.Matches, "nested match list on %s", m.Record.ID)
			}
		}
	}
	assert.Len(t, self.At(0).Matches, 24)
}

func TestMatch_ExcludeSelfKeepsLimit(t *testing.T) {
	recs := []*model.Record{
		model.NewRecord("a", []float32{0}),
		model.NewRecord("b", []float32{1}),
		model.NewRecord("c", []float32{3}),
		model.NewRecord("d", []float32{6}),
	}
	self := newArray(t, recs...)

	require.NoError(t, vecmatch.Match(context.Background(), self, self, vecmatch.Named(distance.Euclidean),
		vecmatch.WithLimit(2), vecmatch.WithExcludeSelf()))
	assert.Equal(t, []string{"b", "c"}, self.At(0).MatchIDs())
	assert.Equal(t, []string{"a", "c"}, self.At(1).MatchIDs())
	assert.Equal(t, []string{"b", "a"}, self.At(2).MatchIDs(), "equal distances keep the lower target index")
	assert.Equal(t, []string{"c", "b"}, self.At(3).MatchIDs())
}

func TestMatch_ExcludeSelfWithMaxLimit(t *testing.T) {
	self := newArray(t,
		model.NewRecord("a", []float32{0}),
		model.NewRecord("b", []float32{1}),
		model.NewRecord("c", []float32{3}),
	)

	for _, opts := range [][]vecmatch.Option{
		{vecmatch.WithLimit(math.MaxInt), vecmatch.WithExcludeSelf()},
		{vecmatch.WithLimit(math.MaxInt), vecmatch.WithExcludeSelf(), vecmatch.WithBatchSize(2)},
	} {
		require.NoError(t, vecmatch.Match(context.Background(), self, self, vecmatch.Named(distance.Euclidean), opts...))
		assert.Equal(t, [][]string{{"b", "c"}, {"a", "c"}, {"b", "a"}}, matchIDs(self))
	}
}

func TestMatch_CycleFreeWithSharedRecords(t *testing.T) {
	rng := testutil.NewRNG(5)
	shared := testutil.Records("s", rng.UniformVectors(6, 3))
	src := newArray(t, shared...)
	tgt := newArray(t, append(shared[:3:3], testutil.Records("t", rng.UniformVectors(6, 3))...)...)

	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean), vecmatch.WithLimit(9)))

	// Run the reverse direction too so targets carry their own matches.
	require.NoError(t, vecmatch.Match(context.Background(), tgt, src, vecmatch.Named(distance.Euclidean), vecmatch.WithLimit(6)))
	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean), vecmatch.WithLimit(9)))

	for _, a := range []*collection.Array{src, tgt} {
		for _, r := range a.Records() {
			for _, m := range r.Matches {
				assert.Empty(t, m.Record.Matches)
			}
		}
	}
}

func TestMatch_Normalization(t *testing.T) {
	rng := testutil.NewRNG(6)
	src := randomArray(t, rng, "q", 6, 4)
	tgt := randomArray(t, rng, "t", 30, 4)

	t.Run("UnitRange", func(t *testing.T) {
		for _, batch := range []int{0, 7} {
			opts := []vecmatch.Option{vecmatch.WithLimit(10), vecmatch.WithNormalization(0, 1)}
			if batch > 0 {
				opts = append(opts, vecmatch.WithBatchSize(batch))
			}
			require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean), opts...))
			for _, r := range src.Records() {
				for _, s := range scores(t, r, distance.Euclidean) {
					assert.GreaterOrEqual(t, s, float32(0))
					assert.LessOrEqual(t, s, float32(1))
				}
			}
		}
	})

	t.Run("Inverted", func(t *testing.T) {
		require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean),
			vecmatch.WithLimit(10), vecmatch.WithNormalization(1, 0)))
		for _, r := range src.Records() {
			s := scores(t, r, distance.Euclidean)
			assert.InDelta(t, 1.0, s[0], 1e-6, "closest match gets the full score")
			for i := 1; i < len(s); i++ {
				assert.GreaterOrEqual(t, s[i-1], s[i])
			}
		}
	})

	t.Run("GlobalEqualsInMemory", func(t *testing.T) {
		require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean),
			vecmatch.WithLimit(5), vecmatch.WithNormalization(0, 1)))
		want := scores(t, src.At(2), distance.Euclidean)

		require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean),
			vecmatch.WithLimit(5), vecmatch.WithNormalization(0, 1),
			vecmatch.WithBatchSize(4), vecmatch.WithOnlineNormalization(vecmatch.Global)))
		assert.InDeltaSlice(t, want, scores(t, src.At(2), distance.Euclidean), 1e-5)
	})
}

func TestMatch_OnlineAgreesWithInMemory(t *testing.T) {
	src := newArray(t,
		model.NewRecord("q0", []float32{0, 0}),
		model.NewRecord("q1", []float32{5, 1}),
	)
	tgt := newArray(t, testutil.Records("t", [][]float32{{1, 1}, {4, 4}, {0, 2}, {6, 0}, {3, 3}})...)

	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean),
		vecmatch.WithLimit(3), vecmatch.WithBatchSize(5)))
	want := matchIDs(src)

	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean),
		vecmatch.WithLimit(3), vecmatch.WithBatchSize(1)))
	assert.Equal(t, want, matchIDs(src))

	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean),
		vecmatch.WithLimit(3)))
	assert.Equal(t, want, matchIDs(src))
	assert.Equal(t, []string{"t0", "t2", "t4"}, want[0])
}

func TestMatch_OnlineRandomized(t *testing.T) {
	rng := testutil.NewRNG(7)
	src := randomArray(t, rng, "q", 10, 8)
	tgt := randomArray(t, rng, "t", 97, 8)
	rc := resource.NewController(resource.Config{MaxWorkers: 4})

	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Cityblock), vecmatch.WithLimit(6)))
	want := matchIDs(src)

	for _, batch := range []int{1, 10, 96, 97, 200} {
		require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Cityblock),
			vecmatch.WithLimit(6), vecmatch.WithBatchSize(batch), vecmatch.WithParallelism(4), vecmatch.WithResourceController(rc)))
		assert.Equal(t, want, matchIDs(src), "batch size %d", batch)
	}
	assert.Zero(t, rc.MemoryUsage())
}

func TestMatch_StoredTarget(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(8)
	src := randomArray(t, rng, "q", 4, 5)
	records := testutil.Records("t", rng.UniformVectors(40, 5))
	records[3].Tags = map[string]any{"kind": "special"}

	store := blobstore.NewMemoryStore()
	require.NoError(t, collection.WriteStored(ctx, store, "targets", records, collection.WithRowsPerBlock(6)))
	stored, err := collection.OpenStored(ctx, store, "targets")
	require.NoError(t, err)
	defer stored.Close()

	require.NoError(t, vecmatch.Match(ctx, src, newArray(t, records...), vecmatch.Named(distance.Euclidean), vecmatch.WithLimit(5)))
	want := matchIDs(src)

	require.NoError(t, vecmatch.Match(ctx, src, stored, vecmatch.Named(distance.Euclidean), vecmatch.WithLimit(5), vecmatch.WithBatchSize(7)))
	assert.Equal(t, want, matchIDs(src))
	for _, m := range src.At(0).Matches {
		assert.Len(t, m.Record.Embedding, 5)
	}

	require.NoError(t, vecmatch.Match(ctx, src, stored, vecmatch.Named(distance.Euclidean), vecmatch.WithLimit(5), vecmatch.WithBatchSize(7), vecmatch.WithOnlyID()))
	assert.Equal(t, want, matchIDs(src))
	for _, m := range src.At(0).Matches {
		assert.Nil(t, m.Record.Embedding)
	}

	err = vecmatch.Match(ctx, src, stored, vecmatch.Named(distance.Euclidean), vecmatch.WithSparse())
	assert.ErrorIs(t, err, vecmatch.ErrInvalidArgument)
}

func TestMatch_SharedControllerWithStoredTarget(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rng := testutil.NewRNG(14)
	src := randomArray(t, rng, "q", 5, 8)
	records := testutil.Records("t", rng.UniformVectors(100, 8))

	store := blobstore.NewMemoryStore()
	require.NoError(t, collection.WriteStored(ctx, store, "t", records, collection.WithRowsPerBlock(10)))

	require.NoError(t, vecmatch.Match(ctx, src, newArray(t, records...), vecmatch.Named(distance.Euclidean), vecmatch.WithLimit(3)))
	want := matchIDs(src)

	rc := resource.NewController(resource.Config{MemoryLimitBytes: 4096})
	stored, err := collection.OpenStored(ctx, store, "t",
		collection.WithCacheBytes(1<<20), collection.WithResourceController(rc))
	require.NoError(t, err)
	defer stored.Close()

	// A warm cache holds 3200 bytes; a 5x100 distance block needs 2000 more.
	_, err = stored.Embeddings(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3200), rc.MemoryUsage())

	for _, opts := range [][]vecmatch.Option{
		{vecmatch.WithLimit(3)},
		{vecmatch.WithLimit(3), vecmatch.WithBatchSize(25)},
		{vecmatch.WithLimit(3), vecmatch.WithBatchSize(25), vecmatch.WithParallelism(2)},
	} {
		opts = append(opts, vecmatch.WithResourceController(rc))
		require.NoError(t, vecmatch.Match(ctx, src, stored, vecmatch.Named(distance.Euclidean), opts...))
		assert.Equal(t, want, matchIDs(src))
		assert.LessOrEqual(t, rc.MemoryUsage(), int64(4096))
	}

	require.NoError(t, stored.Close())
	assert.Zero(t, rc.MemoryUsage())
}

func TestMatch_Sparse(t *testing.T) {
	rng := testutil.NewRNG(9)
	src := newArray(t, testutil.SparseRecords("q", rng.SparseVectors(5, 40, 0.2))...)
	tgt := newArray(t, testutil.SparseRecords("t", rng.SparseVectors(30, 40, 0.2))...)

	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean),
		vecmatch.WithLimit(4), vecmatch.WithSparse(), vecmatch.WithMetricName("l2")))
	sparse := make([][]float32, src.Len())
	for i, r := range src.Records() {
		sparse[i] = scores(t, r, "l2")
	}

	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean),
		vecmatch.WithLimit(4), vecmatch.WithMetricName("l2")))
	for i, r := range src.Records() {
		assert.InDeltaSlice(t, scores(t, r, "l2"), sparse[i], 1e-4)
	}
}

func TestMatch_CustomMetric(t *testing.T) {
	src := newArray(t, model.NewRecord("a", []float32{1, 0}))
	tgt := newArray(t, testutil.Records("t", [][]float32{{1, 0}, {0, 1}, {-1, 0}})...)

	// Negative dot product: larger similarity, smaller distance.
	negDot := func(x, y *matrix.Dense) (*matrix.Dense, error) {
		return distance.Cdist(x, y, func(a, b []float32) float32 {
			var s float32
			for i := range a {
				s += a[i] * b[i]
			}
			return -s
		})
	}

	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Custom("negdot", negDot)))
	assert.Equal(t, []string{"t0", "t1", "t2"}, src.At(0).MatchIDs())
	assert.Equal(t, []float32{-1, 0, 1}, scores(t, src.At(0), "negdot"))

	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Custom("negdot", negDot), vecmatch.WithMetricName("sim")))
	_, ok := src.At(0).Matches[0].Score("negdot")
	assert.False(t, ok)
	assert.Equal(t, []float32{-1, 0, 1}, scores(t, src.At(0), "sim"))
}

func TestMatch_Validation(t *testing.T) {
	rng := testutil.NewRNG(10)
	src := randomArray(t, rng, "q", 2, 3)
	tgt := randomArray(t, rng, "t", 3, 3)
	src.At(0).AppendMatch(model.Stub("keep"), "m", 1)

	euclid := vecmatch.Named(distance.Euclidean)
	dense := func(x, y *matrix.Dense) (*matrix.Dense, error) { return distance.Cdist(x, y, distance.EuclideanDistance) }

	tests := []struct {
		name   string
		metric vecmatch.Metric
		opts   []vecmatch.Option
		also   error
	}{
		{"ZeroLimit", euclid, []vecmatch.Option{vecmatch.WithLimit(0)}, nil},
		{"NegativeLimit", euclid, []vecmatch.Option{vecmatch.WithLimit(-3)}, nil},
		{"ZeroBatch", euclid, []vecmatch.Option{vecmatch.WithBatchSize(0)}, nil},
		{"SparseBatched", euclid, []vecmatch.Option{vecmatch.WithSparse(), vecmatch.WithBatchSize(2)}, nil},
		{"ZeroMetric", vecmatch.Metric{}, nil, nil},
		{"UnknownMetric", vecmatch.Named("hamming-ish"), nil, vecmatch.ErrUnsupportedMetric},
		{"UnknownSparseMetric", vecmatch.Named("hamming-ish"), []vecmatch.Option{vecmatch.WithSparse()}, vecmatch.ErrUnsupportedMetric},
		{"UnnamedCustom", vecmatch.Custom("", dense), nil, nil},
		{"SparseCustom", vecmatch.Custom("d", dense), []vecmatch.Option{vecmatch.WithSparse()}, nil},
		{"UnknownMode", euclid, []vecmatch.Option{vecmatch.WithOnlineNormalization(vecmatch.NormalizationMode(9))}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vecmatch.Match(context.Background(), src, tgt, tt.metric, tt.opts...)
			require.ErrorIs(t, err, vecmatch.ErrInvalidArgument)
			if tt.also != nil {
				assert.ErrorIs(t, err, tt.also)
			}
			assert.Equal(t, []string{"keep"}, src.At(0).MatchIDs(), "source mutated on validation failure")
		})
	}

	assert.ErrorIs(t, vecmatch.Match(context.Background(), nil, tgt, euclid), vecmatch.ErrInvalidArgument)
	assert.ErrorIs(t, vecmatch.Match(context.Background(), src, nil, euclid), vecmatch.ErrInvalidArgument)
}

func TestMatch_DimensionMismatch(t *testing.T) {
	src := newArray(t, model.NewRecord("a", []float32{1, 2, 3}))
	src.At(0).AppendMatch(model.Stub("keep"), "m", 1)
	tgt := newArray(t, model.NewRecord("b", []float32{1, 2}))

	for _, opts := range [][]vecmatch.Option{nil, {vecmatch.WithBatchSize(1)}, {vecmatch.WithSparse()}} {
		err := vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean), opts...)
		require.ErrorIs(t, err, vecmatch.ErrShapeMismatch)

		var dm *vecmatch.ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 3, dm.Expected)
		assert.Equal(t, 2, dm.Actual)
		assert.Equal(t, []string{"keep"}, src.At(0).MatchIDs())
	}
}

func TestMatch_CustomShapeError(t *testing.T) {
	src := newArray(t, model.NewRecord("a", []float32{1, 2}))
	tgt := newArray(t, model.NewRecord("b", []float32{1, 2}))

	broken := func(x, y *matrix.Dense) (*matrix.Dense, error) {
		return nil, &distance.ShapeError{XCols: 2, YCols: 5}
	}
	err := vecmatch.Match(context.Background(), src, tgt, vecmatch.Custom("broken", broken))
	var dm *vecmatch.ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 5, dm.Actual)
	assert.ErrorIs(t, err, vecmatch.ErrShapeMismatch)
}

func TestMatch_CustomResultShape(t *testing.T) {
	src := newArray(t, model.NewRecord("a", []float32{1, 2}))
	src.At(0).AppendMatch(model.Stub("keep"), "m", 0)
	tgt := newArray(t, model.NewRecord("b", []float32{1, 2}), model.NewRecord("c", []float32{2, 2}))

	short := func(x, y *matrix.Dense) (*matrix.Dense, error) {
		return matrix.NewDense(x.Rows, y.Rows-1), nil
	}
	empty := func(_, _ *matrix.Dense) (*matrix.Dense, error) {
		return nil, nil
	}

	for _, fn := range []distance.PairwiseFunc{short, empty} {
		err := vecmatch.Match(context.Background(), src, tgt, vecmatch.Custom("broken", fn))
		assert.ErrorIs(t, err, vecmatch.ErrShapeMismatch)
		var dm *vecmatch.ErrDimensionMismatch
		assert.NotErrorAs(t, err, &dm)
		assert.Equal(t, []string{"keep"}, src.At(0).MatchIDs())
	}
}

func TestMatch_InvalidEmbeddingType(t *testing.T) {
	src := newArray(t, model.NewRecord("a", []float32{1, 2}))
	tgt := newArray(t, model.NewRecord("b", []float32{1, 2}), model.Stub("c"))

	err := vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean), vecmatch.WithBatchSize(1))
	assert.ErrorIs(t, err, vecmatch.ErrInvalidEmbeddingType)
}

func TestMatch_EmptyIsNoop(t *testing.T) {
	src := newArray(t, model.NewRecord("a", []float32{1}))
	src.At(0).AppendMatch(model.Stub("keep"), "m", 1)
	empty := newArray(t)

	metrics := &vecmatch.BasicMetricsCollector{}
	require.NoError(t, vecmatch.Match(context.Background(), src, empty, vecmatch.Named(distance.Euclidean), vecmatch.WithMetricsCollector(metrics)))
	require.NoError(t, vecmatch.Match(context.Background(), empty, src, vecmatch.Named(distance.Euclidean)))
	assert.Equal(t, []string{"keep"}, src.At(0).MatchIDs())
	assert.Zero(t, metrics.GetStats().MatchCount)
}

func TestMatch_CanceledContext(t *testing.T) {
	rng := testutil.NewRNG(11)
	src := randomArray(t, rng, "q", 3, 3)
	tgt := randomArray(t, rng, "t", 30, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := vecmatch.Match(ctx, src, tgt, vecmatch.Named(distance.Euclidean), vecmatch.WithBatchSize(4))
	assert.ErrorIs(t, err, context.Canceled)
	for _, r := range src.Records() {
		assert.Empty(t, r.Matches)
	}
}

func TestMatch_MetricsAndLogging(t *testing.T) {
	rng := testutil.NewRNG(12)
	src := randomArray(t, rng, "q", 3, 3)
	tgt := randomArray(t, rng, "t", 10, 3)

	var buf bytes.Buffer
	logger := vecmatch.NewLogger(newJSONHandler(&buf))
	metrics := &vecmatch.BasicMetricsCollector{}

	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Named(distance.Euclidean),
		vecmatch.WithLimit(2), vecmatch.WithBatchSize(4), vecmatch.WithLogger(logger), vecmatch.WithMetricsCollector(metrics)))

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.MatchCount)
	assert.Zero(t, stats.MatchErrors)
	assert.Equal(t, int64(3), stats.BatchCount)
	assert.Equal(t, int64(10), stats.BatchRows)
	assert.Equal(t, int64(3), stats.SourceRecords)
	assert.Equal(t, int64(10), stats.TargetRecords)

	assert.Contains(t, buf.String(), `"msg":"match completed"`)
	assert.Contains(t, buf.String(), `"msg":"batch scored"`)
	assert.Contains(t, buf.String(), `"matches":6`)

	err := vecmatch.Match(context.Background(), src, newArray(t, model.NewRecord("x", []float32{1})), vecmatch.Named(distance.Euclidean),
		vecmatch.WithLogger(logger), vecmatch.WithMetricsCollector(metrics))
	require.Error(t, err)
	assert.Equal(t, int64(1), metrics.GetStats().MatchErrors)
	assert.Contains(t, buf.String(), `"msg":"match failed"`)
}

func TestMatch_NaNDistancesRankLast(t *testing.T) {
	src := newArray(t, model.NewRecord("a", []float32{0}))
	tgt := newArray(t, testutil.Records("t", [][]float32{{1}, {2}, {3}})...)

	nanFirst := func(x, y *matrix.Dense) (*matrix.Dense, error) {
		d, err := distance.Cdist(x, y, distance.EuclideanDistance)
		if err != nil {
			return nil, err
		}
		d.Set(0, 0, float32(math.NaN()))
		return d, nil
	}
	require.NoError(t, vecmatch.Match(context.Background(), src, tgt, vecmatch.Custom("nan", nanFirst), vecmatch.WithLimit(3)))
	assert.Equal(t, []string{"t1", "t2", "t0"}, src.At(0).MatchIDs())
}

func TestErrDimensionMismatch(t *testing.T) {
	cause := errors.New("boom")
	err := error(&vecmatch.ErrDimensionMismatch{Expected: 4, Actual: 2})
	assert.EqualError(t, err, "dimension mismatch: expected 4, got 2")
	assert.ErrorIs(t, err, vecmatch.ErrShapeMismatch)
	assert.NotErrorIs(t, err, cause)
}

func TestMatch_MidStreamFailureLeavesSourceUntouched(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(13)
	src := randomArray(t, rng, "q", 3, 4)
	for _, r := range src.Records() {
		r.AppendMatch(model.Stub("keep"), "m", 0)
	}

	inner := blobstore.NewMemoryStore()
	require.NoError(t, collection.WriteStored(ctx, inner, "t", testutil.Records("t", rng.UniformVectors(20, 4)), collection.WithRowsPerBlock(5)))
	faulty := blobstore.NewFaultyStore(inner)
	faulty.AddRule("/vectors", blobstore.Fault{FailAfterBytes: 100})

	stored, err := collection.OpenStored(ctx, faulty, "t")
	require.NoError(t, err)
	defer stored.Close()

	err = vecmatch.Match(ctx, src, stored, vecmatch.Named(distance.Euclidean), vecmatch.WithBatchSize(5))
	require.ErrorIs(t, err, blobstore.ErrInjected)
	for _, r := range src.Records() {
		assert.Equal(t, []string{"keep"}, r.MatchIDs())
	}
}
