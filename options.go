package vecmatch

import (
	"log/slog"

	"github.com/hupe1980/vecmatch/internal/matcher"
	"github.com/hupe1980/vecmatch/internal/minmax"
	"github.com/hupe1980/vecmatch/resource"
)

// DefaultLimit is the number of matches kept per source record when
// WithLimit is not given.
const DefaultLimit = 20

// NormalizationMode selects how batched matching derives the observed
// distance range used by WithNormalization.
type NormalizationMode = matcher.Mode

const (
	// PerBatch rescales each candidate with the row min/max of the target
	// chunk it was scored in.
	PerBatch = matcher.PerBatch
	// Global rescales with the row min/max over the whole target, which
	// yields the same scores as in-memory matching.
	Global = matcher.Global
)

type options struct {
	limit            int
	normalize        *minmax.Range
	metricName       string
	batchSize        int
	batched          bool
	excludeSelf      bool
	sparse           bool
	onlyID           bool
	mode             NormalizationMode
	parallelism      int
	rc               *resource.Controller
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a Match call.
type Option func(*options)

// WithLimit sets the maximum number of matches per source record.
func WithLimit(limit int) Option {
	return func(o *options) {
		o.limit = limit
	}
}

// WithNormalization rescales every score linearly into [lo, hi] using the
// row's observed distance range. lo may be greater than hi, in which case the
// closest match gets the highest score.
func WithNormalization(lo, hi float32) Option {
	return func(o *options) {
		o.normalize = &minmax.Range{Lo: lo, Hi: hi}
	}
}

// WithMetricName sets the key under which scores are stored on each match.
// It defaults to the metric's own name.
func WithMetricName(name string) Option {
	return func(o *options) {
		o.metricName = name
	}
}

// WithBatchSize streams the target in chunks of size rows instead of
// computing the full distance matrix at once.
func WithBatchSize(size int) Option {
	return func(o *options) {
		o.batchSize = size
		o.batched = true
	}
}

// WithExcludeSelf drops matches whose id equals the source record's id.
func WithExcludeSelf() Option {
	return func(o *options) {
		o.excludeSelf = true
	}
}

// WithSparse computes distances on CSR-stacked embeddings. The target must
// implement collection.SparseCollection.
func WithSparse() Option {
	return func(o *options) {
		o.sparse = true
	}
}

// WithOnlyID attaches id-only records instead of hydrating full target
// records.
func WithOnlyID() Option {
	return func(o *options) {
		o.onlyID = true
	}
}

// WithOnlineNormalization selects the normalization mode of batched
// matching. The default is PerBatch.
func WithOnlineNormalization(mode NormalizationMode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithParallelism bounds the number of target chunks or row partitions
// scored concurrently. The default is 1.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithResourceController reserves distance blocks against rc's memory budget
// and takes one of its worker slots per scored block.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithMetricsCollector configures a metrics collector for monitoring Match
// calls. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecmatch.BasicMetricsCollector{}
//	_ = vecmatch.Match(ctx, src, tgt, vecmatch.Named("cosine"), vecmatch.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
//	fmt.Printf("Matches: %d, Avg latency: %dns\n", stats.MatchCount, stats.MatchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for Match calls.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecmatch.NewJSONLogger(slog.LevelInfo)
//	_ = vecmatch.Match(ctx, src, tgt, vecmatch.Named("cosine"), vecmatch.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		limit:            DefaultLimit,
		mode:             PerBatch,
		parallelism:      1,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o *options) validate() error {
	if o.limit <= 0 {
		return invalidArgument("limit must be positive, got %d", o.limit)
	}
	if o.batched && o.batchSize <= 0 {
		return invalidArgument("batch size must be positive, got %d", o.batchSize)
	}
	if o.batched && o.sparse {
		return invalidArgument("sparse matching cannot be batched")
	}
	if o.mode != PerBatch && o.mode != Global {
		return invalidArgument("unknown normalization mode %d", o.mode)
	}
	return nil
}
