package cli

import (
	"context"
	"fmt"

	"github.com/hupe1980/vecmatch"
	"github.com/hupe1980/vecmatch/collection"
	"github.com/hupe1980/vecmatch/resource"
	"github.com/spf13/cobra"
)

const matchLongDesc string = `Match every source record against a target collection.

The source is a record file. The target is a record file or a stored
collection reference. Passing the same file as source and target matches the
collection against itself; combine with --exclude-self.

Matches are printed as JSON (or YAML with --format yaml), one entry per
source record, closest first.

Example:
  vecmatch match --source queries.json --target docs.json --metric euclidean --limit 5
  vecmatch match --source docs.json --target docs.json --exclude-self --normalize 1,0
  vecmatch match --source q.yaml --target s3://bucket/collections/docs --batch-size 4096 --parallelism 4`

const matchShortDesc string = "Match source records against a target"

type matchCommander struct {
	root *rootCommander

	source string
	target string
	format string
	stats  bool

	metric              string
	limit               int
	normalize           []float32
	metricName          string
	batchSize           int
	excludeSelf         bool
	sparse              bool
	onlyID              bool
	onlineNormalization string
	parallelism         int
	memoryLimit         int64
}

func newMatchCmd(root *rootCommander) *cobra.Command {
	cmder := &matchCommander{root: root}

	cmd := &cobra.Command{
		Use:   "match",
		Short: matchShortDesc,
		Long:  matchLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.applyConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	defaults := DefaultConfig().Match
	f := cmd.Flags()
	f.StringVarP(&cmder.source, "source", "s", "", "Source record file (required)")
	f.StringVarP(&cmder.target, "target", "t", "", "Target record file or store reference (required)")
	f.StringVar(&cmder.format, "format", "json", "Output format: json or yaml")
	f.BoolVar(&cmder.stats, "stats", false, "Print match statistics to stderr")
	f.StringVarP(&cmder.metric, "metric", "m", defaults.Metric, "Distance metric (see 'vecmatch metrics')")
	f.IntVarP(&cmder.limit, "limit", "k", defaults.Limit, "Maximum matches per source record")
	f.Float32SliceVar(&cmder.normalize, "normalize", nil, "Rescale scores into lo,hi")
	f.StringVar(&cmder.metricName, "metric-name", "", "Score key (default: metric name)")
	f.IntVar(&cmder.batchSize, "batch-size", 0, "Stream the target in chunks of this many rows (0 = in memory)")
	f.BoolVar(&cmder.excludeSelf, "exclude-self", false, "Drop matches with the source record's own id")
	f.BoolVar(&cmder.sparse, "sparse", false, "Compute distances on sparse embeddings")
	f.BoolVar(&cmder.onlyID, "only-id", false, "Attach match ids only")
	f.StringVar(&cmder.onlineNormalization, "online-normalization", defaults.OnlineNormalization, "Batched normalization: per-batch or global")
	f.IntVarP(&cmder.parallelism, "parallelism", "p", defaults.Parallelism, "Concurrently scored chunks or row partitions")
	f.Int64Var(&cmder.memoryLimit, "memory-limit", 0, "Memory budget for distance blocks and cached target blocks in bytes (0 = unlimited)")

	return cmd
}

// applyConfig fills every flag that was not set explicitly from the config
// file.
func (c *matchCommander) applyConfig(cmd *cobra.Command) error {
	cfg := c.root.cfg.Match
	flags := cmd.Flags()

	if !flags.Changed("metric") {
		c.metric = cfg.Metric
	}
	if !flags.Changed("limit") {
		c.limit = cfg.Limit
	}
	if !flags.Changed("normalize") {
		c.normalize = cfg.Normalize
	}
	if !flags.Changed("metric-name") {
		c.metricName = cfg.MetricName
	}
	if !flags.Changed("batch-size") {
		c.batchSize = cfg.BatchSize
	}
	if !flags.Changed("exclude-self") {
		c.excludeSelf = cfg.ExcludeSelf
	}
	if !flags.Changed("sparse") {
		c.sparse = cfg.Sparse
	}
	if !flags.Changed("only-id") {
		c.onlyID = cfg.OnlyID
	}
	if !flags.Changed("online-normalization") {
		c.onlineNormalization = cfg.OnlineNormalization
	}
	if !flags.Changed("parallelism") {
		c.parallelism = cfg.Parallelism
	}
	if !flags.Changed("memory-limit") {
		c.memoryLimit = cfg.MemoryLimitBytes
	}

	if c.source == "" || c.target == "" {
		return fmt.Errorf("--source and --target are required")
	}
	return nil
}

func (c *matchCommander) options(rc *resource.Controller, metrics vecmatch.MetricsCollector) ([]vecmatch.Option, error) {
	opts := []vecmatch.Option{
		vecmatch.WithLimit(c.limit),
		vecmatch.WithParallelism(c.parallelism),
		vecmatch.WithResourceController(rc),
		vecmatch.WithLogger(c.root.logger()),
		vecmatch.WithMetricsCollector(metrics),
	}

	switch len(c.normalize) {
	case 0:
	case 2:
		opts = append(opts, vecmatch.WithNormalization(c.normalize[0], c.normalize[1]))
	default:
		return nil, fmt.Errorf("--normalize needs two values, got %d", len(c.normalize))
	}

	mode, err := parseMode(c.onlineNormalization)
	if err != nil {
		return nil, err
	}
	opts = append(opts, vecmatch.WithOnlineNormalization(mode))

	if c.metricName != "" {
		opts = append(opts, vecmatch.WithMetricName(c.metricName))
	}
	if c.batchSize != 0 {
		opts = append(opts, vecmatch.WithBatchSize(c.batchSize))
	}
	if c.excludeSelf {
		opts = append(opts, vecmatch.WithExcludeSelf())
	}
	if c.sparse {
		opts = append(opts, vecmatch.WithSparse())
	}
	if c.onlyID {
		opts = append(opts, vecmatch.WithOnlyID())
	}
	return opts, nil
}

func (c *matchCommander) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	storage := c.root.cfg.Storage

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   c.memoryLimit,
		MaxWorkers:         int64(max(c.parallelism, 1)),
		IOLimitBytesPerSec: storage.IOLimitBytesPerSec,
	})
	metrics := &vecmatch.BasicMetricsCollector{}

	opts, err := c.options(rc, metrics)
	if err != nil {
		return err
	}

	sourceRecords, err := loadRecords(ctx, c.source, rc)
	if err != nil {
		return err
	}
	source, err := collection.NewArray(sourceRecords...)
	if err != nil {
		return fmt.Errorf("source %s: %w", c.source, err)
	}

	target, closeTarget, err := c.openTarget(ctx, source, rc, storage)
	if err != nil {
		return err
	}
	defer closeTarget()

	if err := vecmatch.Match(ctx, source, target, vecmatch.Named(c.metric), opts...); err != nil {
		return err
	}

	scoreKey := c.metricName
	if scoreKey == "" {
		scoreKey = c.metric
	}
	if err := writeOutput(cmd.OutOrStdout(), toOutput(source.Records(), scoreKey), c.format); err != nil {
		return err
	}

	if c.stats {
		s := metrics.GetStats()
		fmt.Fprintf(cmd.ErrOrStderr(), "sources=%d targets=%d batches=%d duration=%dns\n",
			s.SourceRecords, s.TargetRecords, s.BatchCount, s.MatchAvgNanos)
	}
	return nil
}

// openTarget returns the target collection and a function releasing it.
func (c *matchCommander) openTarget(ctx context.Context, source *collection.Array, rc *resource.Controller, storage StorageConfig) (collection.Collection, func(), error) {
	noop := func() {}

	if c.target == c.source {
		return source, noop, nil
	}

	if !isStoreRef(c.target) {
		records, err := loadRecords(ctx, c.target, rc)
		if err != nil {
			return nil, nil, err
		}
		arr, err := collection.NewArray(records...)
		if err != nil {
			return nil, nil, fmt.Errorf("target %s: %w", c.target, err)
		}
		return arr, noop, nil
	}

	ref, err := parseStoreRef(c.target, true)
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(ctx, ref, storage)
	if err != nil {
		return nil, nil, err
	}
	stored, err := collection.OpenStored(ctx, store, ref.Name,
		collection.WithCacheBytes(storage.CacheBytes),
		collection.WithResourceController(rc),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", ref, err)
	}
	return stored, func() { _ = stored.Close() }, nil
}

func parseMode(s string) (vecmatch.NormalizationMode, error) {
	switch s {
	case "", vecmatch.PerBatch.String():
		return vecmatch.PerBatch, nil
	case vecmatch.Global.String():
		return vecmatch.Global, nil
	default:
		return 0, fmt.Errorf("unknown online normalization %q (want per-batch or global)", s)
	}
}
