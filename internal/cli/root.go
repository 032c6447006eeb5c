// Package cli implements the vecmatch command line tool.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/hupe1980/vecmatch"
	"github.com/spf13/cobra"
)

const rootLongDesc string = `vecmatch computes exact k-nearest-neighbor matches between collections of
embedded records.

Collections are record files (.json, .yaml, .msgpack) or stored collections
addressed by reference:
  dir://path/to/root/name      local directory
  s3://bucket/prefix/name      Amazon S3 (default AWS credential chain)
  minio://bucket/prefix/name   MinIO or other S3-compatible storage

Run:
  vecmatch pack   --input docs.json --output dir://data/docs
  vecmatch match  --source queries.json --target dir://data/docs --batch-size 4096
  vecmatch ls     dir://data`

const rootShortDesc string = "vecmatch - brute-force k-NN matching"

// rootCommander holds the settings shared by all subcommands.
type rootCommander struct {
	configPath string
	debug      bool

	cacheBytes int64
	ioLimit    int64
	s3Region   string
	s3Endpoint string
	minio      MinIOConfig

	cfg Config
}

// NewRootCmd returns the vecmatch command tree.
func NewRootCmd() *cobra.Command {
	root := &rootCommander{}

	cmd := &cobra.Command{
		Use:          "vecmatch",
		Short:        rootShortDesc,
		Long:         rootLongDesc,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return root.load(cmd)
		},
	}

	defaults := DefaultConfig()
	pf := cmd.PersistentFlags()
	pf.StringVar(&root.configPath, "config", "", "YAML config file")
	pf.BoolVarP(&root.debug, "debug", "d", false, "Enable debug logging")
	pf.Int64Var(&root.cacheBytes, "cache-bytes", defaults.Storage.CacheBytes, "Decoded block cache size per stored collection")
	pf.Int64Var(&root.ioLimit, "io-limit", 0, "Read throughput limit in bytes per second (0 = unlimited)")
	pf.StringVar(&root.s3Region, "s3-region", "", "AWS region for s3:// references")
	pf.StringVar(&root.s3Endpoint, "s3-endpoint", "", "Custom S3 endpoint URL")
	pf.StringVar(&root.minio.Endpoint, "minio-endpoint", "", "MinIO endpoint (host:port)")
	pf.StringVar(&root.minio.AccessKey, "minio-access-key", "", "MinIO access key")
	pf.StringVar(&root.minio.SecretKey, "minio-secret-key", "", "MinIO secret key")
	pf.BoolVar(&root.minio.Secure, "minio-secure", false, "Use TLS for MinIO")

	cmd.AddCommand(
		newMatchCmd(root),
		newPackCmd(root),
		newLsCmd(root),
		newMetricsCmd(),
		newVersionCmd(),
	)

	return cmd
}

// load reads the config file and lets explicitly set flags override it.
func (r *rootCommander) load(cmd *cobra.Command) error {
	cfg, err := LoadConfig(r.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("cache-bytes") {
		cfg.Storage.CacheBytes = r.cacheBytes
	}
	if flags.Changed("io-limit") {
		cfg.Storage.IOLimitBytesPerSec = r.ioLimit
	}
	if flags.Changed("s3-region") {
		cfg.Storage.S3.Region = r.s3Region
	}
	if flags.Changed("s3-endpoint") {
		cfg.Storage.S3.Endpoint = r.s3Endpoint
	}
	if flags.Changed("minio-endpoint") {
		cfg.Storage.MinIO.Endpoint = r.minio.Endpoint
	}
	if flags.Changed("minio-access-key") {
		cfg.Storage.MinIO.AccessKey = r.minio.AccessKey
	}
	if flags.Changed("minio-secret-key") {
		cfg.Storage.MinIO.SecretKey = r.minio.SecretKey
	}
	if flags.Changed("minio-secure") {
		cfg.Storage.MinIO.Secure = r.minio.Secure
	}

	r.cfg = cfg
	return nil
}

func (r *rootCommander) logger() *vecmatch.Logger {
	if r.debug {
		return vecmatch.NewTextLogger(slog.LevelDebug)
	}
	return vecmatch.NewTextLogger(slog.LevelWarn)
}
