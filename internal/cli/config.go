package cli

import (
	"fmt"
	"os"

	"github.com/hupe1980/vecmatch/collection"
	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration file. Flags given on the command line
// take precedence over file values.
type Config struct {
	Match   MatchConfig   `yaml:"match"`
	Storage StorageConfig `yaml:"storage"`
}

// MatchConfig holds the defaults of the match command.
type MatchConfig struct {
	Metric              string    `yaml:"metric"`
	Limit               int       `yaml:"limit"`
	Normalize           []float32 `yaml:"normalize"`
	MetricName          string    `yaml:"metric_name"`
	BatchSize           int       `yaml:"batch_size"`
	ExcludeSelf         bool      `yaml:"exclude_self"`
	Sparse              bool      `yaml:"sparse"`
	OnlyID              bool      `yaml:"only_id"`
	OnlineNormalization string    `yaml:"online_normalization"`
	Parallelism         int       `yaml:"parallelism"`
	MemoryLimitBytes    int64     `yaml:"memory_limit_bytes"`
}

// StorageConfig configures blob stores and stored collections.
type StorageConfig struct {
	CacheBytes         int64       `yaml:"cache_bytes"`
	IOLimitBytesPerSec int64       `yaml:"io_limit_bytes_per_sec"`
	S3                 S3Config    `yaml:"s3"`
	MinIO              MinIOConfig `yaml:"minio"`
}

// S3Config configures s3:// references. Credentials come from the default
// AWS chain.
type S3Config struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// MinIOConfig configures minio:// references.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Match: MatchConfig{
			Metric:              "cosine",
			Limit:               20,
			OnlineNormalization: "per-batch",
			Parallelism:         1,
		},
		Storage: StorageConfig{
			CacheBytes: collection.DefaultCacheBytes,
		},
	}
}

// LoadConfig reads path over DefaultConfig. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if n := len(cfg.Match.Normalize); n != 0 && n != 2 {
		return cfg, fmt.Errorf("config %s: normalize needs two values, got %d", path, n)
	}
	return cfg, nil
}
