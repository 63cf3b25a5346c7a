// Package config provides configuration management for the histogram benchmark.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/histobench/pkg/compression"
	apperrors "github.com/histobench/pkg/errors"
	"github.com/histobench/pkg/parallel"
)

// EnvPrefix is the prefix of environment variables that override config keys,
// e.g. HISTOBENCH_BENCH_RUNS=3.
const EnvPrefix = "HISTOBENCH"

// MaxRange mirrors the histogram bin limit.
const MaxRange = 1 << 16

// Config holds all configuration for the application.
type Config struct {
	Bench     BenchConfig     `mapstructure:"bench"`
	Log       LogConfig       `mapstructure:"log"`
	Report    ReportConfig    `mapstructure:"report"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
}

// BenchConfig describes the benchmark sweep.
type BenchConfig struct {
	DatasetSize      int      `mapstructure:"dataset_size"`
	Range            int      `mapstructure:"range"`
	ThreadCounts     []int    `mapstructure:"thread_counts"`
	ChunkSizes       []int    `mapstructure:"chunk_sizes"`
	Runs             int      `mapstructure:"runs"`
	Seed             uint64   `mapstructure:"seed"`              // 0 picks a time-based seed
	GeneratorWorkers int      `mapstructure:"generator_workers"` // 0 means GOMAXPROCS
	Strategies       []string `mapstructure:"strategies"`
	Policies         []string `mapstructure:"policies"`
	Validate         bool     `mapstructure:"validate"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// ReportConfig controls the machine-readable sweep report.
type ReportConfig struct {
	JSONPath    string `mapstructure:"json_path"`
	StorageKey  string `mapstructure:"storage_key"` // upload key; empty disables upload
	// Compression is none, gzip or zstd.
	Compression string `mapstructure:"compression"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`     // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"`     // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path"` // for local storage
}

// DatabaseConfig holds the result store connection configuration.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Type     string `mapstructure:"type"` // sqlite, postgres or mysql
	DSN      string `mapstructure:"dsn"`  // sqlite file path or full DSN
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ProfilingConfig controls pprof capture around a sweep.
type ProfilingConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Dir      string   `mapstructure:"dir"`
	Profiles []string `mapstructure:"profiles"`
}

// Load reads configuration from the specified file path. A missing file
// falls back to defaults; environment variables override both.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("histobench")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/histobench")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromReader loads configuration from content of the given type
// (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return unmarshal(v)
}

// Default returns the default configuration.
func Default() *Config {
	cfg, err := unmarshal(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Bench defaults
	v.SetDefault("bench.dataset_size", 100_000_000)
	v.SetDefault("bench.range", 256)
	v.SetDefault("bench.thread_counts", []int{2, 4, 6, 8, 12, 16})
	v.SetDefault("bench.chunk_sizes", []int{32768, 65536, 131072})
	v.SetDefault("bench.runs", 10)
	v.SetDefault("bench.seed", 0)
	v.SetDefault("bench.generator_workers", 0)
	v.SetDefault("bench.strategies", []string{"atomic", "critical", "reduction"})
	v.SetDefault("bench.policies", []string{"static", "static_chunked", "dynamic"})
	v.SetDefault("bench.validate", true)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Report defaults
	v.SetDefault("report.json_path", "")
	v.SetDefault("report.storage_key", "")
	v.SetDefault("report.compression", "none")

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./reports")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.secret_id", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.domain", "")
	v.SetDefault("storage.scheme", "https")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "histobench.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.database", "histobench")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_conns", 4)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	// Profiling defaults
	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.dir", "./pprof")
	v.SetDefault("profiling.profiles", []string{"cpu", "mutex", "block", "heap"})
}

var knownStrategies = map[string]bool{
	"atomic":      true,
	"critical":    true,
	"local_merge": true,
	"local-merge": true,
	"reduction":   true,
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Bench.Check(); err != nil {
		return err
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		return apperrors.InvalidConfig("unsupported log format: %s", c.Log.Format)
	}

	if _, err := compression.ParseType(c.Report.Compression); err != nil {
		return err
	}

	// Storage credentials are validated by the storage package
	if c.Storage.Type != "local" && c.Storage.Type != "cos" {
		return apperrors.InvalidConfig("unsupported storage type: %s", c.Storage.Type)
	}

	if c.Database.Enabled {
		switch c.Database.Type {
		case "sqlite", "postgres", "mysql":
		default:
			return apperrors.InvalidConfig("unsupported database type: %s", c.Database.Type)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return apperrors.InvalidConfig("metrics address is required when metrics are enabled")
	}
	return nil
}

// Check validates the sweep parameters.
func (b *BenchConfig) Check() error {
	if b.DatasetSize < 0 {
		return apperrors.InvalidConfig("dataset size must be >= 0, got %d", b.DatasetSize)
	}
	if b.Range < 1 || b.Range > MaxRange {
		return apperrors.InvalidConfig("range must be in [1, %d], got %d", MaxRange, b.Range)
	}
	if b.Runs < 1 {
		return apperrors.InvalidConfig("runs must be at least 1, got %d", b.Runs)
	}
	if len(b.ThreadCounts) == 0 {
		return apperrors.InvalidConfig("at least one thread count is required")
	}
	for _, n := range b.ThreadCounts {
		if n < 1 {
			return apperrors.InvalidConfig("thread count must be at least 1, got %d", n)
		}
	}
	for _, n := range b.ChunkSizes {
		if n < 1 {
			return apperrors.InvalidConfig("chunk size must be at least 1, got %d", n)
		}
		if b.DatasetSize > 0 && n > b.DatasetSize {
			return apperrors.InvalidConfig("chunk size %d exceeds dataset size %d", n, b.DatasetSize)
		}
	}
	if b.GeneratorWorkers < 0 {
		return apperrors.InvalidConfig("generator workers must be >= 0, got %d", b.GeneratorWorkers)
	}

	if len(b.Strategies) == 0 {
		return apperrors.InvalidConfig("at least one strategy is required")
	}
	for _, s := range b.Strategies {
		if !knownStrategies[strings.ToLower(strings.TrimSpace(s))] {
			return apperrors.InvalidConfig("unknown strategy: %s", s)
		}
	}
	if len(b.Policies) == 0 {
		return apperrors.InvalidConfig("at least one policy is required")
	}
	chunked := false
	for _, name := range b.Policies {
		p, err := parallel.ParsePolicy(name)
		if err != nil {
			return err
		}
		chunked = chunked || p.Chunked()
	}
	if chunked && len(b.ChunkSizes) == 0 {
		return apperrors.InvalidConfig("chunked policies need at least one chunk size")
	}
	return nil
}
