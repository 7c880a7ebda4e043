// Package config loads the runner's runtime tuning knobs: backoff, cache
// bounds, RPC retry budgets, and the backing-store connection. Structure
// and viper wiring are adapted from the teacher's config package; the
// field set is this domain's (§3, §4.3, §4.4, §4.5, §6).
package config

import "time"

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the runner's root configuration.
type Config struct {
	Worker   WorkerConfig   `mapstructure:"worker"   yaml:"worker"`
	Claim    ClaimConfig    `mapstructure:"claim"    yaml:"claim"`
	Classify ClassifyConfig `mapstructure:"classify" yaml:"classify"`
	Store    StoreConfig    `mapstructure:"store"    yaml:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// WorkerConfig controls §4.2's loop timings. SuccessCacheTTL is loaded and
// validated but not read by the runner: each worker's daily counter uses
// the counter package default of 30 seconds.
type WorkerConfig struct {
	BackoffInitial    time.Duration `mapstructure:"backoff_initial"      yaml:"backoff_initial"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"          yaml:"backoff_max"`
	JitterRatio       float64       `mapstructure:"jitter_ratio"         yaml:"jitter_ratio"`
	BusinessHoursPoll time.Duration `mapstructure:"business_hours_poll"  yaml:"business_hours_poll"`
	ProcessBudget     time.Duration `mapstructure:"process_budget"       yaml:"process_budget"`
	SuccessCacheTTL   time.Duration `mapstructure:"success_cache_ttl"    yaml:"success_cache_ttl"`
}

// ClaimConfig controls the §4.3 retry/breaker policy around the four RPCs.
type ClaimConfig struct {
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval" yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `mapstructure:"retry_max_interval"     yaml:"retry_max_interval"`
	RetryMaxElapsedTime  time.Duration `mapstructure:"retry_max_elapsed_time" yaml:"retry_max_elapsed_time"`
	RetryMultiplier      float64       `mapstructure:"retry_multiplier"       yaml:"retry_multiplier"`
}

// ClassifyConfig holds the §4.4 cache bounds. They are loaded and
// validated but not read by the runner: each worker's classifier uses the
// classify package defaults (256 entries, 600s TTL).
type ClassifyConfig struct {
	MaxCacheSize int `mapstructure:"max_cache_size" yaml:"max_cache_size"`
	TTLSeconds   int `mapstructure:"ttl_seconds"    yaml:"ttl_seconds"`
}

// StoreConfig names the backing store and audit sink connections (§6
// environment surface: URL + credential + environment tag).
type StoreConfig struct {
	PostgresDSN  string `mapstructure:"postgres_dsn"   yaml:"postgres_dsn"`
	MongoURI     string `mapstructure:"mongo_uri"      yaml:"mongo_uri"`
	MongoDB      string `mapstructure:"mongo_database" yaml:"mongo_database"`
	Environment  string `mapstructure:"environment"    yaml:"environment"`
	LocalDevMode bool   `mapstructure:"local_dev_mode" yaml:"local_dev_mode"`
}

// LoggingConfig describes slog output (ambient stack, carried regardless
// of domain non-goals). It is loaded and validated but not read by the
// runner, whose logger is a text handler on stderr with its level set only
// by the --verbose flag.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with the spec's default timings.
func DefaultConfig() *Config {
	return &Config{
		Worker: WorkerConfig{
			BackoffInitial:    1 * time.Second,
			BackoffMax:        30 * time.Second,
			JitterRatio:       0.2,
			BusinessHoursPoll: 60 * time.Second,
			ProcessBudget:     45 * time.Second,
			SuccessCacheTTL:   30 * time.Second,
		},
		Claim: ClaimConfig{
			RetryInitialInterval: 200 * time.Millisecond,
			RetryMaxInterval:     2 * time.Second,
			RetryMaxElapsedTime:  5 * time.Second,
			RetryMultiplier:      2.0,
		},
		Classify: ClassifyConfig{
			MaxCacheSize: 256,
			TTLSeconds:   600,
		},
		Store: StoreConfig{
			MongoDB: "formsender_audit",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
