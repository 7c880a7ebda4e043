package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from defaults, an optional YAML file, and
// environment variables. Priority (highest to lowest): env vars > config
// file > defaults. CLI flags are not read here.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("FORMSENDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("formsender-runner")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".formsender-runner"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	return Load(path)
}

// applyEnvOverrides reads the backing-store URL/credential/environment-tag
// surface §6 describes, which deliberately does not go through the
// dotted FORMSENDER_* viper namespace since these carry credentials.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FORMSENDER_DATABASE_URL"); v != "" {
		cfg.Store.PostgresDSN = v
	}
	if v := os.Getenv("FORMSENDER_MONGO_URI"); v != "" {
		cfg.Store.MongoURI = v
	}
	if v := os.Getenv("FORMSENDER_ENVIRONMENT"); v != "" {
		cfg.Store.Environment = v
	}
	if v := os.Getenv("FORMSENDER_LOCAL_DEV"); v == "1" || v == "true" {
		cfg.Store.LocalDevMode = true
	}
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("worker.backoff_initial", cfg.Worker.BackoffInitial)
	v.SetDefault("worker.backoff_max", cfg.Worker.BackoffMax)
	v.SetDefault("worker.jitter_ratio", cfg.Worker.JitterRatio)
	v.SetDefault("worker.business_hours_poll", cfg.Worker.BusinessHoursPoll)
	v.SetDefault("worker.process_budget", cfg.Worker.ProcessBudget)
	v.SetDefault("worker.success_cache_ttl", cfg.Worker.SuccessCacheTTL)

	v.SetDefault("claim.retry_initial_interval", cfg.Claim.RetryInitialInterval)
	v.SetDefault("claim.retry_max_interval", cfg.Claim.RetryMaxInterval)
	v.SetDefault("claim.retry_max_elapsed_time", cfg.Claim.RetryMaxElapsedTime)
	v.SetDefault("claim.retry_multiplier", cfg.Claim.RetryMultiplier)

	v.SetDefault("classify.max_cache_size", cfg.Classify.MaxCacheSize)
	v.SetDefault("classify.ttl_seconds", cfg.Classify.TTLSeconds)

	v.SetDefault("store.mongo_database", cfg.Store.MongoDB)
	v.SetDefault("store.environment", cfg.Store.Environment)
	v.SetDefault("store.local_dev_mode", cfg.Store.LocalDevMode)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
