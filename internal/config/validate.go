package config

import "fmt"

// Validate checks the configuration for invalid values. A fatal config
// error here must stop the runner before it spawns any worker (§7 Config
// invalid).
func Validate(cfg *Config) error {
	if cfg.Worker.BackoffInitial <= 0 {
		return fmt.Errorf("worker.backoff_initial must be > 0")
	}
	if cfg.Worker.BackoffMax < cfg.Worker.BackoffInitial {
		return fmt.Errorf("worker.backoff_max must be >= worker.backoff_initial")
	}
	if cfg.Worker.JitterRatio < 0 || cfg.Worker.JitterRatio > 1 {
		return fmt.Errorf("worker.jitter_ratio must be within [0,1], got %f", cfg.Worker.JitterRatio)
	}
	if cfg.Worker.BusinessHoursPoll <= 0 {
		return fmt.Errorf("worker.business_hours_poll must be > 0")
	}
	if cfg.Worker.ProcessBudget <= 0 {
		return fmt.Errorf("worker.process_budget must be > 0")
	}
	if cfg.Worker.SuccessCacheTTL <= 0 {
		return fmt.Errorf("worker.success_cache_ttl must be > 0")
	}

	if cfg.Claim.RetryInitialInterval <= 0 {
		return fmt.Errorf("claim.retry_initial_interval must be > 0")
	}
	if cfg.Claim.RetryMaxInterval < cfg.Claim.RetryInitialInterval {
		return fmt.Errorf("claim.retry_max_interval must be >= claim.retry_initial_interval")
	}
	if cfg.Claim.RetryMaxElapsedTime <= 0 {
		return fmt.Errorf("claim.retry_max_elapsed_time must be > 0")
	}
	if cfg.Claim.RetryMultiplier <= 1 {
		return fmt.Errorf("claim.retry_multiplier must be > 1, got %f", cfg.Claim.RetryMultiplier)
	}

	if cfg.Classify.MaxCacheSize <= 0 {
		return fmt.Errorf("classify.max_cache_size must be > 0")
	}
	if cfg.Classify.TTLSeconds <= 0 {
		return fmt.Errorf("classify.ttl_seconds must be > 0")
	}

	if !cfg.Store.LocalDevMode {
		if cfg.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn (FORMSENDER_DATABASE_URL) is required outside local-dev mode")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
	}

	return nil
}
