package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables (prefixed SKIM_, dots replaced by underscores) take
// precedence over values from config files. Returns a populated Config or an
// error if loading/validation fails; validation failures are fatal at
// startup, before any job is scheduled.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; the environment covers it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("SKIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface env-only keys through Unmarshal;
	// keys without defaults must be bound explicitly.
	if err := v.BindEnv("database.url"); err != nil {
		return nil, fmt.Errorf("failed to bind environment variable: %w", err)
	}
	if err := v.BindEnv("llm.gemini_api_key"); err != nil {
		return nil, fmt.Errorf("failed to bind environment variable: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("llm.model_name", "gemini-2.0-flash")

	v.SetDefault("source.base_url", "https://hacker-news.firebaseio.com/v0")
	v.SetDefault("source.request_timeout", "30s")
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.retry_base_delay", "1s")

	v.SetDefault("sync.interval", "2m")
	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.rate_per_second", 20.0)

	v.SetDefault("backfill.interval", "5m")
	v.SetDefault("backfill.batch_size", 100)
	v.SetDefault("backfill.max_batches", 50)
	v.SetDefault("backfill.horizon_days", 7)
	v.SetDefault("backfill.start_id", 0)
	v.SetDefault("backfill.rate_per_second", 20.0)

	v.SetDefault("recovery.interval", "5m")
	v.SetDefault("recovery.grace_period", "10m")
	v.SetDefault("recovery.max_attempts", 3)
	v.SetDefault("recovery.batch_size", 25)

	v.SetDefault("enrich.batch_size", 5)

	v.SetDefault("agent.interval", "168h")
	v.SetDefault("agent.window_days", 30)
	v.SetDefault("agent.min_tag_usage", 3)
	v.SetDefault("agent.max_proposals", 10)
	v.SetDefault("agent.auto_approve", false)
	v.SetDefault("agent.auto_approve_ceiling", 5)
}
