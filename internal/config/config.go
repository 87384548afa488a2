package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Source   SourceConfig   `mapstructure:"source" validate:"required"`
	Sync     SyncConfig     `mapstructure:"sync" validate:"required"`
	Backfill BackfillConfig `mapstructure:"backfill" validate:"required"`
	Recovery RecoveryConfig `mapstructure:"recovery" validate:"required"`
	Enrich   EnrichConfig   `mapstructure:"enrich" validate:"required"`
	Agent    AgentConfig    `mapstructure:"agent" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"required,gt=0"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"required,gt=0"`
}

// LLMConfig contains the enrichment service settings.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name" validate:"required"`
}

// SourceConfig contains the external content source settings.
type SourceConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required,gt=0"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"required,gte=1,lte=10"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"required,gt=0"`
}

// SyncConfig tunes the continuous forward-sync job.
type SyncConfig struct {
	Interval  time.Duration `mapstructure:"interval" validate:"required,gt=0"`
	BatchSize int           `mapstructure:"batch_size" validate:"required,gt=0"`
	// RatePerSecond caps item fetches; each job self-throttles rather
	// than sharing a global budget.
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"required,gt=0"`
}

// BackfillConfig tunes the backward historical ingestion job.
type BackfillConfig struct {
	Interval    time.Duration `mapstructure:"interval" validate:"required,gt=0"`
	BatchSize   int           `mapstructure:"batch_size" validate:"required,gt=0"`
	MaxBatches  int           `mapstructure:"max_batches" validate:"required,gt=0"`
	HorizonDays int           `mapstructure:"horizon_days" validate:"required,gt=0"`
	// StartID optionally pins where backfill begins; zero means "start
	// from the source's current max id".
	StartID       int64   `mapstructure:"start_id" validate:"gte=0"`
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"required,gt=0"`
}

// RecoveryConfig tunes the sweep over failed enrichment attempts.
type RecoveryConfig struct {
	Interval    time.Duration `mapstructure:"interval" validate:"required,gt=0"`
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"required,gt=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"required,gte=1"`
	BatchSize   int           `mapstructure:"batch_size" validate:"required,gt=0"`
}

// EnrichConfig tunes the shared summarization/tagging stage.
type EnrichConfig struct {
	BatchSize int `mapstructure:"batch_size" validate:"required,gt=0"`
}

// AgentConfig tunes the taxonomy maintenance agent.
type AgentConfig struct {
	Interval           time.Duration `mapstructure:"interval" validate:"required,gt=0"`
	WindowDays         int           `mapstructure:"window_days" validate:"required,gt=0"`
	MinTagUsage        int           `mapstructure:"min_tag_usage" validate:"required,gte=1"`
	MaxProposals       int           `mapstructure:"max_proposals" validate:"required,gt=0"`
	AutoApprove        bool          `mapstructure:"auto_approve"`
	AutoApproveCeiling int           `mapstructure:"auto_approve_ceiling" validate:"gte=0"`
}
