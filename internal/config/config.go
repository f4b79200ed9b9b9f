// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and environment variables.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendAzure  = "azure"
	BackendS3     = "s3"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

const maxTimerMinutes = 240

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text, json or tint.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorageBackend selects the object store: azure, s3, sqlite or memory.
	StorageBackend string `koanf:"storage_backend"`

	// DataContainer holds the shared documents (meetings, roster, event info, payments).
	DataContainer string `koanf:"data_container"`

	// AttendanceContainer holds attendee documents.
	AttendanceContainer string `koanf:"attendance_container"`

	AzureAccount  string `koanf:"azure_account"`
	AzureEndpoint string `koanf:"azure_endpoint"`
	AzureSASToken string `koanf:"azure_sas_token"`

	S3Region    string `koanf:"s3_region"`
	S3Endpoint  string `koanf:"s3_endpoint"`
	S3Bucket    string `koanf:"s3_bucket"`
	S3AccessKey string `koanf:"s3_access_key"`
	S3SecretKey string `koanf:"s3_secret_key"`
	S3PathStyle bool   `koanf:"s3_path_style"`

	SQLitePath string `koanf:"sqlite_path"`

	// StorageTimeoutMS bounds a single remote store request.
	StorageTimeoutMS int `koanf:"storage_timeout_ms"`

	// StorageRetryAttempts and StorageRetryBaseMS tune retries of idempotent reads.
	StorageRetryAttempts int `koanf:"storage_retry_attempts"`
	StorageRetryBaseMS   int `koanf:"storage_retry_base_ms"`

	// PollIntervalMS is how often the shared meeting list is checked for external changes.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// EventQueueSize bounds the in-memory change event queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of change dispatch workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many idempotency keys are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	TreasurerJWTSecret      string `koanf:"treasurer_jwt_secret"`
	TreasurerSessionMinutes int    `koanf:"treasurer_session_minutes"`

	// TreasurerPassword seeds the stored treasurer password when none is set.
	TreasurerPassword string `koanf:"treasurer_password"`

	// TimerDefaultMinutes is the duration of newly created timers.
	TimerDefaultMinutes int `koanf:"timer_default_minutes"`

	// MaxTimers caps the number of timer sessions held in memory.
	MaxTimers int `koanf:"max_timers"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":8080",
		StorageBackend:          BackendMemory,
		DataContainer:           "app-data",
		AttendanceContainer:     "event-attendance",
		S3Region:                "us-east-1",
		SQLitePath:              "data/onetoone.db",
		StorageTimeoutMS:        10_000,
		StorageRetryAttempts:    3,
		StorageRetryBaseMS:      100,
		PollIntervalMS:          30_000,
		EventQueueSize:          1024,
		WorkerCount:             1,
		DedupeSize:              10_000,
		TreasurerSessionMinutes: 120,
		TimerDefaultMinutes:     60,
		MaxTimers:               256,
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DataContainer == "" || c.AttendanceContainer == "":
		return fmt.Errorf("%w: containers must not be empty", ErrInvalidConfig)
	case c.StorageTimeoutMS <= 0 || c.PollIntervalMS <= 0:
		return fmt.Errorf("%w: storage timeout and poll interval must be positive", ErrInvalidConfig)
	case c.StorageRetryAttempts < 0 || c.StorageRetryBaseMS <= 0:
		return fmt.Errorf("%w: invalid storage retry settings", ErrInvalidConfig)
	case c.EventQueueSize <= 0 || c.WorkerCount <= 0 || c.DedupeSize <= 0 || c.MaxTimers <= 0:
		return fmt.Errorf("%w: queue_size, worker_count, dedupe_size and max_timers must be positive", ErrInvalidConfig)
	case c.TreasurerSessionMinutes <= 0:
		return fmt.Errorf("%w: treasurer_session_minutes must be positive", ErrInvalidConfig)
	case c.TimerDefaultMinutes < 1 || c.TimerDefaultMinutes > maxTimerMinutes:
		return fmt.Errorf("%w: timer_default_minutes must be within 1..%d", ErrInvalidConfig, maxTimerMinutes)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json", "tint":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}

	switch c.StorageBackend {
	case BackendAzure:
		if c.AzureAccount == "" && c.AzureEndpoint == "" {
			return fmt.Errorf("%w: azure backend needs azure_account or azure_endpoint", ErrInvalidConfig)
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("%w: s3 backend needs s3_bucket", ErrInvalidConfig)
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite backend needs sqlite_path", ErrInvalidConfig)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown storage_backend %q", ErrInvalidConfig, c.StorageBackend)
	}
	return nil
}

// StorageTimeout returns StorageTimeoutMS as a duration.
func (c *Config) StorageTimeout() time.Duration {
	return time.Duration(c.StorageTimeoutMS) * time.Millisecond
}

// StorageRetryBase returns StorageRetryBaseMS as a duration.
func (c *Config) StorageRetryBase() time.Duration {
	return time.Duration(c.StorageRetryBaseMS) * time.Millisecond
}

// PollInterval returns PollIntervalMS as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// TreasurerSession returns the treasurer session lifetime.
func (c *Config) TreasurerSession() time.Duration {
	return time.Duration(c.TreasurerSessionMinutes) * time.Minute
}

// TimerDefault returns the default timer duration.
func (c *Config) TimerDefault() time.Duration {
	return time.Duration(c.TimerDefaultMinutes) * time.Minute
}
