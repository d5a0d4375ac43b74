// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and the environment on top of the defaults.
// - Errors wrap this package's sentinels so callers can errors.Is them.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds the in-memory run queue.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`

	// WorkerCount sets the number of pipeline workers.
	WorkerCount int `koanf:"worker_count" validate:"gte=1"`

	// DedupeSize sets how many upload digests are remembered.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=1"`

	// MaxRuns caps how many runs are retained; 0 keeps all of them.
	MaxRuns int `koanf:"max_runs" validate:"gte=0"`

	// MaxUploadBytes caps request bodies on upload endpoints.
	MaxUploadBytes int64 `koanf:"max_upload_bytes" validate:"gte=1"`

	// UploadsPerSecond and UploadBurst rate-limit upload endpoints.
	// A zero rate disables limiting.
	UploadsPerSecond float64 `koanf:"uploads_per_second" validate:"gte=0"`
	UploadBurst      int     `koanf:"upload_burst" validate:"gte=1"`

	// TypeInconsistencyThreshold is the share of numeric-looking cells
	// above which a text column is reported as inconsistently typed.
	TypeInconsistencyThreshold float64 `koanf:"type_inconsistency_threshold" validate:"gt=0,lt=1"`

	// ClipOutliers clips numeric outliers to the Tukey fences while cleaning.
	ClipOutliers bool `koanf:"clip_outliers"`

	// TopK bounds the frequency table of text columns.
	TopK int `koanf:"top_k" validate:"gte=1"`

	// NarrativeBackend is rule-based or none.
	NarrativeBackend string `koanf:"narrative_backend" validate:"oneof=rule-based none"`

	// RunTimeoutMS bounds a single pipeline run.
	RunTimeoutMS int `koanf:"run_timeout_ms" validate:"gte=1"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                   "info",
		LogFormat:                  "text",
		Addr:                       ":9080",
		QueueSize:                  1024,
		WorkerCount:                runtime.NumCPU(),
		DedupeSize:                 10_000,
		MaxRuns:                    1000,
		MaxUploadBytes:             32 << 20,
		UploadsPerSecond:           20,
		UploadBurst:                40,
		TypeInconsistencyThreshold: 0.3,
		ClipOutliers:               false,
		TopK:                       10,
		NarrativeBackend:           "rule-based",
		RunTimeoutMS:               60_000,
	}
}

// RunTimeout returns RunTimeoutMS as a duration.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutMS) * time.Millisecond
}
