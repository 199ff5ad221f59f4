// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/sceneweave/sceneweave-api/internal/run"
)

// Static errors for configuration validation.
var (
	// ErrGenAIAPIKeyRequired is returned when GENAI_API_KEY is not set.
	ErrGenAIAPIKeyRequired = errors.New("config: GENAI_API_KEY is required")
	// ErrInvalidSceneBounds is returned when the scene count bounds are inconsistent.
	ErrInvalidSceneBounds = errors.New("config: scene bounds must satisfy 1 <= min <= max")
	// ErrInvalidTopology is returned when DEFAULT_TOPOLOGY is not a known topology.
	ErrInvalidTopology = errors.New("config: DEFAULT_TOPOLOGY must be sequential or parallel")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Content-generation service settings
	GenAIAPIKey  string `env:"GENAI_API_KEY, required" json:"-"` // Masked in JSON
	GenAIBaseURL string `env:"GENAI_BASE_URL, default=https://generativelanguage.googleapis.com" json:"genai_base_url"`
	GenAIModel   string `env:"GENAI_MODEL, default=gemini-2.5-flash" json:"genai_model"`

	// Video-synthesis service settings
	VeoModel     string        `env:"VEO_MODEL, default=veo-2.0-generate-001" json:"veo_model"`
	PollInterval time.Duration `env:"POLL_INTERVAL, default=10s" json:"poll_interval"`

	// Per-stage timeout budgets
	PlanningTimeout  time.Duration `env:"PLANNING_TIMEOUT, default=30s" json:"planning_timeout"`
	RefineTimeout    time.Duration `env:"REFINE_TIMEOUT, default=30s" json:"refine_timeout"`
	SynthesisTimeout time.Duration `env:"SYNTHESIS_TIMEOUT, default=2m" json:"synthesis_timeout"`
	MergeTimeout     time.Duration `env:"MERGE_TIMEOUT, default=30s" json:"merge_timeout"`
	PublishTimeout   time.Duration `env:"PUBLISH_TIMEOUT, default=30s" json:"publish_timeout"`

	// Pipeline settings
	MinScenes           int           `env:"MIN_SCENES, default=1" json:"min_scenes"`
	MaxScenes           int           `env:"MAX_SCENES, default=8" json:"max_scenes"`
	MaxConcurrentScenes int           `env:"MAX_CONCURRENT_SCENES, default=4" json:"max_concurrent_scenes"`
	DefaultTopology     string        `env:"DEFAULT_TOPOLOGY, default=parallel" json:"default_topology"`
	PublishRetries      int           `env:"PUBLISH_RETRIES, default=3" json:"publish_retries"`
	RetryBackoff        time.Duration `env:"RETRY_BACKOFF, default=1s" json:"retry_backoff"`

	// Storage settings
	TempDir  string `env:"TEMP_DIR, default=/tmp/sceneweave" json:"temp_dir"`
	StoreDir string `env:"STORE_DIR, default=/tmp/sceneweave-store" json:"store_dir"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		if strings.Contains(err.Error(), "GENAI_API_KEY") {
			return nil, ErrGenAIAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and consistent.
func (c *Config) Validate() error {
	if c.GenAIAPIKey == "" {
		return ErrGenAIAPIKeyRequired
	}
	if c.MinScenes < 1 || c.MinScenes > c.MaxScenes {
		return ErrInvalidSceneBounds
	}
	if !run.Topology(c.DefaultTopology).IsValid() {
		return ErrInvalidTopology
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, GenAIModel: %s, VeoModel: %s, PollInterval: %s, Topology: %s, Scenes: %d-%d, MaxConcurrentScenes: %d, TempDir: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.GenAIModel,
		c.VeoModel,
		c.PollInterval,
		c.DefaultTopology,
		c.MinScenes,
		c.MaxScenes,
		c.MaxConcurrentScenes,
		c.TempDir,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
