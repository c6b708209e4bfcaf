// Package config loads eventgate configuration from EVENTGATE_* environment variables and
// operator rule files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/Mindburn-Labs/eventgate/pkg/archive"
	"github.com/Mindburn-Labs/eventgate/pkg/eventtype"
	"github.com/Mindburn-Labs/eventgate/pkg/notify"
	"github.com/Mindburn-Labs/eventgate/pkg/observability"
	"github.com/Mindburn-Labs/eventgate/pkg/registry"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "EVENTGATE_"

// Config holds process configuration.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`

	// MaxUpdateAttempts bounds re-validation after a concurrent update.
	MaxUpdateAttempts int   `env:"MAX_UPDATE_ATTEMPTS" envDefault:"3"`
	MinRetentionMs    int64 `env:"MIN_RETENTION_MS" envDefault:"10800000"`
	MaxRetentionMs    int64 `env:"MAX_RETENTION_MS" envDefault:"345600000"`

	// MetaSchemaPath replaces the embedded meta-schema when set.
	MetaSchemaPath string `env:"META_SCHEMA_PATH"`
	// RulesPath points at a YAML file of expression rules.
	RulesPath string `env:"RULES_PATH"`

	Store     registry.StoreConfig `envPrefix:"STORE_"`
	Archive   archive.Config       `envPrefix:"ARCHIVE_"`
	Notify    notify.Config        `envPrefix:"NOTIFY_"`
	Telemetry observability.Config `envPrefix:"OTEL_"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.MaxUpdateAttempts < 1 {
		errs = append(errs, fmt.Errorf("MAX_UPDATE_ATTEMPTS must be at least 1, got %d", c.MaxUpdateAttempts))
	}
	if c.MinRetentionMs < 0 || c.MinRetentionMs > c.MaxRetentionMs {
		errs = append(errs, fmt.Errorf("retention bounds [%d, %d] are invalid", c.MinRetentionMs, c.MaxRetentionMs))
	}
	return errors.Join(errs...)
}

// ParseLogLevel maps DEBUG, INFO, WARN or ERROR (any case) to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// Defaults returns the configuration an empty environment yields.
func Defaults() *Config {
	return &Config{
		LogLevel:          "INFO",
		MaxUpdateAttempts: registry.DefaultMaxAttempts,
		MinRetentionMs:    eventtype.DefaultMinRetentionMs,
		MaxRetentionMs:    eventtype.DefaultMaxRetentionMs,
	}
}
