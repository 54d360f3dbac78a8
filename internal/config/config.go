// Package config loads the notifykit application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kart-io/notifykit/internal/schedule"
	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify"
	"github.com/kart-io/notifykit/pkg/observability"
)

// Environment variables that override file values.
const (
	EnvLogLevel     = "NOTIFYKIT_LOG_LEVEL"
	EnvAddr         = "NOTIFYKIT_ADDR"
	EnvTimeout      = "NOTIFYKIT_TIMEOUT"
	EnvOTLPEndpoint = "NOTIFYKIT_OTLP_ENDPOINT"
)

// Config is the application configuration read by the CLI.
type Config struct {
	LogLevel   string               `yaml:"log_level"`
	Timeout    time.Duration        `yaml:"timeout"`
	Concurrent bool                 `yaml:"concurrent"`
	Channels   notify.Settings      `yaml:"channels"`
	Server     ServerConfig         `yaml:"server"`
	Telemetry  observability.Config `yaml:"telemetry"`
	Breaker    BreakerConfig        `yaml:"breaker"`
	Schedules  []schedule.Job       `yaml:"schedules"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// BreakerConfig enables a circuit breaker in front of every channel.
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold"`
	MinRequests      uint32        `yaml:"min_requests"`
}

// Notify converts b into notify.BreakerConfig.
func (b BreakerConfig) Notify(l logger.Logger) notify.BreakerConfig {
	return notify.BreakerConfig{
		MaxRequests:      b.MaxRequests,
		Interval:         b.Interval,
		Timeout:          b.Timeout,
		FailureThreshold: b.FailureThreshold,
		MinRequests:      b.MinRequests,
		Logger:           l,
	}
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	nb := notify.DefaultBreakerConfig()
	return &Config{
		LogLevel:   "info",
		Timeout:    10 * time.Second,
		Concurrent: true,
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Telemetry: observability.DefaultConfig(),
		Breaker: BreakerConfig{
			MaxRequests:      nb.MaxRequests,
			Interval:         nb.Interval,
			Timeout:          nb.Timeout,
			FailureThreshold: nb.FailureThreshold,
			MinRequests:      nb.MinRequests,
		},
	}
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v, ok := lookup(EnvOTLPEndpoint); ok && v != "" {
		c.Telemetry.OTLPEndpoint = v
		c.Telemetry.Enabled = true
	}
	return nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		errs = append(errs, errors.New("telemetry.otlp_endpoint is required when telemetry is enabled"))
	}
	if r := c.Telemetry.SampleRate; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_rate must be within [0, 1], got %v", r))
	}
	if c.Breaker.Enabled {
		if t := c.Breaker.FailureThreshold; t <= 0 || t > 1 {
			errs = append(errs, fmt.Errorf("breaker.failure_threshold must be within (0, 1], got %v", t))
		}
		if c.Breaker.Timeout <= 0 {
			errs = append(errs, errors.New("breaker.timeout must be positive"))
		}
	}
	for i, job := range c.Schedules {
		if err := job.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("schedules[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level.
func (c *Config) Level() logger.LogLevel {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.Info
	}
	return level
}
