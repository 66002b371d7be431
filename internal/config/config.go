// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config represents the downloader's tunable defaults, consulted by the
// CLI to fill in flags the caller did not set explicitly.
type Config struct {
	SegmentCount int    `env:"SEGMENT_COUNT" envDefault:"4"`
	WorkerCount  int    `env:"WORKER_COUNT" envDefault:"4"`
	MaxRetries   int    `env:"MAX_RETRIES" envDefault:"3"`
	AllowResume  bool   `env:"ALLOW_RESUME" envDefault:"true"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	StorePath    string `env:"STORE_PATH" envDefault:"segments.db"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	logLevel := strings.ToLower(c.LogLevel)
	isValidLevel := false
	for _, level := range validLogLevels {
		if logLevel == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("invalid log level %q, must be one of: %v", c.LogLevel, validLogLevels)
	}

	if c.SegmentCount < 1 {
		return fmt.Errorf("SEGMENT_COUNT must be >= 1, got: %d", c.SegmentCount)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be >= 1, got: %d", c.WorkerCount)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be >= 0, got: %d", c.MaxRetries)
	}
	if c.StorePath == "" {
		return fmt.Errorf("STORE_PATH cannot be empty")
	}

	return nil
}
