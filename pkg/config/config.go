// Package config loads css-coverage settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no config file is named explicitly.
const DefaultFile = ".css-coverage.yaml"

// EnvPrefix prefixes the environment variables that override file values.
const EnvPrefix = "CSS_COVERAGE_"

// Config holds the settings shared by all commands. Command line flags
// that are set explicitly take precedence over these values.
type Config struct {
	// MinLineCoverage fails analyze when the line coverage ratio is lower.
	MinLineCoverage float64 `yaml:"min_line_coverage"`
	// MinByteCoverage fails analyze when the byte coverage ratio is lower.
	MinByteCoverage float64 `yaml:"min_byte_coverage"`
	// Include keeps only stylesheets whose URL matches one of the globs.
	Include []string `yaml:"include"`
	// Exclude drops stylesheets whose URL matches one of the globs.
	Exclude []string `yaml:"exclude"`
	// UTF16Offsets converts browser UTF-16 range offsets to byte offsets.
	UTF16Offsets bool `yaml:"utf16_offsets"`
	// LogLevel is one of error, info, debug or trace.
	LogLevel string `yaml:"log_level"`
	// MaxConcurrency bounds the number of files decoded at once.
	MaxConcurrency int `yaml:"max_concurrency"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		UTF16Offsets:   true,
		LogLevel:       "info",
		MaxConcurrency: 8,
	}
}

// Load reads path on top of the defaults and then applies environment
// overrides, including those from a .env file in the working directory.
// An empty path reads DefaultFile if it exists.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvPrefix + "MIN_LINE_COVERAGE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sMIN_LINE_COVERAGE: %w", EnvPrefix, err)
		}
		c.MinLineCoverage = f
	}
	if v, ok := lookup(EnvPrefix + "MIN_BYTE_COVERAGE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sMIN_BYTE_COVERAGE: %w", EnvPrefix, err)
		}
		c.MinByteCoverage = f
	}
	if v, ok := lookup(EnvPrefix + "UTF16_OFFSETS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sUTF16_OFFSETS: %w", EnvPrefix, err)
		}
		c.UTF16Offsets = b
	}
	if v, ok := lookup(EnvPrefix + "MAX_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_CONCURRENCY: %w", EnvPrefix, err)
		}
		c.MaxConcurrency = n
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.MinLineCoverage < 0 || c.MinLineCoverage > 1 {
		return fmt.Errorf("min_line_coverage must be between 0 and 1, got %v", c.MinLineCoverage)
	}
	if c.MinByteCoverage < 0 || c.MinByteCoverage > 1 {
		return fmt.Errorf("min_byte_coverage must be between 0 and 1, got %v", c.MinByteCoverage)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if _, err := c.URLFilter(); err != nil {
		return err
	}
	return nil
}

