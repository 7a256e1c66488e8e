// Package config resolves runner settings from defaults, an optional .env file and
// CASEBOOK_* environment variables. Command-line flags are applied on top by cmd/casebook.
package config

import (
	"os"
	"strconv"

	"github.com/YuminosukeSato/casebook/pkg/errors"
	"github.com/YuminosukeSato/casebook/pkg/log"
	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvOutDir     = "CASEBOOK_OUT_DIR"
	EnvSeed       = "CASEBOOK_SEED"
	EnvLogLevel   = "CASEBOOK_LOG_LEVEL"
	EnvJobs       = "CASEBOOK_JOBS"
	EnvPlots      = "CASEBOOK_PLOTS"
	EnvExportData = "CASEBOOK_EXPORT_DATA"
	EnvLogFormat  = "CASEBOOK_LOG_FORMAT"
)

// Config holds the runner settings.
type Config struct {
	OutDir     string
	Seed       uint64
	LogLevel   string
	LogFormat  string // "console" or "json"
	Jobs       int
	Plots      bool
	ExportData bool
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		OutDir:    "casebook-out",
		Seed:      42,
		LogLevel:  "info",
		LogFormat: "console",
		Jobs:      1,
		Plots:     true,
	}
}

// Load applies envFile (when it exists) and the environment to the defaults. Variables
// already set in the process environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, errors.Wrapf(err, "load %s", envFile)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "stat %s", envFile)
		}
	}

	cfg := Default()
	cfg.OutDir = getEnvOrDefault(EnvOutDir, cfg.OutDir)
	cfg.LogLevel = getEnvOrDefault(EnvLogLevel, cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault(EnvLogFormat, cfg.LogFormat)

	var err error
	if cfg.Seed, err = getEnvUintOrDefault(EnvSeed, cfg.Seed); err != nil {
		return nil, err
	}
	if cfg.Jobs, err = getEnvIntOrDefault(EnvJobs, cfg.Jobs); err != nil {
		return nil, err
	}
	if cfg.Plots, err = getEnvBoolOrDefault(EnvPlots, cfg.Plots); err != nil {
		return nil, err
	}
	if cfg.ExportData, err = getEnvBoolOrDefault(EnvExportData, cfg.ExportData); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate checks every field.
func (c *Config) Validate() error {
	if c.OutDir == "" {
		return errors.NewValidationError("out_dir", "must not be empty", c.OutDir)
	}
	if c.Jobs < 1 {
		return errors.NewValidationError("jobs", "must be >= 1", c.Jobs)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.NewValidationError("log_level", "must be debug, info, warn or error", c.LogLevel)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return errors.NewValidationError("log_format", "must be console or json", c.LogFormat)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.NewValidationError(key, "must be an integer", value)
	}
	return v, nil
}

func getEnvUintOrDefault(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.NewValidationError(key, "must be a non-negative integer", value)
	}
	return v, nil
}

func getEnvBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.NewValidationError(key, "must be a boolean", value)
	}
	return v, nil
}
