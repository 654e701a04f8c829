// Package config builds the immutable run configuration for fuzzrun.
//
// Precedence, lowest to highest: built-in defaults, FUZZ_* environment
// variables, the YAML config file, CLI flags. The merged Config is
// constructed once before any target executes and is read-only afterwards.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables honored as defaults, overridden by flags.
const (
	EnvFuzzTime          = "FUZZ_TIME"
	EnvJobs              = "FUZZ_JOBS"
	EnvErrorFile         = "FUZZ_ERROR_FILE"
	EnvContinueOnFailure = "FUZZ_CONTINUE_ON_FAILURE"
	EnvVerbose           = "FUZZ_VERBOSE"
	EnvConfigDir         = "FUZZ_CONFIG_DIR"
)

// HistoryConfig configures the optional run-history store.
type HistoryConfig struct {
	// Enabled turns run-history recording on
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the SQLite history database
	DBPath string `yaml:"db_path"`

	// KeepRuns is the number of past runs to retain (0 = unlimited)
	KeepRuns int `yaml:"keep_runs"`
}

// Config holds all fuzzrun run options.
type Config struct {
	// FuzzTime is the fuzzing duration budget per target
	FuzzTime time.Duration `yaml:"fuzz_time"`

	// Jobs is the number of targets executed concurrently (0 = auto-detect)
	Jobs int `yaml:"jobs"`

	// ErrorFile is an optional failure-sink path; failure details are
	// duplicated there, flushed after every write
	ErrorFile string `yaml:"error_file"`

	// ContinueOnFailure keeps dispatching targets after a failure
	ContinueOnFailure bool `yaml:"continue_on_failure"`

	// Verbose enables debug-level console output
	Verbose bool `yaml:"verbose"`

	// ConfigDir is the directory holding config.yaml and run artifacts
	ConfigDir string `yaml:"config_dir"`

	// LogLevel sets console verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// History configures the run-history store
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		FuzzTime:          10 * time.Second,
		Jobs:              0, // Auto-detect
		ErrorFile:         "",
		ContinueOnFailure: false,
		Verbose:           false,
		ConfigDir:         ".fuzzrun",
		LogLevel:          "info",
		History: HistoryConfig{
			Enabled:  true,
			DBPath:   filepath.Join(".fuzzrun", "history.db"),
			KeepRuns: 100,
		},
	}
}

// FromEnv returns the default configuration overlaid with any FUZZ_*
// environment variables. Malformed numeric values are an error rather
// than a silent fallback.
func FromEnv() (*Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv(EnvFuzzTime); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid %s value %q: want positive seconds", EnvFuzzTime, v)
		}
		cfg.FuzzTime = time.Duration(secs) * time.Second
	}
	if v := os.Getenv(EnvJobs); v != "" {
		jobs, err := strconv.Atoi(v)
		if err != nil || jobs < 0 {
			return nil, fmt.Errorf("invalid %s value %q: want non-negative integer", EnvJobs, v)
		}
		cfg.Jobs = jobs
	}
	if v := os.Getenv(EnvErrorFile); v != "" {
		cfg.ErrorFile = v
	}
	if v := os.Getenv(EnvContinueOnFailure); v != "" {
		cfg.ContinueOnFailure = strings.EqualFold(v, "true")
	}
	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Verbose = strings.EqualFold(v, "true")
	}
	if v := os.Getenv(EnvConfigDir); v != "" {
		cfg.ConfigDir = v
	}

	return cfg, nil
}

// LoadFile overlays settings from a YAML config file onto the receiver.
// A missing file is not an error; a malformed file is.
func (c *Config) LoadFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations are written as strings in YAML ("30s", "2m"), so unmarshal
	// through an intermediate struct.
	type yamlConfig struct {
		FuzzTime          string         `yaml:"fuzz_time"`
		Jobs              *int           `yaml:"jobs"`
		ErrorFile         string         `yaml:"error_file"`
		ContinueOnFailure *bool          `yaml:"continue_on_failure"`
		Verbose           *bool          `yaml:"verbose"`
		LogLevel          string         `yaml:"log_level"`
		History           *HistoryConfig `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if yamlCfg.FuzzTime != "" {
		d, err := time.ParseDuration(yamlCfg.FuzzTime)
		if err != nil {
			return fmt.Errorf("invalid fuzz_time %q in %s: %w", yamlCfg.FuzzTime, path, err)
		}
		c.FuzzTime = d
	}
	if yamlCfg.Jobs != nil {
		c.Jobs = *yamlCfg.Jobs
	}
	if yamlCfg.ErrorFile != "" {
		c.ErrorFile = yamlCfg.ErrorFile
	}
	if yamlCfg.ContinueOnFailure != nil {
		c.ContinueOnFailure = *yamlCfg.ContinueOnFailure
	}
	if yamlCfg.Verbose != nil {
		c.Verbose = *yamlCfg.Verbose
	}
	if yamlCfg.LogLevel != "" {
		c.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.History != nil {
		c.History = *yamlCfg.History
	}

	return nil
}

// LoadFromConfigDir overlays settings from <config-dir>/config.yaml.
func (c *Config) LoadFromConfigDir() error {
	return c.LoadFile(filepath.Join(c.ConfigDir, "config.yaml"))
}

// MergeWithFlags merges CLI flag values into the configuration.
// Non-nil pointers override; this lets flags take precedence over both
// the environment and the config file.
func (c *Config) MergeWithFlags(fuzzTime *time.Duration, jobs *int, errorFile *string, continueOnFailure, verbose *bool, configDir *string) {
	if fuzzTime != nil {
		c.FuzzTime = *fuzzTime
	}
	if jobs != nil {
		c.Jobs = *jobs
	}
	if errorFile != nil {
		c.ErrorFile = *errorFile
	}
	if continueOnFailure != nil {
		c.ContinueOnFailure = *continueOnFailure
	}
	if verbose != nil {
		c.Verbose = *verbose
	}
	if configDir != nil {
		c.ConfigDir = *configDir
	}
}

// Validate checks the merged configuration values.
func (c *Config) Validate() error {
	if c.FuzzTime <= 0 {
		return fmt.Errorf("fuzz_time must be > 0, got %v", c.FuzzTime)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must be >= 0, got %d", c.Jobs)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}
	if c.History.KeepRuns < 0 {
		return fmt.Errorf("history.keep_runs must be >= 0, got %d", c.History.KeepRuns)
	}

	return nil
}

// EffectiveJobs resolves the worker count for the given core count.
// A user-specified value wins; otherwise the default is deliberately
// sub-linear so each fuzz subprocess keeps headroom for its own workers:
// above 8 cores use 4 jobs, above 4 cores use 2, else 1.
func (c *Config) EffectiveJobs(cores int) int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	switch {
	case cores > 8:
		return 4
	case cores > 4:
		return 2
	default:
		return 1
	}
}

// CoreBudget computes the per-target GOMAXPROCS hint so that all
// concurrently running sandboxes together do not oversubscribe the host.
func CoreBudget(cores, jobs int) int {
	if jobs <= 0 {
		jobs = 1
	}
	budget := cores / jobs
	if budget < 1 {
		return 1
	}
	return budget
}

// DetectedCores returns the host core count, never less than 1.
func DetectedCores() int {
	cores := runtime.NumCPU()
	if cores < 1 {
		return 1
	}
	return cores
}
