// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "ROBOT_API_CONFIG"

// Config is the robot API configuration.
type Config struct {
	// Root is robotd's runtime directory holding one subdirectory per
	// board category.
	// Default: /var/robotd
	Root string `yaml:"root"`

	// SocketTimeout bounds every connect, send and read on a board
	// socket.
	// Default: 6s
	SocketTimeout string `yaml:"socket_timeout"`

	// Backoff is the delay before each reconnect attempt after a board
	// connection fails. Its length is the number of attempts.
	// Default: [100ms, 500ms, 1s, 2s, 3s]
	Backoff []string `yaml:"backoff"`

	// StartupWait is how long robot startup waits for a power board
	// endpoint to appear. Zero checks once without waiting.
	// Default: 5s
	StartupWait string `yaml:"startup_wait"`

	// PruneVanished drops boards whose endpoint has disappeared on the
	// next rescan instead of keeping them until a request fails.
	// Default: false
	PruneVanished bool `yaml:"prune_vanished"`

	// Camera configures camera polling.
	Camera CameraConfig `yaml:"camera"`

	// LogLevel is one of debug, info, warn, error.
	// Default: info
	LogLevel string `yaml:"log_level"`
}

// CameraConfig configures camera polling.
type CameraConfig struct {
	// PollInterval is the delay between camera status reads.
	// Default: 100ms
	PollInterval string `yaml:"poll_interval"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Root:          "/var/robotd",
		SocketTimeout: "6s",
		Backoff:       []string{"100ms", "500ms", "1s", "2s", "3s"},
		StartupWait:   "5s",
		Camera: CameraConfig{
			PollInterval: "100ms",
		},
		LogLevel: "info",
	}
}

// Load loads configuration from the file named by ROBOT_API_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your robot.yaml config file, or use --config flag",
			EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// Resolve loads path when it is set, otherwise the file named by
// ROBOT_API_CONFIG when that is set, otherwise returns Default. Binaries
// use it so a robot with no configuration file still runs.
func Resolve(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if os.Getenv(EnvironmentVariable) != "" {
		return Load()
	}
	return Default(), nil
}

// LoadFile loads configuration from path on top of Default and expands
// variables in path fields. It does not validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Root = expandVars(c.Root, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, preferring
// vars over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Root == "" {
		errs = append(errs, fmt.Errorf("root is required"))
	}

	if d, err := time.ParseDuration(c.SocketTimeout); err != nil {
		errs = append(errs, fmt.Errorf("socket_timeout: %w", err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("socket_timeout must be positive, got %s", c.SocketTimeout))
	}

	for i, value := range c.Backoff {
		if d, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("backoff[%d]: %w", i, err))
		} else if d < 0 {
			errs = append(errs, fmt.Errorf("backoff[%d] must not be negative, got %s", i, value))
		}
	}

	if d, err := time.ParseDuration(c.StartupWait); err != nil {
		errs = append(errs, fmt.Errorf("startup_wait: %w", err))
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("startup_wait must not be negative, got %s", c.StartupWait))
	}

	if d, err := time.ParseDuration(c.Camera.PollInterval); err != nil {
		errs = append(errs, fmt.Errorf("camera.poll_interval: %w", err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("camera.poll_interval must be positive, got %s", c.Camera.PollInterval))
	}

	if !slices.Contains(logLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level must be one of: %v", logLevels))
	}

	return errors.Join(errs...)
}

// SocketTimeoutDuration returns SocketTimeout parsed. Call Validate
// first; an unparseable value yields zero.
func (c *Config) SocketTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.SocketTimeout)
	return d
}

// BackoffSchedule returns Backoff parsed, skipping unparseable entries.
// An empty Backoff yields an empty, non-nil schedule (no reconnects); a
// null Backoff yields nil, which selects the default schedule.
func (c *Config) BackoffSchedule() []time.Duration {
	if c.Backoff == nil {
		return nil
	}
	schedule := make([]time.Duration, 0, len(c.Backoff))
	for _, value := range c.Backoff {
		if d, err := time.ParseDuration(value); err == nil {
			schedule = append(schedule, d)
		}
	}
	return schedule
}

// StartupWaitDuration returns StartupWait parsed.
func (c *Config) StartupWaitDuration() time.Duration {
	d, _ := time.ParseDuration(c.StartupWait)
	return d
}

// CameraPollInterval returns Camera.PollInterval parsed.
func (c *Config) CameraPollInterval() time.Duration {
	d, _ := time.ParseDuration(c.Camera.PollInterval)
	return d
}

// SlogLevel returns LogLevel as a slog.Level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
