// Package config loads the status bar configuration file.
//
// The file is YAML. Every key is optional: values missing from the file keep
// their defaults, and a missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the configuration of the status bar.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Tray    TrayConfig    `yaml:"tray"`
	Inhibit InhibitConfig `yaml:"inhibit"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// TrayConfig configures the tray client.
type TrayConfig struct {
	// MaxAttempts is the number of connection attempts before giving up.
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay is the wait after the first failed attempt. It doubles after
	// every further failure.
	BaseDelay time.Duration `yaml:"base_delay"`

	// Buffer is the number of events a subscriber may fall behind.
	Buffer int `yaml:"buffer"`

	// Watcher runs an embedded StatusNotifierWatcher when no other process
	// provides one.
	Watcher bool `yaml:"watcher"`
}

// InhibitConfig configures idle inhibition.
type InhibitConfig struct {
	// Backend is "login1" or "none".
	Backend string `yaml:"backend"`

	// Durations are cycled through by the cycle command. 0s means no
	// deadline.
	Durations []time.Duration `yaml:"durations"`

	CommandVar string `yaml:"command_var"`
	InfoVar    string `yaml:"info_var"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address. Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

const (
	BackendLogin1 = "login1"
	BackendNone   = "none"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level: "info",
		},
		Tray: TrayConfig{
			MaxAttempts: 5,
			BaseDelay:   100 * time.Millisecond,
			Buffer:      16,
			Watcher:     true,
		},
		Inhibit: InhibitConfig{
			Backend:    BackendLogin1,
			Durations:  []time.Duration{30 * time.Minute, time.Hour, 2 * time.Hour, 0},
			CommandVar: "inhibit_cmd",
			InfoVar:    "inhibit_info",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/statusbar/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return filepath.Join(dir, "statusbar", "config.yaml")
}

// Load reads the file at path on top of [Default] and validates the result.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports the first invalid value.
func (c Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}

	if c.Tray.MaxAttempts < 1 {
		return fmt.Errorf("tray.max_attempts: must be at least 1, got %d", c.Tray.MaxAttempts)
	}

	if c.Tray.BaseDelay <= 0 {
		return fmt.Errorf("tray.base_delay: must be positive, got %s", c.Tray.BaseDelay)
	}

	if c.Tray.Buffer < 1 {
		return fmt.Errorf("tray.buffer: must be at least 1, got %d", c.Tray.Buffer)
	}

	switch c.Inhibit.Backend {
	case BackendLogin1, BackendNone:
	default:
		return fmt.Errorf("inhibit.backend: unknown backend %q", c.Inhibit.Backend)
	}

	if len(c.Inhibit.Durations) == 0 {
		return errors.New("inhibit.durations: must not be empty")
	}

	for i, d := range c.Inhibit.Durations {
		if d < 0 {
			return fmt.Errorf("inhibit.durations[%d]: must not be negative, got %s", i, d)
		}
	}

	if c.Inhibit.CommandVar == "" || c.Inhibit.InfoVar == "" {
		return errors.New("inhibit: command_var and info_var must be set")
	}

	if c.Inhibit.CommandVar == c.Inhibit.InfoVar {
		return fmt.Errorf("inhibit: command_var and info_var must differ, both are %q", c.Inhibit.CommandVar)
	}

	return nil
}
