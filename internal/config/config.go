// Package config provides configuration loading and defaults for the
// keepalived daemon.
//
// Configuration is loaded from a TOML file in the daemon's data
// directory. The package handles logging settings, the symbolic signal
// actions routed through the dispatcher, the optional health probe, and
// the notify-script allow list with sensible defaults.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/mscbg/keepalived/internal/atomicfile"
	"github.com/mscbg/keepalived/internal/paths"
	"github.com/mscbg/keepalived/internal/signals"
)

//go:generate go run github.com/mscbg/keepalived/cmd/genconfig

// CurrentVersion is the config schema version this build reads.
const CurrentVersion = 1

// FixedActions lists the symbolic action names with a built-in signal
// mapping. Configuration may additionally name one extension action.
var FixedActions = []string{"STOP", "RELOAD", "DATA", "STATS"}

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level daemon configuration.
type Config struct {
	// Version is the config schema version.
	Version int `toml:"version"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
	// Daemon holds process-level settings.
	Daemon DaemonConfig `toml:"daemon"`
	// Signals selects which symbolic actions are routed through the
	// signal dispatcher.
	Signals SignalsConfig `toml:"signals"`
	// Health holds the optional HTTP health probe settings.
	Health HealthConfig `toml:"health"`
	// Scripts holds notify-script settings.
	Scripts ScriptsConfig `toml:"scripts"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (debug, info, notice, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// DaemonConfig holds process-level settings.
type DaemonConfig struct {
	// PIDFile overrides the PID file name inside the data directory.
	// Empty selects the default.
	PIDFile string `toml:"pidfile"`
}

// SignalsConfig selects the symbolic actions handled by the daemon.
type SignalsConfig struct {
	// Enabled lists the action names installed at startup. Valid names
	// are the fixed actions plus ExtensionName when set.
	Enabled []string `toml:"enabled"`
	// ExtensionName is an optional application-specific action name.
	ExtensionName string `toml:"extension_name"`
	// ExtensionSignum is the signal number for ExtensionName, typically
	// in the realtime range.
	ExtensionSignum int `toml:"extension_signum"`
}

// HealthConfig holds the optional HTTP health probe settings.
type HealthConfig struct {
	// URL is the endpoint probed periodically; empty disables probing.
	URL string `toml:"url"`
	// IntervalSeconds is the time between probes.
	IntervalSeconds int `toml:"interval_seconds"`
	// TimeoutSeconds bounds a single probe attempt.
	TimeoutSeconds int `toml:"timeout_seconds"`
	// RetryMax is the number of retries per probe.
	RetryMax int `toml:"retry_max"`
}

// ScriptsConfig holds notify-script settings.
type ScriptsConfig struct {
	// Notify is the script executed on STOP/RELOAD events; empty
	// disables script execution.
	Notify string `toml:"notify"`
	// Allow is the list of glob patterns a script path must match to be
	// executed.
	Allow []string `toml:"allow"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
		Signals: SignalsConfig{
			Enabled: slices.Clone(FixedActions),
		},
		Health: HealthConfig{
			IntervalSeconds: 30,
			TimeoutSeconds:  5,
			RetryMax:        2,
		},
		Scripts: ScriptsConfig{
			Allow: []string{"/etc/keepalived/**", "/usr/lib/keepalived/**"},
		},
	}
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file from the data directory.
// If the file doesn't exist, returns DefaultConfig.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to disk as TOML.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "notice": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable
// ranges. Registration failures derived from these settings are treated
// by the daemon as fatal configuration errors, so everything checkable
// ahead of time is rejected here.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version %d (this build reads version %d)",
			c.Version, CurrentVersion)
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level %q: must be debug, info, notice, warn, or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log max_size_mb must be positive, got %d", c.Log.MaxSizeMB)
	}

	for _, name := range c.Signals.Enabled {
		if slices.Contains(FixedActions, name) {
			continue
		}
		if c.Signals.ExtensionName != "" && name == c.Signals.ExtensionName {
			continue
		}
		return fmt.Errorf("unknown signal action %q: valid actions are %s",
			name, strings.Join(c.actionNames(), ", "))
	}
	if c.Signals.ExtensionName != "" {
		if slices.Contains(FixedActions, c.Signals.ExtensionName) {
			return fmt.Errorf("extension_name %q collides with a fixed action", c.Signals.ExtensionName)
		}
		if c.Signals.ExtensionSignum < 1 || c.Signals.ExtensionSignum > signals.MaxSignal {
			return fmt.Errorf("extension_signum %d out of range 1..%d",
				c.Signals.ExtensionSignum, signals.MaxSignal)
		}
	} else if c.Signals.ExtensionSignum != 0 {
		return fmt.Errorf("extension_signum set without extension_name")
	}

	if c.Health.URL != "" {
		if c.Health.IntervalSeconds <= 0 {
			return fmt.Errorf("health interval_seconds must be positive, got %d", c.Health.IntervalSeconds)
		}
		if c.Health.TimeoutSeconds <= 0 {
			return fmt.Errorf("health timeout_seconds must be positive, got %d", c.Health.TimeoutSeconds)
		}
		if c.Health.RetryMax < 0 {
			return fmt.Errorf("health retry_max must not be negative, got %d", c.Health.RetryMax)
		}
	}

	for _, pattern := range c.Scripts.Allow {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid script allow pattern %q", pattern)
		}
	}
	return nil
}

// actionNames returns every action name this config can legally enable.
func (c *Config) actionNames() []string {
	names := slices.Clone(FixedActions)
	if c.Signals.ExtensionName != "" {
		names = append(names, c.Signals.ExtensionName)
	}
	return names
}

// ///////////////////////////////////////////////
// Script Allow List
// ///////////////////////////////////////////////

// ScriptAllowed reports whether path matches one of the configured
// allow patterns. An empty allow list permits nothing.
func (c *Config) ScriptAllowed(path string) bool {
	for _, pattern := range c.Scripts.Allow {
		matched, err := doublestar.Match(pattern, path)
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
