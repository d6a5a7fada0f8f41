// Package config handles configuration loading and management for
// conductor. It supports XDG config paths, project-level overrides,
// environment variables, and live reload on file change.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for conductor.
type Config struct {
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Events   EventsConfig   `mapstructure:"events"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	State    StateConfig    `mapstructure:"state"`
	Log      LogConfig      `mapstructure:"log"`
}

// DispatchConfig holds task dispatch settings.
type DispatchConfig struct {
	// Timeout bounds how long a dispatch waits for its worker.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxConcurrentTasks is the advisory in-flight task limit.
	// Zero means unlimited.
	MaxConcurrentTasks int `mapstructure:"max_concurrent_tasks"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	// HistoryCapacity is the size of the bounded event history ring.
	HistoryCapacity int `mapstructure:"history_capacity"`
}

// MonitorConfig holds status monitor settings.
type MonitorConfig struct {
	// Enabled toggles the background status poller.
	Enabled bool `mapstructure:"enabled"`
	// Interval is the polling period.
	Interval time.Duration `mapstructure:"interval"`
	// PublishSnapshots makes each poll emit a monitor:snapshot event.
	PublishSnapshots bool `mapstructure:"publish_snapshots"`
}

// StateConfig holds persistence settings.
type StateConfig struct {
	// Enabled toggles the SQLite journal.
	Enabled bool `mapstructure:"enabled"`
	// Path overrides the database location. Empty means the project
	// database when inside a project, the global one otherwise.
	Path string `mapstructure:"path"`
}

// LogConfig holds debug log settings.
type LogConfig struct {
	// DebugFile is an optional path for the orchestrator debug log.
	DebugFile string `mapstructure:"debug_file"`
}

// Load loads configuration with the following precedence (highest to
// lowest):
// 1. Environment variables (CONDUCTOR_*)
// 2. Project config (.conductor/config.yaml in cwd or a parent)
// 3. User config (~/.config/conductor/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("CONDUCTOR")
	v.AutomaticEnv()
	v.BindEnv("dispatch.timeout", "CONDUCTOR_DISPATCH_TIMEOUT")
	v.BindEnv("state.path", "CONDUCTOR_STATE_PATH")
	v.BindEnv("log.debug_file", "CONDUCTOR_DEBUG_FILE")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Watch reloads the config file at path whenever it changes and calls
// onChange with the fresh configuration. Parse failures keep the last
// good config and are reported through onError, which may be nil.
func Watch(path string, onChange func(*Config), onError func(error)) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg := &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload config: %w", err))
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return v, nil
}

// WriteDefault writes the default configuration as YAML to path,
// creating parent directories as needed. It refuses to overwrite an
// existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	cfg := Default()
	doc := map[string]any{
		"dispatch": map[string]any{
			"timeout":              cfg.Dispatch.Timeout.String(),
			"max_concurrent_tasks": cfg.Dispatch.MaxConcurrentTasks,
		},
		"events": map[string]any{
			"history_capacity": cfg.Events.HistoryCapacity,
		},
		"monitor": map[string]any{
			"enabled":           cfg.Monitor.Enabled,
			"interval":          cfg.Monitor.Interval.String(),
			"publish_snapshots": cfg.Monitor.PublishSnapshots,
		},
		"state": map[string]any{
			"enabled": cfg.State.Enabled,
			"path":    cfg.State.Path,
		},
		"log": map[string]any{
			"debug_file": cfg.Log.DebugFile,
		},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if
// one exists in the current directory or a parent.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("dispatch.timeout", "30s")
	v.SetDefault("dispatch.max_concurrent_tasks", 0)

	v.SetDefault("events.history_capacity", 100)

	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.interval", "5s")
	v.SetDefault("monitor.publish_snapshots", false)

	v.SetDefault("state.enabled", true)
	v.SetDefault("state.path", "")

	v.SetDefault("log.debug_file", "")
}

// getUserConfigDir returns the XDG config directory for conductor.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "conductor")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "conductor")
	}
	return filepath.Join(home, ".config", "conductor")
}

// findProjectConfig searches for .conductor/config.yaml in the current
// directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".conductor", "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Dispatch: DispatchConfig{
			Timeout:            30 * time.Second,
			MaxConcurrentTasks: 0,
		},
		Events: EventsConfig{
			HistoryCapacity: 100,
		},
		Monitor: MonitorConfig{
			Enabled:  false,
			Interval: 5 * time.Second,
		},
		State: StateConfig{
			Enabled: true,
		},
	}
}
