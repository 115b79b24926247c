// Package config handles application configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	// DataDir is the directory for the config file itself
	DataDir string `yaml:"-"`

	// RegistryDir is where live sessions keep their sockets and
	// metadata (default ~/.spyglass)
	RegistryDir string `yaml:"registry_dir"`

	// ScrollbackLines bounds the terminal model's scrollback ring
	ScrollbackLines int `yaml:"scrollback_lines"`

	// DefaultShell is the command run when no argv is given
	DefaultShell string `yaml:"default_shell"`

	// SubscriberQueueChunks caps a subscriber's pending chunk count
	SubscriberQueueChunks int `yaml:"subscriber_queue_chunks"`

	// SubscriberQueueBytes caps a subscriber's pending bytes
	SubscriberQueueBytes int `yaml:"subscriber_queue_bytes"`

	// IdleTimeoutSeconds closes control connections with no traffic
	// for this long. Zero disables the timeout.
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`
}

// IdleTimeout returns the idle timeout as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		DataDir:               defaultDataDir(),
		RegistryDir:           defaultRegistryDir(),
		ScrollbackLines:       10000,
		DefaultShell:          getDefaultShell(),
		SubscriberQueueChunks: 64,
		SubscriberQueueBytes:  1024 * 1024,
		IdleTimeoutSeconds:    0,
	}
}

// Load loads configuration from the config file, falling back to defaults.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(cfg.ConfigFile())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, err
	}

	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// mergeConfig merges file configuration into the default configuration.
// Only non-zero values from file are applied.
func mergeConfig(dst, src *Config) {
	if src.RegistryDir != "" {
		dst.RegistryDir = expandHome(src.RegistryDir)
	}
	if src.ScrollbackLines != 0 {
		dst.ScrollbackLines = src.ScrollbackLines
	}
	if src.DefaultShell != "" {
		dst.DefaultShell = src.DefaultShell
	}
	if src.SubscriberQueueChunks != 0 {
		dst.SubscriberQueueChunks = src.SubscriberQueueChunks
	}
	if src.SubscriberQueueBytes != 0 {
		dst.SubscriberQueueBytes = src.SubscriberQueueBytes
	}
	if src.IdleTimeoutSeconds != 0 {
		dst.IdleTimeoutSeconds = src.IdleTimeoutSeconds
	}
}

// defaultDataDir returns the default config directory.
func defaultDataDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "spyglass")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".spyglass"
	}
	return filepath.Join(home, ".config", "spyglass")
}

// defaultRegistryDir returns the default session registry directory.
func defaultRegistryDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "spyglass")
	}
	return filepath.Join(home, ".spyglass")
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path == "~" || len(path) > 1 && path[0] == '~' && path[1] == '/' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// getDefaultShell returns the user's default shell.
func getDefaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

// ConfigFile returns the path to the config file.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "config.yaml")
}
