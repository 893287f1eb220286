// Package config handles TOML-based configuration loading and validation.
// The file is parsed as data only; nothing in it is executed.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"oembedder/internal/httputil"
	"oembedder/internal/oembed"
)

// Config holds all application configuration.
type Config struct {
	// Providers is the registry location: an http(s) URL or a local file.
	Providers  string `toml:"providers"`
	JSX        bool   `toml:"jsx"`
	AsyncImage bool   `toml:"async_image"`
	SyncWidget bool   `toml:"sync_widget"`
	Discovery  bool   `toml:"discovery"`
	UserAgent  string `toml:"user_agent"`
	Timeout    string `toml:"timeout"`
	Listen     string `toml:"listen"`
	Debug      bool   `toml:"debug"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Providers: oembed.DefaultRegistryURL,
		UserAgent: httputil.DefaultUserAgent,
		Timeout:   "30s",
		Listen:    "127.0.0.1:8080",
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "oembedder"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "oembedder"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file and merges with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Providers) == "" {
		return fmt.Errorf("providers location cannot be empty")
	}
	if httputil.IsRemote(c.Providers) {
		if err := httputil.ValidateURL(c.Providers); err != nil {
			return fmt.Errorf("providers: %w", err)
		}
	}

	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}

	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
		}
	}

	return nil
}

// TimeoutDuration parses Timeout. An empty value means the client default.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return d, nil
}
