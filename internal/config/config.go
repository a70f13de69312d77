// Package config loads opamsnap settings from a TOML file and OPAMSNAP_*
// environment variables. Precedence, lowest to highest: file, environment,
// command-line flags (applied by the CLI on top of the loaded Config).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML values can be written as "500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config holds every tunable the run command accepts.
type Config struct {
	DatasetTarget     string   `toml:"dataset_target"`
	RegistryURL       string   `toml:"registry_url"`
	Checkpoint        string   `toml:"checkpoint"`
	Concurrency       int      `toml:"concurrency"`
	IncludePrerelease bool     `toml:"include_prerelease"`
	RetryAttempts     int      `toml:"retry_attempts"`
	RetryBackoff      Duration `toml:"retry_backoff"`
	RequestTimeout    Duration `toml:"request_timeout"`
	StatusAddr        string   `toml:"status_addr"`
}

// Load reads configuration from path, then overlays OPAMSNAP_* environment
// variables. An empty path falls back to the default location; a missing
// file is not an error, but a malformed one is.
func Load(path string) (Config, error) {
	var cfg Config

	explicit := path != ""
	if !explicit {
		path = defaultPath()
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if explicit || !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// defaultPath locates the config file under XDG config conventions.
func defaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "opamsnap", "config.toml")
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("OPAMSNAP_DATASET_TARGET"); v != "" {
		c.DatasetTarget = v
	}
	if v := os.Getenv("OPAMSNAP_REGISTRY_URL"); v != "" {
		c.RegistryURL = v
	}
	if v := os.Getenv("OPAMSNAP_CHECKPOINT"); v != "" {
		c.Checkpoint = v
	}
	if v := os.Getenv("OPAMSNAP_STATUS_ADDR"); v != "" {
		c.StatusAddr = v
	}
	if v := os.Getenv("OPAMSNAP_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OPAMSNAP_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	if v := os.Getenv("OPAMSNAP_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OPAMSNAP_RETRY_ATTEMPTS: %w", err)
		}
		c.RetryAttempts = n
	}
	if v := os.Getenv("OPAMSNAP_INCLUDE_PRERELEASE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OPAMSNAP_INCLUDE_PRERELEASE: %w", err)
		}
		c.IncludePrerelease = b
	}
	if v := os.Getenv("OPAMSNAP_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("OPAMSNAP_RETRY_BACKOFF: %w", err)
		}
		c.RetryBackoff = Duration{d}
	}
	if v := os.Getenv("OPAMSNAP_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("OPAMSNAP_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = Duration{d}
	}
	return nil
}
