package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.warchive/config.toml.
type Config struct {
	DefaultSession string    `toml:"default_session"`
	Reconnect      Reconnect `toml:"reconnect"`
	Ingest         Ingest    `toml:"ingest"`
}

// Reconnect tunes the disconnect retry loop.
type Reconnect struct {
	MaxAttempts int `toml:"max_attempts"`
	BaseDelayMs int `toml:"base_delay_ms"`
	CapDelayMs  int `toml:"cap_delay_ms"`
}

// Ingest bounds the enrichment lookups performed while normalizing a message.
type Ingest struct {
	LookupTimeoutMs int `toml:"lookup_timeout_ms"`
	MediaTimeoutMs  int `toml:"media_timeout_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Reconnect: Reconnect{
			MaxAttempts: 5,
			BaseDelayMs: 1000,
			CapDelayMs:  30000,
		},
		Ingest: Ingest{
			LookupTimeoutMs: 5000,
			MediaTimeoutMs:  15000,
		},
	}
}

// Load reads config from the given path, filling unset tuning values with
// defaults. Returns an error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault reads config from path, falling back to Default when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Validate checks that all tuning values are usable.
func (c *Config) Validate() error {
	if c.Reconnect.MaxAttempts <= 0 {
		return fmt.Errorf("reconnect.max_attempts must be positive, got %d", c.Reconnect.MaxAttempts)
	}
	if c.Reconnect.BaseDelayMs <= 0 {
		return fmt.Errorf("reconnect.base_delay_ms must be positive, got %d", c.Reconnect.BaseDelayMs)
	}
	if c.Reconnect.CapDelayMs < c.Reconnect.BaseDelayMs {
		return fmt.Errorf("reconnect.cap_delay_ms (%d) must be >= base_delay_ms (%d)",
			c.Reconnect.CapDelayMs, c.Reconnect.BaseDelayMs)
	}
	if c.Ingest.LookupTimeoutMs <= 0 {
		return fmt.Errorf("ingest.lookup_timeout_ms must be positive, got %d", c.Ingest.LookupTimeoutMs)
	}
	if c.Ingest.MediaTimeoutMs <= 0 {
		return fmt.Errorf("ingest.media_timeout_ms must be positive, got %d", c.Ingest.MediaTimeoutMs)
	}
	return nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = def.Reconnect.MaxAttempts
	}
	if c.Reconnect.BaseDelayMs == 0 {
		c.Reconnect.BaseDelayMs = def.Reconnect.BaseDelayMs
	}
	if c.Reconnect.CapDelayMs == 0 {
		c.Reconnect.CapDelayMs = def.Reconnect.CapDelayMs
	}
	if c.Ingest.LookupTimeoutMs == 0 {
		c.Ingest.LookupTimeoutMs = def.Ingest.LookupTimeoutMs
	}
	if c.Ingest.MediaTimeoutMs == 0 {
		c.Ingest.MediaTimeoutMs = def.Ingest.MediaTimeoutMs
	}
}

// BaseDelay returns the reconnect base delay as a duration.
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.Reconnect.BaseDelayMs) * time.Millisecond
}

// CapDelay returns the reconnect delay cap as a duration.
func (c *Config) CapDelay() time.Duration {
	return time.Duration(c.Reconnect.CapDelayMs) * time.Millisecond
}

// LookupTimeout returns the contact/group lookup deadline as a duration.
func (c *Config) LookupTimeout() time.Duration {
	return time.Duration(c.Ingest.LookupTimeoutMs) * time.Millisecond
}

// MediaTimeout returns the media download deadline as a duration.
func (c *Config) MediaTimeout() time.Duration {
	return time.Duration(c.Ingest.MediaTimeoutMs) * time.Millisecond
}
