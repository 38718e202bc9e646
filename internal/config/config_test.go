package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.Reconnect.MaxAttempts = 3
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Reconnect.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", loaded.Reconnect.MaxAttempts)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadOrDefaultMissing(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Reconnect.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want default 5", cfg.Reconnect.MaxAttempts)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	// A partial config: only the session name set.
	if err := os.WriteFile(path, []byte("default_session = \"main\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Reconnect.BaseDelayMs != 1000 {
		t.Errorf("BaseDelayMs = %d, want default 1000", cfg.Reconnect.BaseDelayMs)
	}
	if cfg.Ingest.MediaTimeoutMs != 15000 {
		t.Errorf("MediaTimeoutMs = %d, want default 15000", cfg.Ingest.MediaTimeoutMs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero attempts", func(c *Config) { c.Reconnect.MaxAttempts = -1 }, true},
		{"negative base", func(c *Config) { c.Reconnect.BaseDelayMs = -5 }, true},
		{"cap below base", func(c *Config) { c.Reconnect.CapDelayMs = 10 }, true},
		{"zero lookup timeout", func(c *Config) { c.Ingest.LookupTimeoutMs = -1 }, true},
		{"zero media timeout", func(c *Config) { c.Ingest.MediaTimeoutMs = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()
	if cfg.BaseDelay() != time.Second {
		t.Errorf("BaseDelay() = %v, want 1s", cfg.BaseDelay())
	}
	if cfg.CapDelay() != 30*time.Second {
		t.Errorf("CapDelay() = %v, want 30s", cfg.CapDelay())
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
