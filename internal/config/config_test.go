package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ListenAddr != ":8080" {
		t.Errorf("Expected default listen addr :8080, got %s", cfg.ListenAddr)
	}
	if cfg.Game.TickInterval.Duration != time.Second {
		t.Errorf("Expected 1s tick interval, got %v", cfg.Game.TickInterval.Duration)
	}
	if cfg.Game.CheckpointEvery != 5 {
		t.Errorf("Expected checkpoint every 5 ticks, got %d", cfg.Game.CheckpointEvery)
	}
	if cfg.Rooms.TTL.Duration != 24*time.Hour {
		t.Errorf("Expected 24h room TTL, got %v", cfg.Rooms.TTL.Duration)
	}
	if cfg.Rooms.SweepInterval.Duration != 30*time.Minute {
		t.Errorf("Expected 30m sweep interval, got %v", cfg.Rooms.SweepInterval.Duration)
	}
}

func TestLoad(t *testing.T) {
	t.Run("EmptyPathReturnsDefaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.ListenAddr != ":8080" {
			t.Errorf("Expected defaults, got %s", cfg.ListenAddr)
		}
	})

	t.Run("FileOverridesDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rtchess.toml")
		body := `
listen_addr = ":9090"
log_level = "DEBUG"

[storage]
in_memory = true

[game]
tick_interval = "250ms"

[rooms]
ttl = "1h"
sweep_interval = "5m"
`
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.ListenAddr != ":9090" {
			t.Errorf("Expected :9090, got %s", cfg.ListenAddr)
		}
		if !cfg.Storage.InMemory {
			t.Error("Expected in_memory true")
		}
		if cfg.Game.TickInterval.Duration != 250*time.Millisecond {
			t.Errorf("Expected 250ms tick, got %v", cfg.Game.TickInterval.Duration)
		}
		// Untouched keys keep their defaults.
		if cfg.Game.CheckpointEvery != 5 {
			t.Errorf("Expected default checkpoint cadence, got %d", cfg.Game.CheckpointEvery)
		}
		if cfg.Rooms.TTL.Duration != time.Hour {
			t.Errorf("Expected 1h TTL, got %v", cfg.Rooms.TTL.Duration)
		}
	})

	t.Run("BadDuration", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(path, []byte("[game]\ntick_interval = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Error("Expected error for unparseable duration")
		}
	})

	t.Run("RejectsNonPositiveInterval", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "zero.toml")
		if err := os.WriteFile(path, []byte("[game]\ntick_interval = \"0s\"\n"), 0644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Error("Expected error for zero tick interval")
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
			t.Error("Expected error for missing file")
		}
	})
}
