// Package config loads the server's operational settings from an optional
// TOML file. Gameplay constants (energy curve, cooldowns, rating windows) are
// fixed in their owning packages; config covers only deployment knobs.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML files can spell intervals as "30s" or
// "24h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Config is the full server configuration.
type Config struct {
	// ListenAddr is the address the HTTP listener binds, e.g. ":8080".
	ListenAddr string `toml:"listen_addr"`
	// LogLevel is one of CRITICAL, ERROR, WARNING, NOTICE, INFO, DEBUG.
	LogLevel string `toml:"log_level"`

	Storage StorageConfig `toml:"storage"`
	Game    GameConfig    `toml:"game"`
	Rooms   RoomsConfig   `toml:"rooms"`
}

// StorageConfig controls the embedded store.
type StorageConfig struct {
	// DataDir overrides the platform data directory. Empty means the
	// platform default.
	DataDir string `toml:"data_dir"`
	// InMemory opens the store without touching disk; state is lost on
	// shutdown.
	InMemory bool `toml:"in_memory"`
}

// GameConfig controls the live-game loops.
type GameConfig struct {
	// TickInterval is the cadence of the per-game clock tick.
	TickInterval Duration `toml:"tick_interval"`
	// CheckpointEvery persists live games every N ticks.
	CheckpointEvery int `toml:"checkpoint_every"`
	// MatchInterval is the cadence of the background matchmaking pass.
	MatchInterval Duration `toml:"match_interval"`
}

// RoomsConfig controls friend-room housekeeping.
type RoomsConfig struct {
	// TTL is how long a single-occupant room may wait before expiry.
	TTL Duration `toml:"ttl"`
	// SweepInterval is the cadence of the expiry sweep.
	SweepInterval Duration `toml:"sweep_interval"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		LogLevel:   "INFO",
		Game: GameConfig{
			TickInterval:    Duration{time.Second},
			CheckpointEvery: 5,
			MatchInterval:   Duration{time.Second},
		},
		Rooms: RoomsConfig{
			TTL:           Duration{24 * time.Hour},
			SweepInterval: Duration{30 * time.Minute},
		},
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.Game.TickInterval.Duration <= 0 {
		return fmt.Errorf("game.tick_interval must be positive")
	}
	if c.Game.CheckpointEvery <= 0 {
		return fmt.Errorf("game.checkpoint_every must be positive")
	}
	if c.Game.MatchInterval.Duration <= 0 {
		return fmt.Errorf("game.match_interval must be positive")
	}
	if c.Rooms.TTL.Duration <= 0 || c.Rooms.SweepInterval.Duration <= 0 {
		return fmt.Errorf("rooms.ttl and rooms.sweep_interval must be positive")
	}
	return nil
}
