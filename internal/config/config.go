// Package config loads daemon settings: built-in defaults, overlaid by an
// optional TOML file. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config is the daemon configuration.
type Config struct {
	HTTP    string `toml:"http"`
	Broker  string `toml:"broker"`
	DataDir string `toml:"data_dir"`
	Store   string `toml:"store"`
	// Tick is the display refresh period of the run loop.
	Tick time.Duration `toml:"tick"`
	// Heartbeat is a standard cron expression; empty disables heartbeats.
	Heartbeat string `toml:"heartbeat"`
	// Recipe is an optional TOML recipe replacing the built-in one.
	Recipe string `toml:"recipe"`

	Buzzer Buzzer `toml:"buzzer"`
	Notify Notify `toml:"notify"`
	Log    Log    `toml:"log"`
}

// Buzzer locates the alarm buzzer GPIO line. An empty chip disables audio.
type Buzzer struct {
	Chip string `toml:"chip"`
	Pin  int    `toml:"pin"`
}

// Notify lists shoutrrr service URLs for push alerts.
type Notify struct {
	URLs []string `toml:"urls"`
}

// Log controls logging.
type Log struct {
	Level string `toml:"level"`
	// Dir, if set, also writes a rotating log file there.
	Dir string `toml:"dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP:      ":80",
		Broker:    "tcp://192.168.1.200:1883",
		DataDir:   "/var/lib/bread-timer",
		Store:     StoreFile,
		Tick:      time.Second,
		Heartbeat: "*/15 * * * *",
		Buzzer: Buzzer{
			Chip: "gpiochip0",
			Pin:  18,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("parse config: unknown keys %v", undecoded)
	}
	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	var errs []error
	if c.Tick <= 0 {
		errs = append(errs, fmt.Errorf("tick must be positive, got %v", c.Tick))
	}
	switch c.Store {
	case StoreFile, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("store must be %q or %q, got %q", StoreFile, StoreSQLite, c.Store))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must be set"))
	}
	if c.Heartbeat != "" {
		if _, err := cron.ParseStandard(c.Heartbeat); err != nil {
			errs = append(errs, fmt.Errorf("heartbeat %q: %w", c.Heartbeat, err))
		}
	}
	if c.Buzzer.Chip != "" && c.Buzzer.Pin < 0 {
		errs = append(errs, fmt.Errorf("buzzer pin must not be negative, got %d", c.Buzzer.Pin))
	}
	return errors.Join(errs...)
}

// StorePath returns the location of the state store inside DataDir.
func (c Config) StorePath() string {
	if c.Store == StoreSQLite {
		return filepath.Join(c.DataDir, "bread-timer.db")
	}
	return c.DataDir
}
