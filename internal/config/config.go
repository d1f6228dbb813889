// Package config loads DrawPad settings from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Storage struct {
	Directory string `toml:"directory"` // one JSON file per note
}

type Canvas struct {
	Width           int `toml:"width"`
	Height          int `toml:"height"`
	AutosaveDelayMS int `toml:"autosave_delay_ms"`
}

type Server struct {
	Port      int  `toml:"port"`
	Advertise bool `toml:"advertise"` // announce over mDNS
}

type Log struct {
	Level string `toml:"level"` // debug, info, warn, error
}

type Config struct {
	Storage Storage `toml:"storage"`
	Canvas  Canvas  `toml:"canvas"`
	Server  Server  `toml:"server"`
	Log     Log     `toml:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		Storage: Storage{Directory: defaultStorageDir()},
		Canvas:  Canvas{Width: 1024, Height: 768, AutosaveDelayMS: 500},
		Server:  Server{Port: 8888, Advertise: true},
		Log:     Log{Level: "info"},
	}
}

func defaultStorageDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "drawpad", "notes")
	}
	return "notes"
}

// GetConfigPath is the file used when no path is given.
func GetConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "drawpad", "config.toml")
}

// Load reads the configuration at path, or at GetConfigPath when path is
// empty. A missing file yields the defaults and is written out for the user
// to edit. Invalid values are replaced by their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = GetConfigPath()
	}

	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			_ = cfg.Save(path)
			return cfg, nil
		}
		return DefaultConfig(), fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Validate()
	return cfg, nil
}

// Validate corrects out-of-range values.
func (c *Config) Validate() {
	defaults := DefaultConfig()

	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		c.Canvas.Width, c.Canvas.Height = defaults.Canvas.Width, defaults.Canvas.Height
	}
	if c.Canvas.AutosaveDelayMS <= 0 {
		c.Canvas.AutosaveDelayMS = defaults.Canvas.AutosaveDelayMS
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Storage.Directory == "" || strings.Contains(c.Storage.Directory, "..") {
		c.Storage.Directory = defaults.Storage.Directory
	}
	if _, ok := levels[strings.ToLower(c.Log.Level)]; !ok {
		c.Log.Level = defaults.Log.Level
	} else {
		c.Log.Level = strings.ToLower(c.Log.Level)
	}
}

// AutosaveDelay is the settle time before a drawing is saved.
func (c *Config) AutosaveDelay() time.Duration {
	return time.Duration(c.Canvas.AutosaveDelayMS) * time.Millisecond
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// NewLogger returns a text logger on stderr at the configured level.
func (c *Config) NewLogger() *slog.Logger {
	level, ok := levels[c.Log.Level]
	if !ok {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
