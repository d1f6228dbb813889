package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drawpad", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.FileExists(t, path)

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[canvas]
width = 640
autosave_delay_ms = 250

[log]
level = "DEBUG"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Canvas.Width)
	assert.Equal(t, 768, cfg.Canvas.Height)
	assert.Equal(t, 250*time.Millisecond, cfg.AutosaveDelay())
	assert.Equal(t, 8888, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("canvas = ["), 0o644))

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidateClamps(t *testing.T) {
	cfg := &Config{
		Storage: Storage{Directory: "../escape"},
		Canvas:  Canvas{Width: -1, Height: 10, AutosaveDelayMS: 0},
		Server:  Server{Port: 70000},
		Log:     Log{Level: "loud"},
	}
	cfg.Validate()

	d := DefaultConfig()
	assert.Equal(t, d.Storage.Directory, cfg.Storage.Directory)
	assert.Equal(t, d.Canvas, cfg.Canvas)
	assert.Equal(t, d.Server.Port, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Server.Port = 9000
	cfg.Server.Advertise = false
	cfg.Storage.Directory = "/tmp/notes"
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestNewLoggerLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "warn"
	l := cfg.NewLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, l.Enabled(context.Background(), slog.LevelWarn))
}
