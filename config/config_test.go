package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.BindAddress)
	assert.Equal(t, 100*time.Millisecond, cfg.Game.TickRate.Duration)
	assert.Equal(t, "settings.json", cfg.Storage.SettingsPath)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "joust.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
bind_address = "127.0.0.1:9000"
read_timeout = "5s"

[game]
tick_rate = "50ms"
countdown_seconds = 5

[logging]
level = "debug"
format = "json"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.BindAddress)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Duration)
	assert.Equal(t, 50*time.Millisecond, cfg.Game.TickRate.Duration)
	assert.Equal(t, 5, cfg.Game.CountdownSeconds)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout.Duration)
	assert.Equal(t, 2, cfg.Game.MinPlayers)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "joust.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[game]
tick_rate = "fast"
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "joust.toml")
	require.NoError(t, os.WriteFile(path, []byte("{json: true}"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := NewLogger(LoggingConfig{Level: "info", Format: format})
		require.NoError(t, err, format)
		require.NotNil(t, log)
	}
}

func TestNewLoggerBadLevelFallsBack(t *testing.T) {
	log, err := NewLogger(LoggingConfig{Level: "shouting", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, log)
}
