package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.RecentWindow.Std())
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9090
  shutdown_timeout: 5s
database:
  path: /tmp/x.db
logging:
  level: debug
  format: json
schedule:
  timezone: Europe/Paris
  recent_window: 1h
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout.Std())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout.Std(), "unset fields keep defaults")
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, time.Hour, cfg.Schedule.RecentWindow.Std())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "server:\n  prot: 1\n"},
		{"negative duration", "schedule:\n  recent_window: -5m\n"},
		{"bad duration", "server:\n  read_timeout: soon\n"},
		{"bad timezone", "schedule:\n  timezone: Mars/Olympus\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"bad port", "server:\n  port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TRACKER_PORT":          "7000",
		"TRACKER_DB":            ":memory:",
		"TRACKER_LOG_LEVEL":     "warn",
		"TRACKER_RECENT_WINDOW": "10m",
		"TRACKER_TIMEZONE":      "America/New_York",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.RecentWindow.Std())
	assert.Equal(t, "America/New_York", cfg.Schedule.Timezone)

	env["TRACKER_PORT"] = "eighty"
	assert.Error(t, cfg.ApplyEnv(lookup))
}
