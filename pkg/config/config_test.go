package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tabwarden.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/tabwarden
storage:
  driver: sqlite
api:
  addr: 127.0.0.1:9000
browser:
  cdp_url: ws://127.0.0.1:9222/devtools/browser/abc
  call_timeout: 3s
timers:
  reload_retries: 2
keepalive:
  sweep_interval: 5m
log:
  level: debug
  json: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/tabwarden", cfg.DataDir)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "127.0.0.1:9000", cfg.API.Addr)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.Browser.CDPURL)
	assert.Equal(t, 3*time.Second, cfg.Browser.CallTimeout)
	assert.Equal(t, 2, cfg.Timers.ReloadRetries)
	assert.Equal(t, 5*time.Minute, cfg.KeepAlive.SweepInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)

	// Untouched keys keep their defaults
	assert.Equal(t, 20*time.Second, cfg.KeepAlive.ProcessInterval)
	assert.Equal(t, 25*time.Second, cfg.Browser.AgentHeartbeat)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, []string{"127.0.0.0/8", "::1"}, cfg.API.AllowedIPs)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "malformed yaml", content: "storage: [", wantErr: "failed to parse config"},
		{name: "bad duration", content: "keepalive:\n  tab_interval: soon\n", wantErr: "failed to parse config"},
		{name: "unknown driver", content: "storage:\n  driver: postgres\n", wantErr: `unknown driver "postgres"`},
		{name: "zero period", content: "keepalive:\n  process_interval: 0s\n", wantErr: "keepalive.process_interval must be positive"},
		{name: "negative retries", content: "timers:\n  reload_retries: -1\n", wantErr: "timers.reload_retries"},
		{name: "unknown level", content: "log:\n  level: loud\n", wantErr: `unknown level "loud"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestValidateMemoryDriverNeedsNoDataDir(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "memory"
	cfg.DataDir = ""
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Driver = "bolt"
	assert.ErrorContains(t, cfg.Validate(), "data_dir is required")
}
