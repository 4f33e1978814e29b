package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.BindAddress)
	assert.Equal(t, 8765, cfg.Server.APIPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "bolt", cfg.Storage.Type)
	assert.Equal(t, "/var/lib/sitelimit/sitelimit.bolt", cfg.Storage.Path)
	assert.Equal(t, "/run/sitelimit/session.bolt", cfg.SessionStorage.Path)
	assert.Equal(t, "localhost", cfg.Storage.Redis.Host)
	assert.Equal(t, 6379, cfg.Storage.Redis.Port)
	assert.Equal(t, 30*time.Second, cfg.Tracking.FlushIntervalDuration())
	assert.Equal(t, 60*time.Second, cfg.Tracking.IdleThresholdDuration())
	assert.Equal(t, "00:00", cfg.Enforcement.DailyResetTime)
	assert.Equal(t, 90, cfg.Retention.UsageDays)
	assert.Equal(t, "30 3 * * *", cfg.Retention.Schedule)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  api_port: 9000
storage:
  type: redis
  redis:
    host: redis.internal
tracking:
  flush_interval: 10s
enforcement:
  daily_reset_time: "04:30"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.APIPort)
	assert.Equal(t, "redis", cfg.Storage.Type)
	assert.Equal(t, "redis.internal", cfg.Storage.Redis.Host)
	assert.Equal(t, "3s", cfg.Storage.Redis.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Tracking.FlushIntervalDuration())
	assert.Equal(t, "04:30", cfg.Enforcement.DailyResetTime)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad reset time", "enforcement:\n  daily_reset_time: \"25:99\"\n"},
		{"bad storage type", "storage:\n  type: sqlite\n"},
		{"sub-second flush", "tracking:\n  flush_interval: 500ms\n"},
		{"bad schedule", "retention:\n  schedule: \"every day\"\n"},
		{"zero retention", "retention:\n  usage_days: 0\n"},
		{"bad port", "server:\n  api_port: 70000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("SITELIMIT_SERVER_API_PORT", "8111")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8111, cfg.Server.APIPort)
}

func TestUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  api_port: 9000
  dns_port: 53
storage:
  redis:
    password: secret
tracking:
  flush_intervl: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	unknown, err := UnknownKeys(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"server.dns_port", "tracking.flush_intervl"}, unknown)

	_, err = UnknownKeys(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultsMatchLoad(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, loaded, Defaults())
}
