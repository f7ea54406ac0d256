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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPRISK_DATABASE__URL", "postgres://localhost/oprisk")
	t.Setenv("OPRISK_JWT__SECRET_KEY", "0123456789abcdef")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/oprisk", cfg.Database.URL)
	assert.Equal(t, 24.0, cfg.SLA.DefaultMaxResponseHours)
	assert.Equal(t, 72.0, cfg.SLA.DefaultMaxResolutionHours)
	assert.Equal(t, time.Minute, cfg.SLA.SweepInterval)
	assert.True(t, cfg.SLA.SweepEnabled)
	assert.Equal(t, 8, cfg.Vendors.BatchWorkers)
	assert.False(t, cfg.Notifications.Enabled)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
database:
  url: postgres://file/oprisk
  connect_timeout: 10s
jwt:
  secret_key: file-secret-0123456789
sla:
  sweep_interval: 30s
  max_auto_level: 4
vendors:
  feed:
    url: http://feed.local
notifications:
  enabled: true
  routes:
    - min_level: 3
      channel: mattermost
      target: http://mm.local/hooks/abc
`)
	t.Setenv("OPRISK_SERVER__PORT", "9100")
	t.Setenv("OPRISK_LOG__LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "postgres://file/oprisk", cfg.Database.URL)
	assert.Equal(t, 10*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.SLA.SweepInterval)
	assert.Equal(t, 4, cfg.SLA.MaxAutoLevel)
	assert.Equal(t, "http://feed.local", cfg.Vendors.Feed.URL)
	assert.Equal(t, 5*time.Second, cfg.Vendors.Feed.Timeout)
	require.Len(t, cfg.Notifications.Routes, 1)
	assert.Equal(t, RouteConfig{MinLevel: 3, Channel: "mattermost", Target: "http://mm.local/hooks/abc"},
		cfg.Notifications.Routes[0])
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load config file")
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := Load(writeConfig(t, "log:\n  level: info\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})

	t.Run("bad log level", func(t *testing.T) {
		t.Setenv("OPRISK_DATABASE__URL", "postgres://localhost/oprisk")
		t.Setenv("OPRISK_JWT__SECRET_KEY", "0123456789abcdef")
		t.Setenv("OPRISK_LOG__LEVEL", "verbose")

		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Level")
	})

	t.Run("unknown route channel", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
database:
  url: postgres://localhost/oprisk
jwt:
  secret_key: 0123456789abcdef
notifications:
  routes:
    - channel: pager
      target: ops
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Channel")
	})
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "database.url", envKey("OPRISK_DATABASE__URL"))
	assert.Equal(t, "notifications.retry.max_attempts", envKey("OPRISK_NOTIFICATIONS__RETRY__MAX_ATTEMPTS"))
}
