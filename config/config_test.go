package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 3, cfg.Tracker.SaveRetries)
	assert.Equal(t, 100, cfg.Tracker.EventBuffer)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  read_timeout: 15s
redis:
  enabled: true
  addr: "redis.internal:6379"
  db: 2
tracker:
  machine_id: 7
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 7, cfg.Tracker.MachineID)
	// Untouched fields keep defaults.
	assert.Equal(t, 3, cfg.Tracker.SaveRetries)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRACKER_SERVER_ADDR", ":7070")
	t.Setenv("TRACKER_REDIS_ENABLED", "true")
	t.Setenv("TRACKER_REDIS_ADDR", "env.redis:6379")
	t.Setenv("TRACKER_REDIS_DB", "5")
	t.Setenv("TRACKER_MACHINE_ID", "9")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "env.redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Redis.DB)
	assert.Equal(t, 9, cfg.Tracker.MachineID)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Tracker.SaveRetries = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Tracker.EventBuffer = 0
	assert.Error(t, cfg.Validate())

	// The machine id feeds a uint16 node id and must stay in range.
	cfg = Default()
	cfg.Tracker.MachineID = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Tracker.MachineID = 65536
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Tracker.MachineID = 65535
	assert.NoError(t, cfg.Validate())
}
