package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := LoadConfig(filepath.Join(dir, "configs"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "disk", cfg.VideoCache.Backend)
	assert.Equal(t, 7*24*time.Hour, cfg.VideoCache.MaxAge())
	assert.Equal(t, int64(512<<20), cfg.VideoCache.MaxEntryBytes())
	assert.Equal(t, int64(1024<<20), cfg.VideoCache.MaxHandleBytes())
	assert.Equal(t, 24*time.Hour, cfg.Payment.PendingTTL())
	assert.Equal(t, 72*time.Hour, cfg.JWT.ExpireTime)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
server:
  port: "9090"
  mode: debug
video_cache:
  backend: memory
  max_age_hours: 48
payment:
  server_key: SB-Mid-server-test
`
	configDir := filepath.Join(dir, "configs")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := LoadConfig(configDir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.VideoCache.Backend)
	assert.Equal(t, 48*time.Hour, cfg.VideoCache.MaxAge())
	assert.Equal(t, "SB-Mid-server-test", cfg.Payment.ServerKey)
}

func TestValidateReleaseMode(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Mode: "release"}}
	cfg.JWT.Secret = "short"
	assert.Error(t, cfg.Validate())

	cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
	assert.Error(t, cfg.Validate(), "missing server key")

	cfg.Payment.ServerKey = "Mid-server-xyz"
	assert.NoError(t, cfg.Validate())

	assert.NoError(t, (&Config{Server: ServerConfig{Mode: "debug"}}).Validate())
}

func TestLoadConfigVideoCacheEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	configDir := filepath.Join(dir, "configs")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("video_cache:\n  backend: disk\n  dir: cache/videos\n"), 0644))

	t.Setenv("VIDEO_CACHE_BACKEND", "redis")
	t.Setenv("VIDEO_CACHE_DIR", "/var/cache/lms")

	cfg, err := LoadConfig(configDir)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.VideoCache.Backend)
	assert.Equal(t, "/var/cache/lms", cfg.VideoCache.Dir)
}
