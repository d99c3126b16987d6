package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8000", cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Session.HoverThrottle)
	assert.Equal(t, "./rembg_weights/u2net.onnx", cfg.Rembg.ModelPath)
	assert.Equal(t, float64(30), cfg.Blur.Radius)
	assert.Equal(t, 2000000, cfg.Blur.MaxPixels)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: ":9090"
  mode: release
session:
  idle_timeout: 2m
redis:
  enabled: true
  addr: "redis:6379"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("MASKKIT_BLUR_WORKERS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 2*time.Minute, cfg.Session.IdleTimeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 7, cfg.Blur.Workers)
	// 未设置的项保持默认
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)

	sc := cfg.SamEngineConfig()
	assert.Equal(t, cfg.Sam.DecodeModel, sc.DecodeModelPath)
	assert.Equal(t, cfg.Onnx.LibraryPath, cfg.RembgEngineConfig().OnnxRuntimeLibPath)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Port)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
