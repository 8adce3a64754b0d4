package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 75.0, cfg.Spin.FOV)
	assert.Equal(t, 8, cfg.Spin.Frames)
	assert.Equal(t, 1024, cfg.Report.Size)
	assert.Equal(t, 90, cfg.Report.Quality)
	assert.Equal(t, 0.01, cfg.Processing.CompactThreshold)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dosecast.yaml")

	cfg := DefaultConfig()
	cfg.Display.FOV = 45
	cfg.Display.Colormap = "gray"
	cfg.Spin.Offset = [3]float64{1, -2, 3}
	cfg.Storage.Bucket = "plans"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("display:\n  fov: 30\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30.0, cfg.Display.FOV)
	assert.Equal(t, 512, cfg.Display.Width)
	assert.Equal(t, "jpeg", cfg.Server.Encoding)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("display: [unterminated"), 0644))
	_, err := LoadConfig(bad)
	assert.Error(t, err)

	wide := filepath.Join(dir, "wide.yaml")
	require.NoError(t, os.WriteFile(wide, []byte("display:\n  fov: 200\n"), 0644))
	_, err = LoadConfig(wide)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"threshold":     func(c *Config) { c.Processing.CompactThreshold = 1.5 },
		"interpolation": func(c *Config) { c.Processing.Interpolation = "cubic" },
		"cores":         func(c *Config) { c.Processing.NumCores = 0 },
		"width":         func(c *Config) { c.Display.Width = 0 },
		"fov":           func(c *Config) { c.Display.FOV = 0 },
		"supersample":   func(c *Config) { c.Display.Supersample = 0 },
		"frames":        func(c *Config) { c.Spin.Frames = 0 },
		"quality":       func(c *Config) { c.Report.Quality = 101 },
		"encoding":      func(c *Config) { c.Server.Encoding = "bmp" },
		"tick":          func(c *Config) { c.Server.TickMillis = 0 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "compactThreshold")
	assert.Contains(t, string(data), "tickMillis")
}
