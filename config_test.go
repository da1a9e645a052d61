package grove

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanxgames/grove/version"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grove.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
title = "Shooter"
width = 320
startup = ["Title", "Music"]
user_dir = "/tmp/mods"
debug = true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Shooter", cfg.Title)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 240, cfg.Height, "unset keys keep their defaults")
	assert.Equal(t, []string{"Title", "Music"}, cfg.Startup)
	assert.Equal(t, "/tmp/mods", cfg.UserDir)
	assert.True(t, cfg.Debug)
	assert.Equal(t, DefaultScriptsDir, cfg.ScriptsDir)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `colour = "red"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown key "colour"`)

	_, err = LoadConfig(writeConfig(t, `width = "wide"`))
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{Width: -1, TPS: 30}.withDefaults()
	assert.Equal(t, 426, cfg.Width)
	assert.Equal(t, 30, cfg.TPS)
	assert.Equal(t, version.Runtime, cfg.RuntimeVersion)
	assert.Equal(t, version.MinRuntime, cfg.MinRuntimeVersion)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.Fatal)
	assert.NotNil(t, cfg.Store)
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("debug", true)
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = NewLogger("loud", false)
	assert.Error(t, err)
}
