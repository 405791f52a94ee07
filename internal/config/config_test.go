package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "output", cfg.Pipeline.OutputDir)
	assert.NoError(t, cfg.Validate())

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nefi.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[log]
level = "debug"
console = false

[pipeline]
output_dir = "/tmp/results"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Console)
	assert.Equal(t, "/tmp/results", cfg.Pipeline.OutputDir)
	assert.Equal(t, "pipelines", cfg.Pipeline.FavoritesDir, "unset keys keep defaults")
	assert.False(t, cfg.Events.LogEvents)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.toml")
	require.NoError(t, os.WriteFile(unknown, []byte("[log]\nverbosity = 3\n"), 0o644))
	_, err := Load(unknown)
	assert.ErrorContains(t, err, "log.verbosity")

	broken := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[log\nlevel = "), 0o644))
	_, err = Load(broken)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("NEFI_LOG_LEVEL", "warn")
	t.Setenv("NEFI_OUTPUT_DIR", "results")
	t.Setenv("NEFI_FAVORITES_DIR", "favs")
	t.Setenv("DEBUG", "")

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "results", cfg.Pipeline.OutputDir)
	assert.Equal(t, "favs", cfg.Pipeline.FavoritesDir)
	assert.False(t, cfg.Events.LogEvents)

	t.Setenv("DEBUG", "1")
	cfg.ApplyEnv()
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Events.LogEvents)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Log.Level = "WARN"
	assert.NoError(t, cfg.Validate())

	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())
}
