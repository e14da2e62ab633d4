package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/spellbridge/pkg/archive"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := write(t, "spellbridge.toml", `
archive = "se.zhfst"
workers = 8
cache_path = "cache.db"
log_level = "debug"

[suggest]
n_best = 3
max_weight = 4.5
with_caps = false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "se.zhfst", cfg.Archive)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "cache.db", cfg.CachePath)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, 3, cfg.Suggest.NBest)
	require.NotNil(t, cfg.Suggest.MaxWeight)
	assert.Equal(t, 4.5, *cfg.Suggest.MaxWeight)
	assert.Nil(t, cfg.Suggest.Beam)
	assert.False(t, cfg.Suggest.WithCaps)
}

func TestLoadYAML(t *testing.T) {
	path := write(t, "spellbridge.yml", `
dict_dir: /usr/share/spell
source: github:acme/dicts
suggest:
  n_best: 5
  beam: 1.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/share/spell", cfg.DictDir)
	assert.Equal(t, "github:acme/dicts", cfg.Source)
	assert.Equal(t, 5, cfg.Suggest.NBest)
	require.NotNil(t, cfg.Suggest.Beam)
	assert.Equal(t, 1.5, *cfg.Suggest.Beam)
	// untouched fields keep their defaults
	assert.Equal(t, Default().Workers, cfg.Workers)
	assert.True(t, cfg.Suggest.WithCaps)
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	for _, name := range []string{"empty.toml", "empty.yaml"} {
		cfg, err := Load(write(t, name, ""))
		require.NoError(t, err, name)
		assert.Equal(t, Default(), cfg, name)
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(write(t, "cfg.json", "{}"))
	assert.Error(t, err, "unknown extension")

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(write(t, "typo.toml", "wrokers = 2\n"))
	assert.Error(t, err, "unknown field")

	_, err = Load(write(t, "typo.yaml", "wrokers: 2\n"))
	assert.Error(t, err, "unknown field")

	_, err = Load(write(t, "neg.toml", "workers = -1\n"))
	assert.Error(t, err)

	_, err = Load(write(t, "level.yaml", "log_level: loud\n"))
	assert.Error(t, err)
}

func TestExpandPaths(t *testing.T) {
	home, err := homedir.Dir()
	require.NoError(t, err)
	cfg := Default()
	cfg.DictDir = "~/spell"
	cfg.Archive = "/abs/se.zhfst"
	require.NoError(t, cfg.ExpandPaths())
	assert.Equal(t, filepath.Join(home, "spell"), cfg.DictDir)
	assert.Equal(t, "/abs/se.zhfst", cfg.Archive)
	assert.Empty(t, cfg.CachePath)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, archive.DefaultConfig(), cfg.Suggest)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}
