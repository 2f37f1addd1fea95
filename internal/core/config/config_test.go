package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"straits/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[paths]
source_root = "lib"
out_dir = "build"

[build]
include = ["**/*.js"]
exclude_dirs = ["vendor"]
exclude_files = ["*.min.js"]
jobs = 3

[languages.tsx]
enabled = true

[cache]
enabled = false

[watch]
debounce = "1s"
max_rebuilds_per_second = 2.5

[observability]
metrics_addr = "127.0.0.1:9464"
enable_metrics = true

[runtime]
timeout = "5s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Paths.SourceRoot != "lib" {
		t.Errorf("Expected source_root lib, got %s", cfg.Paths.SourceRoot)
	}
	if cfg.Paths.OutDir != "build" {
		t.Errorf("Expected out_dir build, got %s", cfg.Paths.OutDir)
	}
	if cfg.Paths.StateDir != ".straits" {
		t.Errorf("Expected default state_dir, got %s", cfg.Paths.StateDir)
	}
	assert.Equal(t, []string{"**/*.js"}, cfg.Build.Include)
	assert.Equal(t, []string{"vendor"}, cfg.Build.ExcludeDirs)
	assert.Equal(t, 3, cfg.Build.Jobs)
	assert.False(t, cfg.Cache.IsEnabled())
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, 2.5, cfg.Watch.MaxRebuildsPerSecond)
	assert.Equal(t, 5*time.Second, cfg.Runtime.Timeout)
	assert.Equal(t, "straits", cfg.Observability.ServiceName)

	overrides := cfg.LanguageOverrides()
	require.Contains(t, overrides, "tsx")
	require.NotNil(t, overrides["tsx"].Enabled)
	assert.True(t, *overrides["tsx"].Enabled)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "src", cfg.Paths.SourceRoot)
	assert.Equal(t, "dist", cfg.Paths.OutDir)
	assert.Equal(t, []string{"**"}, cfg.Build.Include)
	assert.Equal(t, []string{"node_modules", ".git"}, cfg.Build.ExcludeDirs)
	assert.Greater(t, cfg.Build.Jobs, 0)
	assert.True(t, cfg.Cache.IsEnabled())
	assert.Equal(t, "cache.db", cfg.Cache.Path)
	assert.Equal(t, 200*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 30*time.Second, cfg.Runtime.Timeout)
}

func TestLoad_UnknownKeysRejected(t *testing.T) {
	_, err := Load(writeConfig(t, "[paths]\nsrc = \"x\"\n"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
	assert.Contains(t, err.Error(), "paths.src")
}

func TestLoad_InvalidToml(t *testing.T) {
	_, err := Load(writeConfig(t, "[paths\n"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestLoadOrDefault_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "src", cfg.Paths.SourceRoot)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STRAITS_PATHS_OUT_DIR", "out")
	t.Setenv("STRAITS_BUILD_INCLUDE", "a/**, b/**")
	t.Setenv("STRAITS_CACHE_ENABLED", "false")
	t.Setenv("STRAITS_WATCH_DEBOUNCE", "750ms")
	t.Setenv("STRAITS_BUILD_JOBS", "not-a-number")

	cfg, err := Load(writeConfig(t, "[build]\njobs = 2\n"))
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.Paths.OutDir)
	assert.Equal(t, []string{"a/**", "b/**"}, cfg.Build.Include)
	assert.False(t, cfg.Cache.IsEnabled())
	assert.Equal(t, 750*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 2, cfg.Build.Jobs, "malformed overrides are ignored")
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "[paths]\nout_dir = \"one\"\n")

	reloaded := make(chan *Config, 1)
	w := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("[paths]\nout_dir = \"two\"\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "two", cfg.Paths.OutDir)
	case <-time.After(3 * time.Second):
		t.Fatal("config was not reloaded")
	}
}
