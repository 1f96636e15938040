package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cobmap/internal/sourcemap"
)

// Test Plan for Config System:
// - Default() returns valid configuration with all expected defaults
// - LoadConfig() uses defaults when no config file exists
// - LoadConfig() loads from .cobmap/config.yml and .cobmap/config.yaml
// - LoadConfig() merges a partial config file with defaults
// - Environment variables override config file values and defaults
// - NewFileLoader() reads an explicit config path
// - LoadConfig() returns error for malformed YAML and invalid values
// - Validate() rejects empty sources, bad globs, bad extensions, empty db path
// - Validate() rejects non-positive cache size, negative TTL and debounce
// - Validate() returns multiple errors for multiple invalid fields
// - BuilderOptions() produces options a build honours

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	cobmapDir := filepath.Join(dir, ".cobmap")
	require.NoError(t, os.MkdirAll(cobmapDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cobmapDir, name), []byte(content), 0644))
}

func TestDefault_ReturnsValidConfiguration(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NotNil(t, cfg)

	assert.Contains(t, cfg.Project.Sources, "**/*.cob")
	assert.Contains(t, cfg.Project.Sources, "**/*.cbl")
	assert.Equal(t, ".c", cfg.Project.GeneratedExt)
	assert.Equal(t, "", cfg.Project.GeneratedDir)
	assert.Equal(t, filepath.Join(".cobmap", "sourcemap.db"), cfg.Storage.DBPath)
	assert.Equal(t, 64, cfg.Cache.MaxEntries)
	assert.Equal(t, 0, cfg.Cache.TTLMinutes)
	assert.Equal(t, 500, cfg.Watch.DebounceMillis)
	assert.Equal(t, []string{".c", ".h"}, cfg.Watch.Extensions)

	assert.NoError(t, Validate(cfg))
}

func TestLoadConfig_UsesDefaultsWhenNoConfigFile(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader(t.TempDir()).Load()
	require.NoError(t, err)

	defaults := Default()
	assert.Equal(t, defaults.Project, cfg.Project)
	assert.Equal(t, defaults.Storage, cfg.Storage)
	assert.Equal(t, defaults.Cache, cfg.Cache)
	assert.Equal(t, defaults.Watch, cfg.Watch)
}

func TestLoadConfig_LoadsFromConfigYml(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	writeConfig(t, tempDir, "config.yml", `
project:
  sources:
    - "src/**/*.cbl"
  ignore:
    - "src/legacy/**"
  generated_ext: ".c"
  generated_dir: "build"
storage:
  db_path: "maps.db"
cache:
  max_entries: 8
  ttl_minutes: 15
watch:
  debounce_millis: 250
  extensions: [".c"]
`)

	cfg, err := LoadConfigFromDir(tempDir)
	require.NoError(t, err)

	assert.Equal(t, []string{"src/**/*.cbl"}, cfg.Project.Sources)
	assert.Equal(t, []string{"src/legacy/**"}, cfg.Project.Ignore)
	assert.Equal(t, "build", cfg.Project.GeneratedDir)
	assert.Equal(t, "maps.db", cfg.Storage.DBPath)
	assert.Equal(t, 8, cfg.Cache.MaxEntries)
	assert.Equal(t, 15, cfg.Cache.TTLMinutes)
	assert.Equal(t, 250, cfg.Watch.DebounceMillis)
	assert.Equal(t, []string{".c"}, cfg.Watch.Extensions)

	assert.Equal(t, filepath.Join(tempDir, "maps.db"), cfg.DBPath(tempDir))
	assert.Equal(t, filepath.Join(tempDir, "build"), cfg.GeneratedDir(tempDir))
}

func TestLoadConfig_LoadsFromConfigYaml(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	writeConfig(t, tempDir, "config.yaml", `
project:
  generated_ext: ".cc"
`)

	cfg, err := LoadConfigFromDir(tempDir)
	require.NoError(t, err)
	assert.Equal(t, ".cc", cfg.Project.GeneratedExt)
}

func TestLoadConfig_MergesConfigWithDefaults(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	writeConfig(t, tempDir, "config.yml", `
cache:
  max_entries: 4
`)

	cfg, err := LoadConfigFromDir(tempDir)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Cache.MaxEntries)
	assert.Equal(t, Default().Project.Sources, cfg.Project.Sources)
	assert.Equal(t, Default().Storage.DBPath, cfg.Storage.DBPath)
	assert.Equal(t, 500, cfg.Watch.DebounceMillis)
}

func TestLoadConfig_EnvironmentVariablesOverrideConfigFile(t *testing.T) {
	// Note: Cannot use t.Parallel() with t.Setenv()
	tempDir := t.TempDir()
	writeConfig(t, tempDir, "config.yml", `
project:
  generated_dir: "build"
storage:
  db_path: "file.db"
`)

	t.Setenv("COBMAP_PROJECT_GENERATED_DIR", "out")
	t.Setenv("COBMAP_CACHE_MAX_ENTRIES", "3")

	cfg, err := LoadConfigFromDir(tempDir)
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.Project.GeneratedDir)
	assert.Equal(t, 3, cfg.Cache.MaxEntries)

	// Not overridden, comes from the file
	assert.Equal(t, "file.db", cfg.Storage.DBPath)
}

func TestLoadConfig_EnvironmentVariablesOverrideDefaults(t *testing.T) {
	tempDir := t.TempDir()

	t.Setenv("COBMAP_STORAGE_DB_PATH", "/var/lib/cobmap/maps.db")
	t.Setenv("COBMAP_WATCH_DEBOUNCE_MILLIS", "50")

	cfg, err := LoadConfigFromDir(tempDir)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/cobmap/maps.db", cfg.Storage.DBPath)
	assert.Equal(t, "/var/lib/cobmap/maps.db", cfg.DBPath(tempDir))
	assert.Equal(t, 50, cfg.Watch.DebounceMillis)
}

func TestNewFileLoader_ReadsExplicitPath(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("project:\n  generated_ext: \".cpp\"\n"), 0644))

	cfg, err := NewFileLoader(tempDir, path).Load()
	require.NoError(t, err)
	assert.Equal(t, ".cpp", cfg.Project.GeneratedExt)
}

func TestLoadConfig_ReturnsErrorForMalformedYaml(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	writeConfig(t, tempDir, "config.yml", `
project:
  generated_ext: "unclosed quote
  sources: [
`)

	cfg, err := LoadConfigFromDir(tempDir)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfig_ReturnsErrorForInvalidValues(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	writeConfig(t, tempDir, "config.yml", `
cache:
  max_entries: -1
`)

	cfg, err := LoadConfigFromDir(tempDir)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, ErrInvalidCacheSettings)
}

func TestValidate_RejectsInvalidFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty sources", func(c *Config) { c.Project.Sources = nil }, ErrEmptySources},
		{"bad source glob", func(c *Config) { c.Project.Sources = []string{"src/[*.cbl"} }, ErrInvalidPattern},
		{"bad ignore glob", func(c *Config) { c.Project.Ignore = []string{"{a,b"} }, ErrInvalidPattern},
		{"empty extension", func(c *Config) { c.Project.GeneratedExt = "" }, ErrInvalidExtension},
		{"bare dot extension", func(c *Config) { c.Project.GeneratedExt = "." }, ErrInvalidExtension},
		{"extension with separator", func(c *Config) { c.Project.GeneratedExt = "out/.c" }, ErrInvalidExtension},
		{"empty db path", func(c *Config) { c.Storage.DBPath = " " }, ErrEmptyDBPath},
		{"zero cache entries", func(c *Config) { c.Cache.MaxEntries = 0 }, ErrInvalidCacheSettings},
		{"negative ttl", func(c *Config) { c.Cache.TTLMinutes = -5 }, ErrInvalidCacheSettings},
		{"negative debounce", func(c *Config) { c.Watch.DebounceMillis = -1 }, ErrInvalidDebounce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, Validate(cfg), tt.want)
		})
	}
}

func TestValidate_ReturnsMultipleErrorsForMultipleInvalidFields(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Project.Sources = nil
	cfg.Storage.DBPath = ""
	cfg.Watch.DebounceMillis = -10

	err := Validate(cfg)
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "validation failed")
	assert.Contains(t, msg, "empty source patterns")
	assert.Contains(t, msg, "empty database path")
	assert.Contains(t, msg, "invalid watch debounce")
}

func TestBuilderOptions_AppliesProjectSettings(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/build/prog.cc", []byte(
		"/* Generated from prog.cob */\n/* Line: 4 */\n"), 0644))

	cfg := Default()
	cfg.Project.GeneratedExt = ".cc"
	cfg.Project.GeneratedDir = "/proj/build"

	m, err := sourcemap.Build(t.Context(), "/proj", []string{"prog.cob"}, cfg.BuilderOptions(fs)...)
	require.NoError(t, err)

	l, ok := m.GeneratedLocation("prog.cob", 4)
	require.True(t, ok)
	assert.Equal(t, "/proj/build/prog.cc", l.GeneratedFile)
}
