// Package config loads cobmap project configuration from .cobmap/config.yml
// with COBMAP_* environment overrides.
package config

import (
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/mvp-joe/cobmap/internal/sourcemap"
)

// Config represents the complete cobmap configuration.
// It can be loaded from .cobmap/config.yml with environment variable overrides.
type Config struct {
	Project ProjectConfig `yaml:"project" mapstructure:"project"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Watch   WatchConfig   `yaml:"watch" mapstructure:"watch"`
}

// ProjectConfig defines which COBOL sources belong to the project and where
// their generated C lives.
type ProjectConfig struct {
	Sources      []string `yaml:"sources" mapstructure:"sources"`             // glob patterns for COBOL sources
	Ignore       []string `yaml:"ignore" mapstructure:"ignore"`               // glob patterns to ignore
	GeneratedExt string   `yaml:"generated_ext" mapstructure:"generated_ext"` // extension of generated C, e.g. ".c"
	GeneratedDir string   `yaml:"generated_dir" mapstructure:"generated_dir"` // directory of generated C, relative to the root
}

// StorageConfig defines where built source maps are persisted.
type StorageConfig struct {
	DBPath string `yaml:"db_path" mapstructure:"db_path"` // SQLite file, relative to the root
}

// CacheConfig bounds the in-process cache of built source maps.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"` // zero disables expiry
}

// WatchConfig controls rebuilds triggered by recompilation.
type WatchConfig struct {
	DebounceMillis int      `yaml:"debounce_millis" mapstructure:"debounce_millis"`
	Extensions     []string `yaml:"extensions" mapstructure:"extensions"` // generated file extensions to watch
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			Sources: []string{
				"**/*.cob",
				"**/*.cbl",
				"**/*.COB",
				"**/*.CBL",
			},
			Ignore: []string{
				".git/**",
				"copybooks/**",
				"build/**",
			},
			GeneratedExt: sourcemap.DefaultGeneratedExt,
			GeneratedDir: "",
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(".cobmap", "sourcemap.db"),
		},
		Cache: CacheConfig{
			MaxEntries: 64,
			TTLMinutes: 0,
		},
		Watch: WatchConfig{
			DebounceMillis: 500,
			Extensions:     []string{".c", ".h"},
		},
	}
}

// BuilderOptions converts the project settings into source map build options.
func (c *Config) BuilderOptions(fs afero.Fs) []sourcemap.BuilderOption {
	opts := []sourcemap.BuilderOption{
		sourcemap.WithGeneratedExt(c.Project.GeneratedExt),
		sourcemap.WithGeneratedDir(c.Project.GeneratedDir),
	}
	if fs != nil {
		opts = append(opts, sourcemap.WithFs(fs))
	}
	return opts
}

// DBPath returns the absolute SQLite path for a project root.
func (c *Config) DBPath(rootDir string) string {
	if filepath.IsAbs(c.Storage.DBPath) {
		return c.Storage.DBPath
	}
	return filepath.Join(rootDir, c.Storage.DBPath)
}

// GeneratedDir returns the absolute generated-C directory for a project root.
func (c *Config) GeneratedDir(rootDir string) string {
	if filepath.IsAbs(c.Project.GeneratedDir) {
		return c.Project.GeneratedDir
	}
	return filepath.Join(rootDir, c.Project.GeneratedDir)
}
