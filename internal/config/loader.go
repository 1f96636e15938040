package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// NewFileLoader creates a loader reading an explicit config file instead of
// searching .cobmap/ under the root.
func NewFileLoader(rootDir, configFile string) Loader {
	return &loader{
		rootDir:    rootDir,
		configFile: configFile,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (COBMAP_*)
// 2. Config file (.cobmap/config.yml or .cobmap/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, ".cobmap"))
	}

	// Replace . with _ in env var names (e.g., COBMAP_PROJECT_GENERATED_EXT)
	v.SetEnvPrefix("COBMAP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Project configuration
	v.BindEnv("project.generated_ext")
	v.BindEnv("project.generated_dir")

	// Storage configuration
	v.BindEnv("storage.db_path")

	// Cache configuration
	v.BindEnv("cache.max_entries")
	v.BindEnv("cache.ttl_minutes")

	// Watch configuration
	v.BindEnv("watch.debounce_millis")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("project.sources", defaults.Project.Sources)
	v.SetDefault("project.ignore", defaults.Project.Ignore)
	v.SetDefault("project.generated_ext", defaults.Project.GeneratedExt)
	v.SetDefault("project.generated_dir", defaults.Project.GeneratedDir)

	v.SetDefault("storage.db_path", defaults.Storage.DBPath)

	v.SetDefault("cache.max_entries", defaults.Cache.MaxEntries)
	v.SetDefault("cache.ttl_minutes", defaults.Cache.TTLMinutes)

	v.SetDefault("watch.debounce_millis", defaults.Watch.DebounceMillis)
	v.SetDefault("watch.extensions", defaults.Watch.Extensions)
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
