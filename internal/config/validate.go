package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrEmptySources indicates no COBOL source patterns were configured
	ErrEmptySources = errors.New("empty source patterns")

	// ErrInvalidPattern indicates a glob pattern that does not compile
	ErrInvalidPattern = errors.New("invalid glob pattern")

	// ErrInvalidExtension indicates an unusable generated file extension
	ErrInvalidExtension = errors.New("invalid generated extension")

	// ErrEmptyDBPath indicates missing storage location
	ErrEmptyDBPath = errors.New("empty database path")

	// ErrInvalidCacheSettings indicates invalid cache configuration
	ErrInvalidCacheSettings = errors.New("invalid cache settings")

	// ErrInvalidDebounce indicates a negative watch debounce
	ErrInvalidDebounce = errors.New("invalid watch debounce")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateProject(&cfg.Project); err != nil {
		errs = append(errs, err)
	}

	if err := validateStorage(&cfg.Storage); err != nil {
		errs = append(errs, err)
	}

	if err := validateCache(&cfg.Cache); err != nil {
		errs = append(errs, err)
	}

	if err := validateWatch(&cfg.Watch); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateProject(cfg *ProjectConfig) error {
	var errs []error

	if len(cfg.Sources) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one source pattern required", ErrEmptySources))
	}

	for _, pattern := range append(append([]string{}, cfg.Sources...), cfg.Ignore...) {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err))
		}
	}

	ext := strings.TrimSpace(cfg.GeneratedExt)
	if ext == "" || ext == "." || strings.ContainsAny(ext, `/\`) {
		errs = append(errs, fmt.Errorf("%w: got '%s'", ErrInvalidExtension, cfg.GeneratedExt))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateStorage(cfg *StorageConfig) error {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return fmt.Errorf("%w: db_path is required", ErrEmptyDBPath)
	}
	return nil
}

func validateCache(cfg *CacheConfig) error {
	var errs []error

	if cfg.MaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_entries must be positive, got %d", ErrInvalidCacheSettings, cfg.MaxEntries))
	}

	// Zero means no expiry
	if cfg.TTLMinutes < 0 {
		errs = append(errs, fmt.Errorf("%w: ttl_minutes cannot be negative, got %d", ErrInvalidCacheSettings, cfg.TTLMinutes))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateWatch(cfg *WatchConfig) error {
	if cfg.DebounceMillis < 0 {
		return fmt.Errorf("%w: debounce_millis cannot be negative, got %d", ErrInvalidDebounce, cfg.DebounceMillis)
	}
	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
