// Package watcher rebuilds source maps when cobc rewrites generated C.
package watcher

import "context"

// FileWatcher monitors generated files for changes with debouncing and pause/resume support.
type FileWatcher interface {
	// Start begins watching, calling callback with debounced file changes.
	Start(ctx context.Context, callback func(files []string)) error

	// Stop stops the file watcher and cleans up resources.
	Stop() error

	// Pause stops firing callbacks but continues accumulating events.
	Pause()

	// Resume resumes firing callbacks. If events accumulated during pause, fires immediately.
	Resume()
}

// Rebuilder rebuilds and persists the source map of a project.
type Rebuilder interface {
	// Rebuild reparses the project. changed lists the generated files that
	// triggered the rebuild, for logging only.
	Rebuild(ctx context.Context, changed []string) (*RebuildStats, error)
}

// RebuildStats describes one completed rebuild.
type RebuildStats struct {
	Lines      int
	Symbols    int
	SnapshotID string
}
