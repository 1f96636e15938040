package watcher

import (
	"context"
	"log"
)

// RebuildCoordinator routes debounced changes of generated files to a
// Rebuilder. File events that arrive during a rebuild are held back and
// delivered once it completes.
type RebuildCoordinator struct {
	files     FileWatcher
	rebuilder Rebuilder
	onRebuild func(*RebuildStats)
}

// NewRebuildCoordinator creates a new coordinator. onRebuild, if non-nil, is
// called after every successful rebuild.
func NewRebuildCoordinator(files FileWatcher, rebuilder Rebuilder, onRebuild func(*RebuildStats)) *RebuildCoordinator {
	return &RebuildCoordinator{
		files:     files,
		rebuilder: rebuilder,
		onRebuild: onRebuild,
	}
}

// Start begins watching and blocks until ctx is cancelled or the watcher
// fails to start.
func (c *RebuildCoordinator) Start(ctx context.Context) error {
	if err := c.files.Start(ctx, func(files []string) {
		c.handleFileChange(ctx, files)
	}); err != nil {
		c.cleanup()
		return err
	}

	<-ctx.Done()
	c.cleanup()
	return ctx.Err()
}

func (c *RebuildCoordinator) cleanup() {
	if err := c.files.Stop(); err != nil {
		log.Printf("Warning: file watcher stop failed: %v", err)
	}
}

func (c *RebuildCoordinator) handleFileChange(ctx context.Context, files []string) {
	if len(files) == 0 {
		return
	}

	log.Printf("Rebuilding after %d generated file change(s)...", len(files))

	c.files.Pause()
	defer c.files.Resume()

	stats, err := c.rebuilder.Rebuild(ctx, files)
	if err != nil {
		log.Printf("Error: rebuild failed: %v", err)
		return
	}

	log.Printf("✓ Rebuilt source map (%d lines, %d symbols, snapshot %s)",
		stats.Lines, stats.Symbols, stats.SnapshotID)

	if c.onRebuild != nil {
		c.onRebuild(stats)
	}
}
