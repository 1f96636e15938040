// Package project binds a cobmap configuration to its sources, its build
// cache and its snapshot store.
package project

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/mvp-joe/cobmap/internal/cache"
	"github.com/mvp-joe/cobmap/internal/config"
	"github.com/mvp-joe/cobmap/internal/discovery"
	"github.com/mvp-joe/cobmap/internal/sourcemap"
	"github.com/mvp-joe/cobmap/internal/storage"
	"github.com/mvp-joe/cobmap/internal/watcher"
)

// Project is one COBOL code base and the generated C cobc produced for it.
type Project struct {
	root     string
	cfg      *config.Config
	fs       afero.Fs
	registry *cache.Registry

	storeOnce sync.Once
	store     *storage.Store
	storeErr  error
}

// Option configures a Project.
type Option func(*Project)

// WithFs sets the file system sources and generated files are read from.
// The snapshot database always lives on the OS file system.
func WithFs(fs afero.Fs) Option {
	return func(p *Project) {
		p.fs = fs
	}
}

// Open prepares a project rooted at rootDir.
func Open(rootDir string, cfg *config.Config, opts ...Option) (*Project, error) {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root %s: %w", rootDir, err)
	}

	p := &Project{
		root: root,
		cfg:  cfg,
		fs:   afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.registry, err = cache.New(
		cfg.Cache.MaxEntries,
		time.Duration(cfg.Cache.TTLMinutes)*time.Minute,
		cache.WithFs(p.fs),
		cache.WithGeneratedExt(cfg.Project.GeneratedExt),
		cache.WithGeneratedDir(cfg.GeneratedDir(root)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create build cache: %w", err)
	}

	return p, nil
}

// Root returns the absolute project root.
func (p *Project) Root() string {
	return p.root
}

// Config returns the project configuration.
func (p *Project) Config() *config.Config {
	return p.cfg
}

// Fs returns the project file system.
func (p *Project) Fs() afero.Fs {
	return p.fs
}

// GeneratedDir returns the absolute directory generated C is read from.
func (p *Project) GeneratedDir() string {
	return p.cfg.GeneratedDir(p.root)
}

// Sources discovers the COBOL sources of the project.
func (p *Project) Sources() ([]string, error) {
	sd, err := discovery.New(p.fs, p.root, p.cfg.Project.Sources, p.cfg.Project.Ignore)
	if err != nil {
		return nil, fmt.Errorf("failed to create source discovery: %w", err)
	}
	files, err := sd.Discover()
	if err != nil {
		return nil, fmt.Errorf("failed to discover sources: %w", err)
	}
	return files, nil
}

// Build discovers the sources and parses their generated C, bypassing the
// cache. progress may be nil.
func (p *Project) Build(ctx context.Context, progress sourcemap.ProgressReporter) (*sourcemap.SourceMap, error) {
	files, err := p.Sources()
	if err != nil {
		return nil, err
	}

	opts := p.cfg.BuilderOptions(p.fs)
	opts = append(opts, sourcemap.WithGeneratedDir(p.GeneratedDir()))
	if progress != nil {
		opts = append(opts, sourcemap.WithProgress(progress))
	}
	return sourcemap.Build(ctx, p.root, files, opts...)
}

// Current returns the source map of the current generated C, reusing a
// cached build while nothing has been recompiled.
func (p *Project) Current(ctx context.Context) (*sourcemap.SourceMap, error) {
	files, err := p.Sources()
	if err != nil {
		return nil, err
	}
	return p.registry.Get(ctx, p.root, files)
}

// Store opens the snapshot database on first use.
func (p *Project) Store() (*storage.Store, error) {
	p.storeOnce.Do(func() {
		p.store, p.storeErr = storage.Open(p.cfg.DBPath(p.root))
	})
	return p.store, p.storeErr
}

// Persist writes m as a new snapshot.
func (p *Project) Persist(ctx context.Context, m *sourcemap.SourceMap) (string, error) {
	store, err := p.Store()
	if err != nil {
		return "", err
	}
	return store.Writer().WriteSnapshot(ctx, m)
}

// Load returns the newest persisted source map. When no snapshot exists yet it
// builds one from the generated C.
func (p *Project) Load(ctx context.Context) (*sourcemap.SourceMap, error) {
	store, err := p.Store()
	if err != nil {
		return nil, err
	}

	m, _, err := store.Reader().LoadLatest(ctx)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, storage.ErrSnapshotNotFound) {
		return nil, err
	}

	log.Printf("No snapshot in %s, building from generated C", store.Path())
	return p.Current(ctx)
}

// Rebuild drops cached builds, reparses and persists a new snapshot.
func (p *Project) Rebuild(ctx context.Context, changed []string) (*watcher.RebuildStats, error) {
	p.registry.Invalidate(p.root)

	m, err := p.Current(ctx)
	if err != nil {
		return nil, err
	}

	id, err := p.Persist(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	return &watcher.RebuildStats{
		Lines:      m.LineCount(),
		Symbols:    m.SymbolCount(),
		SnapshotID: id,
	}, nil
}

// Close releases the cache and the snapshot database.
func (p *Project) Close() error {
	p.registry.Close()
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}
