// Package cache keeps built source maps in memory so repeated queries against
// an unchanged build skip reparsing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maypok86/otter"
	"github.com/spf13/afero"

	"github.com/mvp-joe/cobmap/internal/sourcemap"
)

// cobc writes these next to the translation unit.
var companionSuffixes = []string{"", ".h", ".l.h"}

type entry struct {
	cwd   string
	m     *sourcemap.SourceMap
	stamp string // stat of every file m was parsed from, includes too
}

// Registry caches built SourceMaps keyed by a fingerprint of the inputs and
// the generated artifacts derived from them. A hit is served only while every
// file the map was parsed from still has the size and mtime it had at build
// time, so a recompiled include is caught as well.
type Registry struct {
	cache  otter.Cache[string, entry]
	fs     afero.Fs
	ext    string
	genDir string

	mu     sync.Mutex // serialises builds on a miss
	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithFs sets the file system generated files are read from.
func WithFs(fs afero.Fs) Option {
	return func(r *Registry) {
		r.fs = fs
	}
}

// WithGeneratedExt sets the generated file extension.
func WithGeneratedExt(ext string) Option {
	return func(r *Registry) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.ext = ext
	}
}

// WithGeneratedDir sets the directory generated files live in.
func WithGeneratedDir(dir string) Option {
	return func(r *Registry) {
		r.genDir = dir
	}
}

// New creates a Registry holding at most maxEntries maps. A zero ttl keeps
// entries until evicted by size or invalidated.
func New(maxEntries int, ttl time.Duration, opts ...Option) (*Registry, error) {
	r := &Registry{
		fs:  afero.NewOsFs(),
		ext: sourcemap.DefaultGeneratedExt,
	}
	for _, opt := range opts {
		opt(r)
	}

	builder, err := otter.NewBuilder[string, entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache builder: %w", err)
	}

	var c otter.Cache[string, entry]
	if ttl > 0 {
		c, err = builder.WithTTL(ttl).Build()
	} else {
		c, err = builder.Build()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build cache: %w", err)
	}
	r.cache = c

	return r, nil
}

// Get returns the SourceMap for the given sources, building it on a miss.
func (r *Registry) Get(ctx context.Context, cwd string, originalFiles []string) (*sourcemap.SourceMap, error) {
	absCwd, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory %s: %w", cwd, err)
	}

	key := r.fingerprint(absCwd, originalFiles)
	if m, ok := r.lookup(key); ok {
		r.hits.Add(1)
		return m, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have built it while we waited
	if m, ok := r.lookup(key); ok {
		r.hits.Add(1)
		return m, nil
	}
	r.misses.Add(1)

	m, err := sourcemap.Build(ctx, absCwd, originalFiles,
		sourcemap.WithFs(r.fs),
		sourcemap.WithGeneratedExt(r.ext),
		sourcemap.WithGeneratedDir(r.genDir),
	)
	if err != nil {
		return nil, err
	}

	if !r.cache.Set(key, entry{cwd: absCwd, m: m, stamp: r.stamp(m.Files())}) {
		log.Printf("cobmap: source map for %s not cached (rejected by cache policy)", absCwd)
	}
	return m, nil
}

// Invalidate drops every cached map built for cwd and returns how many were
// removed.
func (r *Registry) Invalidate(cwd string) int {
	absCwd, err := filepath.Abs(cwd)
	if err != nil {
		absCwd = filepath.Clean(cwd)
	}

	var stale []string
	r.cache.Range(func(key string, e entry) bool {
		if e.cwd == absCwd {
			stale = append(stale, key)
		}
		return true
	})
	for _, key := range stale {
		r.cache.Delete(key)
	}
	return len(stale)
}

// Len returns the number of cached maps.
func (r *Registry) Len() int {
	return r.cache.Size()
}

// Stats returns the hit and miss counts since creation.
func (r *Registry) Stats() (hits, misses int64) {
	return r.hits.Load(), r.misses.Load()
}

// Close releases the cache's background resources.
func (r *Registry) Close() {
	r.cache.Close()
}

// lookup returns the cached map for key, dropping it when any file it was
// parsed from changed since it was built.
func (r *Registry) lookup(key string) (*sourcemap.SourceMap, bool) {
	e, ok := r.cache.Get(key)
	if !ok {
		return nil, false
	}
	if r.stamp(e.m.Files()) != e.stamp {
		r.cache.Delete(key)
		return nil, false
	}
	return e.m, true
}

// stamp hashes the size and mtime of each file.
func (r *Registry) stamp(files []string) string {
	h := sha256.New()
	for _, f := range files {
		fmt.Fprintf(h, "%s\x00", f)
		r.writeStat(h, f)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (r *Registry) writeStat(w io.Writer, file string) {
	info, err := r.fs.Stat(file)
	if err != nil {
		fmt.Fprintf(w, "-\x00")
		return
	}
	fmt.Fprintf(w, "%d:%d\x00", info.Size(), info.ModTime().UnixNano())
}

// fingerprint hashes the build inputs together with the size and mtime of
// each derived generated file and its cobc companions.
func (r *Registry) fingerprint(cwd string, originalFiles []string) string {
	files := append([]string(nil), originalFiles...)
	sort.Strings(files)

	genDir := r.genDir
	if !filepath.IsAbs(genDir) {
		genDir = filepath.Join(cwd, genDir)
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00", cwd, r.ext, genDir)
	for _, f := range files {
		base := filepath.Base(f)
		generated := filepath.Join(genDir, strings.TrimSuffix(base, filepath.Ext(base))+r.ext)
		fmt.Fprintf(h, "%s\x00", f)
		for _, suffix := range companionSuffixes {
			r.writeStat(h, generated+suffix)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
