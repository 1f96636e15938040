package project

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cobmap/internal/config"
	"github.com/mvp-joe/cobmap/internal/sourcemap"
)

// Test Plan for Project:
// - Sources discovers COBOL files under the root
// - Build and Current read generated C from the configured directory
// - Current reuses the cached map until a rebuild
// - Load falls back to a fresh build when no snapshot exists
// - Rebuild persists a snapshot that Load then serves

func newProject(t *testing.T) *Project {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/src/hello.cob", []byte("       DISPLAY 'HI'.\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/proj/build/hello.c", []byte(
		"/* Generated from src/hello.cob */\n"+
			"/* Line: 1 : DISPLAY */\n"+
			"static cob_u8_t b_2[4] __attribute__((aligned)); /* RETURN-CODE */\n"), 0644))

	cfg := config.Default()
	cfg.Project.GeneratedDir = "build"
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "cobmap.db")

	p, err := Open("/proj", cfg, WithFs(fs))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestSources(t *testing.T) {
	t.Parallel()

	files, err := newProject(t).Sources()
	require.NoError(t, err)
	assert.Equal(t, []string{"/proj/src/hello.cob"}, files)
}

func TestBuildAndCurrent(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	ctx := context.Background()

	built, err := p.Build(ctx, nil)
	require.NoError(t, err)

	l, ok := built.GeneratedLocation("src/hello.cob", 1)
	require.True(t, ok)
	assert.Equal(t, sourcemap.Line{
		OriginalFile:  "/proj/src/hello.cob",
		OriginalLine:  1,
		GeneratedFile: "/proj/build/hello.c",
		GeneratedLine: 3,
	}, l)

	first, err := p.Current(ctx)
	require.NoError(t, err)
	second, err := p.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, built.String(), first.String())
}

func TestLoad_FallsBackToBuild(t *testing.T) {
	t.Parallel()

	m, err := newProject(t).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, m.LineCount())
}

func TestRebuild_PersistsSnapshot(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	ctx := context.Background()

	before, err := p.Current(ctx)
	require.NoError(t, err)

	stats, err := p.Rebuild(ctx, []string{"/proj/build/hello.c"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Lines)
	assert.Equal(t, 1, stats.Symbols)
	assert.NotEmpty(t, stats.SnapshotID)

	after, err := p.Current(ctx)
	require.NoError(t, err)
	assert.NotSame(t, before, after)

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, after.String(), loaded.String())

	store, err := p.Store()
	require.NoError(t, err)
	snap, err := store.Reader().LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.SnapshotID, snap.ID)
}
