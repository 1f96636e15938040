package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cobmap/internal/config"
	"github.com/mvp-joe/cobmap/internal/project"
	"github.com/mvp-joe/cobmap/internal/search"
	"github.com/mvp-joe/cobmap/internal/sourcemap"
)

// Test Plan for CLI commands:
// - build saves a snapshot and prunes old ones
// - lookup translates both directions and names the C function
// - symbols lists nested symbols and resolves paths
// - search, dump, frames and includes render the current map
// - snapshots lists and prunes saved builds
// - clean removes the database and its side files
// - parseLocation and formatNumber handle edge cases

const helloC = `/* Generated from src/hello.cob */
#include "hello.c.h"
static const cob_field_attr a_1 = {0x21, 5, 0, 0x0000, NULL};
static cob_field f_9 = {5, b_8 + 0, &a_1}; /* WS-NAME */

static int
hello_ (const int entry)
{
  /* Line: 3 : DISPLAY : src/hello.cob */
  cob_display (0, 1, 1, &f_9);
  return 0;
}
`

const helloH = "static cob_u8_t b_8[8] __attribute__((aligned)); /* WS-REC */\n"

func newTestProject(t *testing.T) *project.Project {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/src/hello.cob", []byte("       DISPLAY WS-NAME.\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/proj/build/hello.c", []byte(helloC), 0644))
	require.NoError(t, afero.WriteFile(fs, "/proj/build/hello.c.h", []byte(helloH), 0644))

	cfg := config.Default()
	cfg.Project.GeneratedDir = "build"
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "sourcemap.db")

	p, err := project.Open("/proj", cfg, project.WithFs(fs))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestParseLocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantFile string
		wantLine int
		wantErr  bool
	}{
		{"relative", "src/hello.cob:12", "src/hello.cob", 12, false},
		{"windows drive", `C:\src\hello.cob:7`, `C:\src\hello.cob`, 7, false},
		{"missing line", "hello.cob", "", 0, true},
		{"empty line", "hello.cob:", "", 0, true},
		{"empty file", ":12", "", 0, true},
		{"zero line", "hello.cob:0", "", 0, true},
		{"not a number", "hello.cob:twelve", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, line, err := parseLocation(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFile, file)
			assert.Equal(t, tt.wantLine, line)
		})
	}
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0", formatNumber(0))
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,234", formatNumber(1234))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
	assert.Equal(t, "-1,000", formatNumber(-1000))
}

func TestRunBuild(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runBuild(ctx, &out, p, buildOptions{save: true}))
	assert.Contains(t, out.String(), "✓ Source map built: 1 lines, 2 vars")
	assert.Contains(t, out.String(), "✓ Snapshot")

	require.NoError(t, runBuild(ctx, &out, p, buildOptions{quiet: true, save: true}))
	out.Reset()
	require.NoError(t, runBuild(ctx, &out, p, buildOptions{save: true, keep: 1}))
	assert.Contains(t, out.String(), "✓ Pruned 2 old snapshot(s)")

	store, err := p.Store()
	require.NoError(t, err)
	snapshots, err := store.Reader().ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshots, 1)
}

func TestRunBuild_NoSave(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	var out bytes.Buffer
	require.NoError(t, runBuild(context.Background(), &out, p, buildOptions{quiet: true}))
	assert.Empty(t, out.String())

	_, err := os.Stat(p.Config().DBPath(p.Root()))
	assert.True(t, os.IsNotExist(err), "no database without a snapshot")
}

func TestRunBuild_MissingGenerated(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	require.NoError(t, p.Fs().Remove("/proj/build/hello.c"))

	var out bytes.Buffer
	err := runBuild(context.Background(), &out, p, buildOptions{quiet: true, save: true})
	require.Error(t, err)

	var missing *sourcemap.MissingArtifactError
	assert.ErrorAs(t, err, &missing)
}

func TestRunLookup(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	ctx := context.Background()

	t.Run("cobol to c", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runLookup(ctx, &out, p, lookupOptions{direction: directionCobol, location: "src/hello.cob:3"}))
		assert.Contains(t, out.String(), "C     /proj/build/hello.c:10")
		assert.Contains(t, out.String(), "in    hello_ (lines 6-12)")
	})

	t.Run("c to cobol as json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runLookup(ctx, &out, p, lookupOptions{direction: directionC, location: "build/hello.c:10", json: true}))

		var result lookupResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.True(t, result.Found)
		require.NotNil(t, result.Location)
		assert.Equal(t, "/proj/src/hello.cob", result.Location.OriginalFile)
		assert.Equal(t, 3, result.Location.OriginalLine)
		require.NotNil(t, result.Function)
		assert.Equal(t, "hello_", result.Function.Name)
	})

	t.Run("unmapped line", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runLookup(ctx, &out, p, lookupOptions{direction: directionCobol, location: "src/hello.cob:4"}))
		assert.Equal(t, "src/hello.cob:4: no mapping\n", out.String())
	})

	t.Run("bad location", func(t *testing.T) {
		var out bytes.Buffer
		assert.Error(t, runLookup(ctx, &out, p, lookupOptions{direction: directionCobol, location: "src/hello.cob"}))
	})
}

func TestRunLookup_Snapshot(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runBuild(ctx, &out, p, buildOptions{quiet: true, save: true}))

	// The snapshot still answers after the generated C is gone
	require.NoError(t, p.Fs().Remove("/proj/build/hello.c"))

	out.Reset()
	require.NoError(t, runLookup(ctx, &out, p, lookupOptions{direction: directionCobol, location: "src/hello.cob:3", snapshot: true}))
	assert.Contains(t, out.String(), "COBOL /proj/src/hello.cob:3")
	assert.NotContains(t, out.String(), "in    ", "function needs the generated file")
}

func TestRunSymbols(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	ctx := context.Background()

	t.Run("list nests fields", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runSymbols(ctx, &out, p, symbolsOptions{}))
		assert.Contains(t, out.String(), "hello.WS-REC  storage WS-REC (hello.b_8)")
		assert.Contains(t, out.String(), "\n  hello.WS-REC.WS-NAME  field WS-NAME (hello.f_9)")
	})

	t.Run("unit filter", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runSymbols(ctx, &out, p, symbolsOptions{unit: "other"}))
		assert.Empty(t, out.String())
	})

	t.Run("generated path as json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runSymbols(ctx, &out, p, symbolsOptions{path: "hello.f_9", generated: true, json: true}))

		var docs []sourcemap.SymbolDocument
		require.NoError(t, json.Unmarshal(out.Bytes(), &docs))
		require.Len(t, docs, 1)
		assert.Equal(t, "hello.WS-REC.WS-NAME", docs[0].Path)
	})

	t.Run("unknown path", func(t *testing.T) {
		var out bytes.Buffer
		err := runSymbols(ctx, &out, p, symbolsOptions{path: "hello.WS-NOPE"})
		assert.ErrorIs(t, err, sourcemap.ErrNotFound)
	})
}

func TestRunSearch(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runSearch(ctx, &out, p, "name", false, &search.Options{}))
	assert.Contains(t, out.String(), "hello.WS-REC.WS-NAME")

	out.Reset()
	require.NoError(t, runSearch(ctx, &out, p, "zzzz", false, &search.Options{}))
	assert.Contains(t, out.String(), "No symbols match")

	assert.Error(t, runSearch(ctx, &out, p, "name", false, &search.Options{Kind: "table"}))
}

func TestRunDump(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	ctx := context.Background()

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runDump(ctx, &out, p, "text", "", false))
		assert.Contains(t, out.String(), "SourceMap created: lines 1, vars 2\n")
		assert.Contains(t, out.String(), "hello.WS-REC.WS-NAME > f_9\n")
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runDump(ctx, &out, p, "json", "", false))

		var doc sourcemap.Document
		require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
		assert.Equal(t, "/proj", doc.WorkingDir)
		assert.Len(t, doc.Includes, 1)
	})

	t.Run("yaml with file filter", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runDump(ctx, &out, p, "yaml", "src/other.cob", false))
		assert.Contains(t, out.String(), "working_dir: /proj\n")
		assert.Contains(t, out.String(), "lines: []\n")
	})

	t.Run("unknown format", func(t *testing.T) {
		var out bytes.Buffer
		assert.Error(t, runDump(ctx, &out, p, "xml", "", false))
	})
}

func TestRunFrames(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runFrames(ctx, &out, p, "build/hello.c", 0))
	assert.Contains(t, out.String(), "hello_")

	out.Reset()
	require.NoError(t, runFrames(ctx, &out, p, "/proj/build/hello.c", 10))
	assert.Contains(t, out.String(), "    6-12")

	assert.Error(t, runFrames(ctx, &out, p, "build/hello.c", 2))
}

func TestRunIncludes(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runIncludes(ctx, &out, p, false))
	assert.Contains(t, out.String(), "/proj/build/hello.c -> /proj/build/hello.c.h\n")
	assert.Contains(t, out.String(), "  1. /proj/build/hello.c\n  2. /proj/build/hello.c.h\n")

	out.Reset()
	require.NoError(t, runIncludes(ctx, &out, p, true))
	assert.Contains(t, out.String(), "digraph")
}

func TestRunSnapshots(t *testing.T) {
	t.Parallel()

	p := newTestProject(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runSnapshots(ctx, &out, p, 0))
	assert.Contains(t, out.String(), "No snapshots saved yet")

	for range 3 {
		require.NoError(t, runBuild(ctx, &out, p, buildOptions{quiet: true, save: true}))
	}

	out.Reset()
	require.NoError(t, runSnapshots(ctx, &out, p, 2))
	assert.Contains(t, out.String(), "✓ Pruned 1 snapshot(s)")
	assert.Contains(t, out.String(), "1 lines")
}

func TestRunClean(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sourcemap.db")

	t.Run("missing database", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runClean(&out, dbPath, false))
		assert.Contains(t, out.String(), "No snapshot database found")
	})

	t.Run("removes side files", func(t *testing.T) {
		for _, f := range databaseFiles(dbPath) {
			require.NoError(t, os.WriteFile(f, []byte("data"), 0644))
		}

		var out bytes.Buffer
		require.NoError(t, runClean(&out, dbPath, false))
		assert.Contains(t, out.String(), "✓ Removed")

		for _, f := range databaseFiles(dbPath) {
			_, err := os.Stat(f)
			assert.True(t, os.IsNotExist(err), "%s should be removed", f)
		}
	})
}

func TestCLIProgressReporter(t *testing.T) {
	t.Parallel()

	t.Run("quiet", func(t *testing.T) {
		var out bytes.Buffer
		r := NewCLIProgressReporter(&out, true)
		r.OnBuildStart(2)
		r.OnFileParsed(1, 2, "a.cob")
		r.OnFileParsed(2, 2, "b.cob")
		r.OnBuildComplete(10, 4, 0)
		assert.Empty(t, out.String())
		assert.Equal(t, 2, r.parsed)
	})

	t.Run("summary", func(t *testing.T) {
		var out bytes.Buffer
		r := NewCLIProgressReporter(&out, false)
		r.OnBuildStart(1)
		r.OnFileParsed(1, 1, "a.cob")
		r.OnBuildComplete(1234, 5, 0)
		assert.Contains(t, out.String(), "✓ Source map built: 1,234 lines, 5 vars")
	})
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "cobmap "+Version)
}
