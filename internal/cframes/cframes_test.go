package cframes

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for cframes:
// - Function definitions are found with 1-based inclusive bounds
// - Prototypes are not definitions
// - static linkage is detected
// - FunctionAt resolves lines inside bodies and misses lines between functions
// - ParseFile reads through afero and reports missing files

// Line numbers matter: prog spans 6-10, prog_ spans 12-18.
var generated = strings.Join([]string{
	"/* Generated by            cobc 3.2.0 */",
	"#include <libcob.h>",
	"",
	"static int prog_ (const int);",
	"",
	"int",
	"prog (void)",
	"{",
	"  return prog_ (0);",
	"}",
	"",
	"static int",
	"prog_ (const int entry)",
	"{",
	"  /* Line: 7         : DISPLAY   : prog.cob */",
	"  cob_display (0, 1, 1, &c_1);",
	"  return 0;",
	"}",
}, "\n") + "\n"

func TestParse_FindsDefinitions(t *testing.T) {
	t.Parallel()

	ix, err := Parse(context.Background(), "prog.c", []byte(generated))
	require.NoError(t, err)

	require.Len(t, ix.Functions, 2)
	assert.Equal(t, "prog", ix.Functions[0].Name)
	assert.Equal(t, 6, ix.Functions[0].StartLine)
	assert.Equal(t, 10, ix.Functions[0].EndLine)
	assert.False(t, ix.Functions[0].Static)

	assert.Equal(t, "prog_", ix.Functions[1].Name)
	assert.Equal(t, 12, ix.Functions[1].StartLine)
	assert.Equal(t, 18, ix.Functions[1].EndLine)
	assert.True(t, ix.Functions[1].Static)
	assert.Contains(t, ix.Functions[1].Signature, "prog_ (const int entry)")
}

func TestFunctionAt(t *testing.T) {
	t.Parallel()

	ix, err := Parse(context.Background(), "prog.c", []byte(generated))
	require.NoError(t, err)

	fn, ok := ix.FunctionAt(16)
	require.True(t, ok)
	assert.Equal(t, "prog_", fn.Name)

	fn, ok = ix.FunctionAt(9)
	require.True(t, ok)
	assert.Equal(t, "prog", fn.Name)

	_, ok = ix.FunctionAt(4)
	assert.False(t, ok, "prototype line")
	_, ok = ix.FunctionAt(11)
	assert.False(t, ok, "between functions")
	_, ok = ix.FunctionAt(99)
	assert.False(t, ok)

	fn, ok = ix.Lookup("prog")
	require.True(t, ok)
	assert.Equal(t, 6, fn.StartLine)
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/prog.c", []byte(generated), 0644))

	ix, err := ParseFile(context.Background(), fs, "/work/prog.c")
	require.NoError(t, err)
	assert.Equal(t, "/work/prog.c", ix.File)
	assert.Len(t, ix.Functions, 2)

	_, err = ParseFile(context.Background(), fs, "/work/missing.c")
	assert.Error(t, err)
}

func TestParse_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Parse(ctx, "prog.c", []byte(generated))
	assert.ErrorIs(t, err, context.Canceled)
}
