package sourcemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test Plan for extractors:
// - Each extractor matches the line shapes cobc emits
// - Extractors are case-insensitive
// - Non-matching lines yield no capture
// - Empty attribute numbers are captured as empty strings (rejected later)

func TestMatchOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want string
		ok   bool
	}{
		{"relative", "/* Generated from          hello.cob */", "hello.cob", true},
		{"absolute", "/* Generated from /src/app/hello.cob */", "/src/app/hello.cob", true},
		{"windows", `/* Generated from C:\src\hello.cob */`, `C:\src\hello.cob`, true},
		{"case insensitive", "/* GENERATED FROM hello.cob */", "hello.cob", true},
		{"generated by banner", "/* Generated by            cobc 3.1.2.0 */", "", false},
		{"plain code", "int main (int argc, char **argv)", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := matchOrigin(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchProcedure(t *testing.T) {
	t.Parallel()

	got, ok := matchProcedure("  /* Line: 12        : DISPLAY            : hello.cob */")
	assert.True(t, ok)
	assert.Equal(t, "12", got)

	got, ok = matchProcedure("/* line: 7")
	assert.True(t, ok)
	assert.Equal(t, "7", got)

	_, ok = matchProcedure("/* Lines: 7 */")
	assert.False(t, ok)
}

func TestMatchAttribute(t *testing.T) {
	t.Parallel()

	decl, ok := matchAttribute("static const cob_field_attr a_1 =\t{0x21,   5,   0, 0x0000, NULL};")
	assert.True(t, ok)
	assert.Equal(t, attributeDecl{ID: "a_1", Type: "0x21", Length: "5", Digits: "0"}, decl)

	decl, ok = matchAttribute("static const cob_field_attr a_2 = {0x10, , 2, 0x0001, NULL};")
	assert.True(t, ok)
	assert.Equal(t, "", decl.Length)
	assert.Equal(t, "2", decl.Digits)

	_, ok = matchAttribute("static const cob_field_attr a_3 = {0x21, 5, 0};")
	assert.False(t, ok, "trailing attribute fields are required")

	_, ok = matchAttribute("static cob_field f_8 = {5, b_8, &a_1};")
	assert.False(t, ok)
}

func TestMatchStorage(t *testing.T) {
	t.Parallel()

	decl, ok := matchStorage("static cob_u8_t\tb_8[8] __attribute__((aligned));\t/* RETURN-CODE */")
	assert.True(t, ok)
	assert.Equal(t, storageDecl{CType: "cob_u8_t", GeneratedName: "b_8", OriginalName: "RETURN-CODE"}, decl)

	decl, ok = matchStorage("static int b_2; /* ws_counter */")
	assert.True(t, ok)
	assert.Equal(t, "b_2", decl.GeneratedName)
	assert.Equal(t, "ws_counter", decl.OriginalName)

	_, ok = matchStorage("static cob_u8_t b_8[8];")
	assert.False(t, ok, "a storage declaration needs its COBOL name comment")
}

func TestMatchField(t *testing.T) {
	t.Parallel()

	decl, ok := matchField("static cob_field f_9\t= {5, b_8 + 4, &a_2};\t/* WS-NAME */")
	assert.True(t, ok)
	assert.Equal(t, fieldDecl{
		GeneratedName: "f_9",
		Size:          "5",
		Storage:       "b_8",
		AttributeID:   "a_2",
		OriginalName:  "WS-NAME",
	}, decl)

	_, ok = matchField("static cob_field f_9 = {5, b_8, NULL}; /* WS-NAME */")
	assert.False(t, ok, "a field needs an attribute reference")
}

func TestMatchInclude(t *testing.T) {
	t.Parallel()

	got, ok := matchInclude(`#include "hello.c.h"`)
	assert.True(t, ok)
	assert.Equal(t, "hello.c.h", got)

	_, ok = matchInclude(`#include <libcob.h>`)
	assert.False(t, ok)
}
