package sourcemap

import (
	"regexp"
)

// Patterns recognised in generated C. They follow the comment and
// declaration layout cobc emits with -g and must not drift from it.
var (
	originPattern    = regexp.MustCompile(`(?i)/\*\sGenerated from\s+([0-9a-z_\-/.\s\\:]+)\s+\*/`)
	procedurePattern = regexp.MustCompile(`(?i)/\*\sLine:\s([0-9]+)`)
	attributePattern = regexp.MustCompile(`(?i)static\sconst\scob_field_attr\s(a_[0-9]+).*\{(0x\d+),\s*(\d*),\s*(\d*),.*`)
	storagePattern   = regexp.MustCompile(`(?i)static\s+(.*)\s+(b_[0-9]+)[;\[].*/\*\s+([0-9a-z_\-]+)\s+\*/`)
	fieldPattern     = regexp.MustCompile(`(?i)static\s+cob_field\s+([0-9a-z_]+)\s+=\s+\{(\d+),\s+([0-9a-z_]+).+&(a_\d+).*/\*\s+([0-9a-z_\-]+)\s+\*/`)
	includePattern   = regexp.MustCompile(`(?i)#include\s+"([0-9a-z_\-.\s]+)"`)
)

type attributeDecl struct {
	ID     string
	Type   string
	Length string
	Digits string
}

type storageDecl struct {
	CType         string
	GeneratedName string
	OriginalName  string
}

type fieldDecl struct {
	GeneratedName string
	Size          string
	Storage       string
	AttributeID   string
	OriginalName  string
}

// matchOrigin extracts the COBOL path of a "Generated from" banner.
func matchOrigin(line string) (string, bool) {
	m := originPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// matchProcedure extracts the COBOL line number of a "Line:" marker.
func matchProcedure(line string) (string, bool) {
	m := procedurePattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func matchAttribute(line string) (attributeDecl, bool) {
	m := attributePattern.FindStringSubmatch(line)
	if m == nil {
		return attributeDecl{}, false
	}
	return attributeDecl{ID: m[1], Type: m[2], Length: m[3], Digits: m[4]}, true
}

func matchStorage(line string) (storageDecl, bool) {
	m := storagePattern.FindStringSubmatch(line)
	if m == nil {
		return storageDecl{}, false
	}
	return storageDecl{CType: m[1], GeneratedName: m[2], OriginalName: m[3]}, true
}

func matchField(line string) (fieldDecl, bool) {
	m := fieldPattern.FindStringSubmatch(line)
	if m == nil {
		return fieldDecl{}, false
	}
	return fieldDecl{
		GeneratedName: m[1],
		Size:          m[2],
		Storage:       m[3],
		AttributeID:   m[4],
		OriginalName:  m[5],
	}, true
}

// matchInclude extracts the path of a quoted #include.
func matchInclude(line string) (string, bool) {
	m := includePattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}
