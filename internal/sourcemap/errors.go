package sourcemap

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by outer layers when a lookup has no result.
// The SourceMap itself reports misses through a boolean.
var ErrNotFound = errors.New("not found in source map")

// MissingArtifactError reports a generated file that could not be opened.
type MissingArtifactError struct {
	Path string
	Err  error
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing generated artifact %s: %v", e.Path, e.Err)
}

func (e *MissingArtifactError) Unwrap() error {
	return e.Err
}

// MalformedRecordError reports a matched record whose numeric capture could
// not be parsed.
type MalformedRecordError struct {
	File  string
	Line  int // 1-based line in File
	Field string
	Value string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at %s:%d: %s %q: %v", e.File, e.Line, e.Field, e.Value, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// IncludeCycleError reports an #include that would re-enter a file already
// being parsed.
type IncludeCycleError struct {
	From string
	To   string
}

func (e *IncludeCycleError) Error() string {
	return fmt.Sprintf("include cycle: %s includes %s", e.From, e.To)
}

// DiagnosticKind classifies a non-fatal anomaly found while parsing.
type DiagnosticKind string

const (
	// UnresolvedReference: a field referenced an attribute not declared before it.
	UnresolvedReference DiagnosticKind = "unresolved_reference"
)

// Diagnostic is a per-record anomaly that did not abort construction.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind" yaml:"kind"`
	File    string         `json:"file" yaml:"file"`
	Line    int            `json:"line" yaml:"line"`
	Message string         `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Line, d.Kind, d.Message)
}
