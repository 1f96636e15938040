// Package sourcemap correlates COBOL programs with the C that cobc generates
// from them.
//
// A SourceMap is built by streaming the generated C once, reading the
// provenance comments cobc leaves behind ("Generated from", "Line:") and the
// storage, field and attribute declarations of the program's data. It answers
// two kinds of questions for a debugger: where a COBOL line lives in the C
// (and back), and which C symbols make up a COBOL variable.
//
// A built SourceMap is never mutated and may be shared by concurrent readers.
package sourcemap

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"
)

// IncludeEdge is an #include followed while parsing.
type IncludeEdge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// SourceMap is the line and symbol correlation table of a set of programs.
type SourceMap struct {
	cwd   string
	lines []Line

	byGenerated    map[Key]*Symbol
	generatedOrder []Key
	byOriginal     map[OriginalKey]*Symbol
	originalOrder  []OriginalKey

	units       map[string]struct{}
	files       []string
	includes    []IncludeEdge
	diagnostics []Diagnostic
}

func newSourceMap(cwd string) *SourceMap {
	return &SourceMap{
		cwd:         cwd,
		byGenerated: make(map[Key]*Symbol),
		byOriginal:  make(map[OriginalKey]*Symbol),
		units:       make(map[string]struct{}),
	}
}

// resolve makes p absolute against the working directory.
func (m *SourceMap) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(m.cwd, p)
}

// addLine appends l, replacing the previous record when both point at the
// same COBOL line.
func (m *SourceMap) addLine(l Line) {
	if n := len(m.lines); n > 0 && m.lines[n-1].sameOrigin(l) {
		m.lines[n-1] = l
		return
	}
	m.lines = append(m.lines, l)
}

func (m *SourceMap) setGenerated(s *Symbol) {
	k := s.Key()
	if _, exists := m.byGenerated[k]; !exists {
		m.generatedOrder = append(m.generatedOrder, k)
	}
	m.byGenerated[k] = s
}

func (m *SourceMap) setOriginal(k OriginalKey, s *Symbol) {
	if _, exists := m.byOriginal[k]; !exists {
		m.originalOrder = append(m.originalOrder, k)
	}
	s.path = k
	m.byOriginal[k] = s
}

// WorkingDir returns the directory relative paths are resolved against.
func (m *SourceMap) WorkingDir() string {
	return m.cwd
}

// GeneratedLocation returns the first record for a COBOL line.
func (m *SourceMap) GeneratedLocation(originalFile string, originalLine int) (Line, bool) {
	originalFile = m.resolve(originalFile)
	for _, l := range m.lines {
		if l.OriginalFile == originalFile && l.OriginalLine == originalLine {
			return l, true
		}
	}
	return Line{}, false
}

// OriginalLocation returns the first record for a generated C line.
func (m *SourceMap) OriginalLocation(generatedFile string, generatedLine int) (Line, bool) {
	generatedFile = m.resolve(generatedFile)
	for _, l := range m.lines {
		if l.GeneratedFile == generatedFile && l.GeneratedLine == generatedLine {
			return l, true
		}
	}
	return Line{}, false
}

// HasOriginalLocationFor reports whether a generated C line maps to COBOL.
func (m *SourceMap) HasOriginalLocationFor(generatedFile string, generatedLine int) bool {
	_, ok := m.OriginalLocation(generatedFile, generatedLine)
	return ok
}

// HasGeneratedLocationFor reports whether a COBOL line maps to generated C.
func (m *SourceMap) HasGeneratedLocationFor(originalFile string, originalLine int) bool {
	_, ok := m.GeneratedLocation(originalFile, originalLine)
	return ok
}

// LinesFor returns every record of a COBOL source file in discovery order.
func (m *SourceMap) LinesFor(originalFile string) []Line {
	originalFile = m.resolve(originalFile)
	var out []Line
	for _, l := range m.lines {
		if l.OriginalFile == originalFile {
			out = append(out, l)
		}
	}
	return out
}

// SymbolByGeneratedName looks a symbol up by unit and C name.
func (m *SourceMap) SymbolByGeneratedName(k Key) (*Symbol, bool) {
	s, ok := m.byGenerated[k]
	return s, ok
}

// SymbolByGeneratedPath accepts the dotted form "<unit>.<name>".
func (m *SourceMap) SymbolByGeneratedPath(path string) (*Symbol, bool) {
	i := strings.LastIndex(path, ".")
	if i <= 0 {
		return nil, false
	}
	return m.SymbolByGeneratedName(Key{Unit: path[:i], Name: path[i+1:]})
}

// SymbolByOriginal looks a symbol up by its COBOL path.
func (m *SourceMap) SymbolByOriginal(k OriginalKey) (*Symbol, bool) {
	s, ok := m.byOriginal[k]
	return s, ok
}

// SymbolByOriginalPath accepts "<unit>.<name>" or "<unit>.<parent>.<name>".
// Units may themselves contain dots; longer unit names are tried first.
func (m *SourceMap) SymbolByOriginalPath(path string) (*Symbol, bool) {
	for _, unit := range m.unitsByLength() {
		rest, ok := strings.CutPrefix(path, unit+".")
		if !ok {
			continue
		}
		parts := strings.Split(rest, ".")
		var k OriginalKey
		switch len(parts) {
		case 1:
			k = OriginalKey{Unit: unit, Name: parts[0]}
		case 2:
			k = OriginalKey{Unit: unit, Parent: parts[0], Name: parts[1]}
		default:
			continue
		}
		if s, ok := m.byOriginal[k]; ok {
			return s, true
		}
	}
	return nil, false
}

func (m *SourceMap) unitsByLength() []string {
	units := m.Units()
	sort.SliceStable(units, func(i, j int) bool {
		return len(units[i]) > len(units[j])
	})
	return units
}

// Symbols returns every symbol of the generated-name index in insertion order.
func (m *SourceMap) Symbols() []*Symbol {
	out := make([]*Symbol, 0, len(m.generatedOrder))
	for _, k := range m.generatedOrder {
		out = append(out, m.byGenerated[k])
	}
	return out
}

// OriginalKeys returns the keys of the original-name index in insertion order.
func (m *SourceMap) OriginalKeys() []OriginalKey {
	out := make([]OriginalKey, len(m.originalOrder))
	copy(out, m.originalOrder)
	return out
}

// Lines returns a copy of the line records in discovery order.
func (m *SourceMap) Lines() []Line {
	out := make([]Line, len(m.lines))
	copy(out, m.lines)
	return out
}

func (m *SourceMap) LineCount() int {
	return len(m.lines)
}

func (m *SourceMap) SymbolCount() int {
	return len(m.byGenerated)
}

// Units returns the unit names seen, sorted.
func (m *SourceMap) Units() []string {
	out := make([]string, 0, len(m.units))
	for u := range m.units {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Files returns the generated files parsed, in parse order.
func (m *SourceMap) Files() []string {
	out := make([]string, len(m.files))
	copy(out, m.files)
	return out
}

// Includes returns the include edges followed, in discovery order.
func (m *SourceMap) Includes() []IncludeEdge {
	out := make([]IncludeEdge, len(m.includes))
	copy(out, m.includes)
	return out
}

// IncludeGraph returns the include edges as a directed graph keyed by path.
func (m *SourceMap) IncludeGraph() (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic())
	for _, f := range m.files {
		_ = g.AddVertex(f)
	}
	for _, e := range m.includes {
		_ = g.AddVertex(e.From)
		_ = g.AddVertex(e.To)
		if err := g.AddEdge(e.From, e.To); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return nil, fmt.Errorf("failed to add include %s -> %s: %w", e.From, e.To, err)
		}
	}
	return g, nil
}

// Diagnostics returns the non-fatal anomalies found while parsing.
func (m *SourceMap) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(m.diagnostics))
	copy(out, m.diagnostics)
	return out
}

// String renders every line record and the COBOL-to-C name mapping.
func (m *SourceMap) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SourceMap created: lines %d, vars %d\n", len(m.lines), len(m.byGenerated))
	for _, l := range m.lines {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	for _, k := range m.originalOrder {
		fmt.Fprintf(&b, "%s > %s\n", k, m.byOriginal[k].GeneratedName)
	}
	return b.String()
}
