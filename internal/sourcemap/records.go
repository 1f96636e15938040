package sourcemap

import (
	"fmt"
	"path/filepath"
)

// SymbolRecord is the flat form of a Symbol used to persist a SourceMap.
type SymbolRecord struct {
	Unit          string
	GeneratedName string
	OriginalName  string
	Kind          SymbolKind
	CType         string
	Attribute     *Attribute
	Size          int
	Parent        string // generated name of the containing storage, if any
	Path          OriginalKey
}

// Records flattens the generated-name index in insertion order.
func (m *SourceMap) Records() []SymbolRecord {
	out := make([]SymbolRecord, 0, len(m.generatedOrder))
	for _, s := range m.Symbols() {
		r := SymbolRecord{
			Unit:          s.Unit,
			GeneratedName: s.GeneratedName,
			OriginalName:  s.OriginalName,
			Kind:          s.Kind,
			CType:         s.CType,
			Size:          s.Size,
			Path:          s.path,
		}
		if s.Attribute != nil {
			attr := *s.Attribute
			r.Attribute = &attr
		}
		if p, ok := s.Parent(); ok {
			r.Parent = p.Name
		}
		out = append(out, r)
	}
	return out
}

// Parts is the flat, persistable form of a SourceMap.
type Parts struct {
	Lines       []Line
	Symbols     []SymbolRecord
	Files       []string
	Includes    []IncludeEdge
	Units       []string
	Diagnostics []Diagnostic
}

// Parts flattens m for persistence.
func (m *SourceMap) Parts() Parts {
	return Parts{
		Lines:       m.Lines(),
		Symbols:     m.Records(),
		Files:       m.Files(),
		Includes:    m.Includes(),
		Units:       m.Units(),
		Diagnostics: m.Diagnostics(),
	}
}

// Restore rebuilds a queryable SourceMap from persisted parts. Symbols are
// indexed before any field is attached, so records may name a parent that
// appears later. Units also come from the symbol records, for parts saved
// without a unit list.
func Restore(cwd string, p Parts) (*SourceMap, error) {
	absCwd, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory %s: %w", cwd, err)
	}

	m := newSourceMap(absCwd)
	m.lines = append(m.lines, p.Lines...)
	m.files = append(m.files, p.Files...)
	m.includes = append(m.includes, p.Includes...)
	m.diagnostics = append(m.diagnostics, p.Diagnostics...)
	for _, u := range p.Units {
		m.units[u] = struct{}{}
	}

	symbols := make([]*Symbol, len(p.Symbols))
	for i, r := range p.Symbols {
		s := &Symbol{
			OriginalName:  r.OriginalName,
			GeneratedName: r.GeneratedName,
			Unit:          r.Unit,
			Kind:          r.Kind,
			CType:         r.CType,
			Size:          r.Size,
		}
		if r.Attribute != nil {
			attr := *r.Attribute
			s.Attribute = &attr
		}
		m.units[r.Unit] = struct{}{}
		m.setGenerated(s)
		symbols[i] = s
	}

	for i, r := range p.Symbols {
		s := symbols[i]
		if r.Parent != "" {
			parent, ok := m.byGenerated[Key{Unit: r.Unit, Name: r.Parent}]
			if !ok {
				return nil, fmt.Errorf("symbol %s.%s references unknown parent %s", r.Unit, r.GeneratedName, r.Parent)
			}
			parent.addChild(s)
		}
		m.setOriginal(r.Path, s)
	}

	return m, nil
}
