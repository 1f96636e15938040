package sourcemap

// Document is the serialisable view of a SourceMap used by dumps and
// service responses. Symbols nest under their storage.
type Document struct {
	WorkingDir  string           `json:"working_dir" yaml:"working_dir"`
	Units       []string         `json:"units" yaml:"units"`
	Files       []string         `json:"files" yaml:"files"`
	Lines       []Line           `json:"lines" yaml:"lines"`
	Symbols     []SymbolDocument `json:"symbols" yaml:"symbols"`
	Includes    []IncludeEdge    `json:"includes,omitempty" yaml:"includes,omitempty"`
	Diagnostics []Diagnostic     `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// SymbolDocument is the serialisable view of a Symbol.
type SymbolDocument struct {
	Path          string             `json:"path" yaml:"path"`
	Unit          string             `json:"unit" yaml:"unit"`
	OriginalName  string             `json:"original_name" yaml:"original_name"`
	GeneratedName string             `json:"generated_name" yaml:"generated_name"`
	Kind          SymbolKind         `json:"kind" yaml:"kind"`
	CType         string             `json:"ctype,omitempty" yaml:"ctype,omitempty"`
	Attribute     *AttributeDocument `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Size          int                `json:"size,omitempty" yaml:"size,omitempty"`
	Children      []SymbolDocument   `json:"children,omitempty" yaml:"children,omitempty"`
}

// AttributeDocument renders the type tag by name alongside its raw value.
type AttributeDocument struct {
	Type    string `json:"type" yaml:"type"`
	Tag     uint8  `json:"tag" yaml:"tag"`
	Length  int    `json:"length" yaml:"length"`
	Digits  int    `json:"digits" yaml:"digits"`
	Numeric bool   `json:"numeric" yaml:"numeric"`
}

// Document builds the serialisable view of m. Only top-level symbols appear
// in Symbols; fields attached to storage appear as its Children.
func (m *SourceMap) Document() *Document {
	doc := &Document{
		WorkingDir:  m.cwd,
		Units:       m.Units(),
		Files:       m.Files(),
		Lines:       m.Lines(),
		Symbols:     []SymbolDocument{},
		Includes:    m.Includes(),
		Diagnostics: m.Diagnostics(),
	}
	for _, s := range m.Symbols() {
		if _, nested := s.Parent(); nested {
			continue
		}
		doc.Symbols = append(doc.Symbols, s.Document())
	}
	return doc
}

// Document builds the serialisable view of s and its children.
func (s *Symbol) Document() SymbolDocument {
	d := SymbolDocument{
		Path:          s.path.String(),
		Unit:          s.Unit,
		OriginalName:  s.OriginalName,
		GeneratedName: s.GeneratedName,
		Kind:          s.Kind,
		CType:         s.CType,
		Size:          s.Size,
	}
	if s.Attribute != nil {
		d.Attribute = &AttributeDocument{
			Type:    s.Attribute.Type.String(),
			Tag:     uint8(s.Attribute.Type),
			Length:  s.Attribute.Length,
			Digits:  s.Attribute.Digits,
			Numeric: s.Attribute.Type.IsNumeric(),
		}
	}
	for _, c := range s.Children {
		d.Children = append(d.Children, c.Document())
	}
	return d
}
