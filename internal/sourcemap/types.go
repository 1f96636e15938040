package sourcemap

import (
	"fmt"
	"strings"
)

// TypeTag is the libcob storage type byte (COB_TYPE_*) of a field attribute.
type TypeTag uint8

const (
	TypeUnknown            TypeTag = 0x00
	TypeGroup              TypeTag = 0x01
	TypeBoolean            TypeTag = 0x02
	TypeNumericDisplay     TypeTag = 0x10
	TypeNumericBinary      TypeTag = 0x11
	TypeNumericPacked      TypeTag = 0x12
	TypeNumericFloat       TypeTag = 0x13
	TypeNumericDouble      TypeTag = 0x14
	TypeNumericLDouble     TypeTag = 0x15
	TypeNumericFPDec64     TypeTag = 0x16
	TypeNumericFPDec128    TypeTag = 0x17
	TypeNumericFPBin32     TypeTag = 0x18
	TypeNumericFPBin64     TypeTag = 0x19
	TypeNumericFPBin128    TypeTag = 0x1A
	TypeNumericComp5       TypeTag = 0x1B
	TypeAlphanumeric       TypeTag = 0x21
	TypeAlphanumericAll    TypeTag = 0x22
	TypeAlphanumericEdited TypeTag = 0x23
	TypeNumericEdited      TypeTag = 0x24
	TypeNational           TypeTag = 0x40
	TypeNationalEdited     TypeTag = 0x41
)

var typeTagNames = map[TypeTag]string{
	TypeUnknown:            "unknown",
	TypeGroup:              "group",
	TypeBoolean:            "boolean",
	TypeNumericDisplay:     "numeric_display",
	TypeNumericBinary:      "numeric_binary",
	TypeNumericPacked:      "numeric_packed",
	TypeNumericFloat:       "numeric_float",
	TypeNumericDouble:      "numeric_double",
	TypeNumericLDouble:     "numeric_l_double",
	TypeNumericFPDec64:     "numeric_fp_dec64",
	TypeNumericFPDec128:    "numeric_fp_dec128",
	TypeNumericFPBin32:     "numeric_fp_bin32",
	TypeNumericFPBin64:     "numeric_fp_bin64",
	TypeNumericFPBin128:    "numeric_fp_bin128",
	TypeNumericComp5:       "numeric_comp5",
	TypeAlphanumeric:       "alphanumeric",
	TypeAlphanumericAll:    "alphanumeric_all",
	TypeAlphanumericEdited: "alphanumeric_edited",
	TypeNumericEdited:      "numeric_edited",
	TypeNational:           "national",
	TypeNationalEdited:     "national_edited",
}

func (t TypeTag) String() string {
	if name, ok := typeTagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint8(t))
}

// IsNumeric reports whether the tag belongs to the numeric class (0x10-0x1F).
func (t TypeTag) IsNumeric() bool {
	return t&0xF0 == 0x10 || t == TypeNumericEdited
}

// Attribute describes the storage type and layout of a field descriptor.
type Attribute struct {
	Type   TypeTag
	Length int
	Digits int
}

func (a Attribute) String() string {
	return fmt.Sprintf("{%s, %d, %d}", a.Type, a.Length, a.Digits)
}

// SymbolKind distinguishes storage declarations from field descriptors.
type SymbolKind string

const (
	KindStorage SymbolKind = "storage"
	KindField   SymbolKind = "field"
)

// Key identifies a symbol in the generated-name index.
type Key struct {
	Unit string
	Name string
}

func (k Key) String() string {
	return k.Unit + "." + k.Name
}

// OriginalKey identifies a symbol in the original-name index. Parent is empty
// for top-level entries.
type OriginalKey struct {
	Unit   string
	Parent string
	Name   string
}

func (k OriginalKey) String() string {
	if k.Parent == "" {
		return k.Unit + "." + k.Name
	}
	return k.Unit + "." + k.Parent + "." + k.Name
}

// Symbol is a COBOL variable or a field of one, as declared in the generated C.
type Symbol struct {
	OriginalName  string
	GeneratedName string
	Unit          string
	Kind          SymbolKind

	// CType is the C storage type of a storage declaration (e.g. "cob_u8_t").
	CType string

	// Attribute is nil when the field referenced an attribute that was not
	// declared before it, and always nil for storage declarations.
	Attribute *Attribute

	// Size is the declared field size; zero for storage declarations.
	Size int

	Children []*Symbol

	parent    Key
	hasParent bool
	path      OriginalKey
}

// Key returns the symbol's generated-name index key.
func (s *Symbol) Key() Key {
	return Key{Unit: s.Unit, Name: s.GeneratedName}
}

// Parent returns the generated-name key of the containing storage symbol.
func (s *Symbol) Parent() (Key, bool) {
	return s.parent, s.hasParent
}

// Path returns the key under which the symbol is reachable by its COBOL name.
func (s *Symbol) Path() OriginalKey {
	return s.path
}

func (s *Symbol) addChild(child *Symbol) {
	child.parent = s.Key()
	child.hasParent = true
	s.Children = append(s.Children, child)
}

func (s *Symbol) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)", s.Kind, s.OriginalName, s.Key())
	if s.Attribute != nil {
		fmt.Fprintf(&b, " %s", s.Attribute)
	}
	if s.Kind == KindField {
		fmt.Fprintf(&b, " size=%d", s.Size)
	}
	return b.String()
}

// Line pairs a COBOL location with a location in the generated C.
type Line struct {
	OriginalFile  string `json:"original_file" yaml:"original_file"`
	OriginalLine  int    `json:"original_line" yaml:"original_line"`
	GeneratedFile string `json:"generated_file" yaml:"generated_file"`
	GeneratedLine int    `json:"generated_line" yaml:"generated_line"`
}

// IsZero reports whether l is the empty placeholder location.
func (l Line) IsZero() bool {
	return l == Line{}
}

func (l Line) String() string {
	return fmt.Sprintf("%s %d > %s %d", l.OriginalFile, l.OriginalLine, l.GeneratedFile, l.GeneratedLine)
}

func (l Line) sameOrigin(other Line) bool {
	return l.OriginalFile == other.OriginalFile && l.OriginalLine == other.OriginalLine
}
