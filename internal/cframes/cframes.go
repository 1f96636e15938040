// Package cframes locates the C functions of a generated translation unit so
// a debugger can name the frame a generated line belongs to.
package cframes

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/afero"
	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"
)

// Function is a C function definition with 1-based inclusive line bounds.
type Function struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Static    bool   `json:"static"`
}

// Contains reports whether line falls inside the definition.
func (f Function) Contains(line int) bool {
	return line >= f.StartLine && line <= f.EndLine
}

// Index lists the function definitions of one generated file, ordered by
// start line.
type Index struct {
	File      string
	Functions []Function
}

// ParseFile reads file from fs and indexes it.
func ParseFile(ctx context.Context, fs afero.Fs, file string) (*Index, error) {
	source, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return Parse(ctx, file, source)
}

// Parse indexes the function definitions in source.
func Parse(ctx context.Context, file string, source []byte) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(sitter.NewLanguage(c.Language())); err != nil {
		return nil, fmt.Errorf("failed to load C grammar: %w", err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse C file: %s", file)
	}
	defer tree.Close()

	ix := &Index{File: file}
	walkTree(tree.RootNode(), func(n *sitter.Node) bool {
		if n.Kind() != "function_definition" {
			return true
		}
		if fn, ok := extractFunction(n, source); ok {
			ix.Functions = append(ix.Functions, fn)
		}
		// C has no nested functions
		return false
	})

	sort.SliceStable(ix.Functions, func(i, j int) bool {
		return ix.Functions[i].StartLine < ix.Functions[j].StartLine
	})
	return ix, nil
}

// FunctionAt returns the function whose body spans line.
func (ix *Index) FunctionAt(line int) (Function, bool) {
	i := sort.Search(len(ix.Functions), func(i int) bool {
		return ix.Functions[i].EndLine >= line
	})
	if i < len(ix.Functions) && ix.Functions[i].Contains(line) {
		return ix.Functions[i], true
	}
	return Function{}, false
}

// Lookup returns the function with the given name.
func (ix *Index) Lookup(name string) (Function, bool) {
	for _, fn := range ix.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return Function{}, false
}

func extractFunction(node *sitter.Node, source []byte) (Function, bool) {
	declarator := node.ChildByFieldName("declarator")
	if declarator == nil {
		return Function{}, false
	}

	name := findFunctionName(declarator, source)
	if name == "" {
		return Function{}, false
	}

	fn := Function{
		Name:      name,
		StartLine: int(node.StartPosition().Row) + 1,
		EndLine:   int(node.EndPosition().Row) + 1,
	}

	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		fn.Signature = nodeText(typeNode, source) + " "
	}
	fn.Signature += nodeText(declarator, source)

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() == "storage_class_specifier" && nodeText(child, source) == "static" {
			fn.Static = true
		}
	}

	return fn, true
}

// findFunctionName finds the identifier inside a possibly pointer-wrapped
// function declarator.
func findFunctionName(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}

	switch node.Kind() {
	case "identifier":
		return nodeText(node, source)
	case "function_declarator", "pointer_declarator", "parenthesized_declarator":
		if inner := node.ChildByFieldName("declarator"); inner != nil {
			return findFunctionName(inner, source)
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() == "identifier" {
			return nodeText(child, source)
		}
	}
	return ""
}

func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// walkTree visits nodes depth-first; returning false skips a node's children.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visitor(node) {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkTree(node.Child(uint(i)), visitor)
	}
}
