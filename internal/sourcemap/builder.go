package sourcemap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/spf13/afero"
)

// DefaultGeneratedExt is the extension cobc gives translated programs.
const DefaultGeneratedExt = ".c"

// maxLineSize bounds a single generated line. cobc emits long initializer
// lines for large tables.
const maxLineSize = 4 * 1024 * 1024

// ProgressReporter reports progress while a SourceMap is built.
type ProgressReporter interface {
	OnBuildStart(totalFiles int)
	OnFileParsed(processed, total int, originalFile string)
	OnBuildComplete(lineCount, symbolCount int, duration time.Duration)
}

// BuilderOption configures Build.
type BuilderOption func(*builder)

// WithFs sets the file system generated files are read from.
func WithFs(fs afero.Fs) BuilderOption {
	return func(b *builder) {
		b.fs = fs
	}
}

// WithGeneratedExt sets the extension appended to a COBOL file's stem to
// find its translation, and cut from file names to form unit names.
func WithGeneratedExt(ext string) BuilderOption {
	return func(b *builder) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if ext != "" {
			b.ext = ext
		}
	}
}

// WithGeneratedDir sets the directory holding generated files. Relative
// directories are taken from the working directory.
func WithGeneratedDir(dir string) BuilderOption {
	return func(b *builder) {
		b.genDir = dir
	}
}

// WithProgress configures progress reporting.
func WithProgress(progress ProgressReporter) BuilderOption {
	return func(b *builder) {
		b.progress = progress
	}
}

// builder holds the state of a single Build call.
type builder struct {
	ctx      context.Context
	fs       afero.Fs
	ext      string
	genDir   string
	progress ProgressReporter

	m          *SourceMap
	attributes map[Key]Attribute
	includes   graph.Graph[string, string]
}

// Build parses the generated translation of every COBOL file in originalFiles
// and returns the resulting SourceMap. Generated files are looked up by the
// COBOL file's base name with its extension replaced, inside the working
// directory. Any unreadable file or malformed record aborts the build.
func Build(ctx context.Context, cwd string, originalFiles []string, opts ...BuilderOption) (*SourceMap, error) {
	absCwd, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory %s: %w", cwd, err)
	}

	b := &builder{
		ctx:        ctx,
		fs:         afero.NewOsFs(),
		ext:        DefaultGeneratedExt,
		m:          newSourceMap(absCwd),
		attributes: make(map[Key]Attribute),
		includes:   graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles()),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.genDir = b.m.resolve(b.genDir)

	startTime := time.Now()
	if b.progress != nil {
		b.progress.OnBuildStart(len(originalFiles))
	}

	for i, original := range originalFiles {
		if err := b.parse(b.generatedPathFor(original)); err != nil {
			return nil, err
		}
		if b.progress != nil {
			b.progress.OnFileParsed(i+1, len(originalFiles), original)
		}
	}

	if b.progress != nil {
		b.progress.OnBuildComplete(b.m.LineCount(), b.m.SymbolCount(), time.Since(startTime))
	}

	return b.m, nil
}

// generatedPathFor derives the translation path of a COBOL source file.
func (b *builder) generatedPathFor(original string) string {
	base := filepath.Base(original)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(b.genDir, stem+b.ext)
}

// resolveGenerated resolves an included or derived path against the
// generated directory.
func (b *builder) resolveGenerated(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(b.genDir, p)
}

// unitName cuts a generated file name at the last occurrence of ext, so that
// prog.c, prog.c.h and prog.c.l.h all share the unit "prog".
func unitName(file, ext string) string {
	base := filepath.Base(file)
	if i := strings.LastIndex(base, ext); i > 0 {
		return base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// parse streams one generated file, recursing into its includes depth-first.
func (b *builder) parse(file string) error {
	if err := b.ctx.Err(); err != nil {
		return err
	}

	if err := b.includes.AddVertex(file); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		return fmt.Errorf("failed to track %s: %w", file, err)
	}

	f, err := b.fs.Open(file)
	if err != nil {
		return &MissingArtifactError{Path: file, Err: err}
	}
	defer f.Close()

	unit := unitName(file, b.ext)
	b.m.files = append(b.m.files, file)
	b.m.units[unit] = struct{}{}

	st := &fileState{file: file, unit: unit}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := b.parseLine(st, scanner.Text()); err != nil {
			return err
		}
		st.index++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	return nil
}

// fileState is the per-file cursor of a parse.
type fileState struct {
	file     string
	unit     string
	index    int // zero-based line index
	original string
}

func (st *fileState) malformed(field, value string, err error) error {
	return &MalformedRecordError{File: st.file, Line: st.index + 1, Field: field, Value: value, Err: err}
}

// parseLine applies every extractor to a line in fixed order.
func (b *builder) parseLine(st *fileState, text string) error {
	if path, ok := matchOrigin(text); ok {
		st.original = b.m.resolve(path)
	}

	if n, ok := matchProcedure(text); ok {
		lineNo, err := strconv.Atoi(n)
		if err != nil {
			return st.malformed("line", n, err)
		}
		b.m.addLine(Line{
			OriginalFile:  st.original,
			OriginalLine:  lineNo,
			GeneratedFile: st.file,
			GeneratedLine: st.index + 2,
		})
	}

	if decl, ok := matchAttribute(text); ok {
		attr, err := st.attribute(decl)
		if err != nil {
			return err
		}
		b.attributes[Key{Unit: st.unit, Name: decl.ID}] = attr
	}

	if decl, ok := matchStorage(text); ok {
		storage := &Symbol{
			OriginalName:  decl.OriginalName,
			GeneratedName: decl.GeneratedName,
			Unit:          st.unit,
			Kind:          KindStorage,
			CType:         strings.TrimSpace(decl.CType),
		}
		b.m.setGenerated(storage)
		b.m.setOriginal(OriginalKey{Unit: st.unit, Name: storage.OriginalName}, storage)
	}

	if decl, ok := matchField(text); ok {
		if err := b.addField(st, decl); err != nil {
			return err
		}
	}

	if path, ok := matchInclude(text); ok {
		child := b.resolveGenerated(path)
		if err := b.trackInclude(st.file, child); err != nil {
			return err
		}
		if err := b.parse(child); err != nil {
			return err
		}
	}

	return nil
}

func (st *fileState) attribute(decl attributeDecl) (Attribute, error) {
	tag, err := strconv.ParseUint(decl.Type, 0, 8)
	if err != nil {
		return Attribute{}, st.malformed("type", decl.Type, err)
	}
	length, err := strconv.Atoi(decl.Length)
	if err != nil {
		return Attribute{}, st.malformed("length", decl.Length, err)
	}
	digits, err := strconv.Atoi(decl.Digits)
	if err != nil {
		return Attribute{}, st.malformed("digits", decl.Digits, err)
	}
	return Attribute{Type: TypeTag(tag), Length: length, Digits: digits}, nil
}

// addField indexes a field descriptor and attaches it to its backing storage
// when that storage was declared earlier in the same unit.
func (b *builder) addField(st *fileState, decl fieldDecl) error {
	size, err := strconv.Atoi(decl.Size)
	if err != nil {
		return st.malformed("size", decl.Size, err)
	}

	field := &Symbol{
		OriginalName:  decl.OriginalName,
		GeneratedName: decl.GeneratedName,
		Unit:          st.unit,
		Kind:          KindField,
		Size:          size,
	}
	if attr, ok := b.attributes[Key{Unit: st.unit, Name: decl.AttributeID}]; ok {
		field.Attribute = &attr
	} else {
		b.m.diagnostics = append(b.m.diagnostics, Diagnostic{
			Kind:    UnresolvedReference,
			File:    st.file,
			Line:    st.index + 1,
			Message: fmt.Sprintf("field %s references undeclared attribute %s", decl.GeneratedName, decl.AttributeID),
		})
	}
	b.m.setGenerated(field)

	if storage, ok := b.m.byGenerated[Key{Unit: st.unit, Name: decl.Storage}]; ok {
		storage.addChild(field)
		b.m.setOriginal(OriginalKey{Unit: st.unit, Parent: storage.OriginalName, Name: field.OriginalName}, field)
	} else {
		b.m.setOriginal(OriginalKey{Unit: st.unit, Name: field.OriginalName}, field)
	}

	return nil
}

// trackInclude records an include edge, refusing edges that close a cycle.
// Including the same file again along an acyclic path is allowed.
func (b *builder) trackInclude(from, to string) error {
	if err := b.includes.AddVertex(to); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		return fmt.Errorf("failed to track %s: %w", to, err)
	}

	err := b.includes.AddEdge(from, to)
	switch {
	case err == nil:
		b.m.includes = append(b.m.includes, IncludeEdge{From: from, To: to})
	case errors.Is(err, graph.ErrEdgeAlreadyExists):
	case errors.Is(err, graph.ErrEdgeCreatesCycle):
		return &IncludeCycleError{From: from, To: to}
	default:
		return fmt.Errorf("failed to track include %s -> %s: %w", from, to, err)
	}
	return nil
}
