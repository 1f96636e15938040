package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/cobmap/internal/sourcemap"
)

// Snapshot describes one persisted build.
type Snapshot struct {
	ID          string
	Cwd         string
	CreatedAt   time.Time
	LineCount   int
	SymbolCount int
}

// Reader loads snapshots back into queryable source maps.
type Reader struct {
	db *sql.DB
}

// NewReader creates a Reader instance.
// DB should have schema already created.
func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

func snapshotColumns() sq.SelectBuilder {
	return sq.Select("id", "cwd", "created_at", "line_count", "symbol_count").From("snapshots")
}

func scanSnapshot(row sq.RowScanner) (*Snapshot, error) {
	s := &Snapshot{}
	var createdAt string
	if err := row.Scan(&s.ID, &s.Cwd, &createdAt, &s.LineCount, &s.SymbolCount); err != nil {
		return nil, err
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return s, nil
}

// LatestSnapshot returns the most recently written snapshot.
func (r *Reader) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	s, err := scanSnapshot(snapshotColumns().
		OrderBy("created_at DESC", "rowid DESC").
		Limit(1).
		RunWith(r.db).
		QueryRowContext(ctx))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return s, nil
}

// GetSnapshot returns the snapshot with the given id.
func (r *Reader) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	s, err := scanSnapshot(snapshotColumns().
		Where(sq.Eq{"id": id}).
		RunWith(r.db).
		QueryRowContext(ctx))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s: %w", id, err)
	}
	return s, nil
}

// ListSnapshots returns every snapshot, newest first.
func (r *Reader) ListSnapshots(ctx context.Context) ([]*Snapshot, error) {
	rows, err := snapshotColumns().
		OrderBy("created_at DESC", "rowid DESC").
		RunWith(r.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return out, nil
}

// LoadSourceMap restores the snapshot with the given id.
func (r *Reader) LoadSourceMap(ctx context.Context, id string) (*sourcemap.SourceMap, error) {
	snap, err := r.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	var parts sourcemap.Parts
	if parts.Files, err = r.readFiles(ctx, id); err != nil {
		return nil, err
	}
	if parts.Lines, err = r.readLines(ctx, id); err != nil {
		return nil, err
	}
	if parts.Symbols, err = r.readSymbols(ctx, id); err != nil {
		return nil, err
	}
	if parts.Includes, err = r.readIncludes(ctx, id); err != nil {
		return nil, err
	}
	if parts.Units, err = r.readUnits(ctx, id); err != nil {
		return nil, err
	}
	if parts.Diagnostics, err = r.readDiagnostics(ctx, id); err != nil {
		return nil, err
	}

	m, err := sourcemap.Restore(snap.Cwd, parts)
	if err != nil {
		return nil, fmt.Errorf("failed to restore snapshot %s: %w", id, err)
	}
	return m, nil
}

// LoadLatest restores the most recent snapshot.
func (r *Reader) LoadLatest(ctx context.Context) (*sourcemap.SourceMap, *Snapshot, error) {
	snap, err := r.LatestSnapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	m, err := r.LoadSourceMap(ctx, snap.ID)
	if err != nil {
		return nil, nil, err
	}
	return m, snap, nil
}

func (r *Reader) query(ctx context.Context, table string, id string, columns ...string) (*sql.Rows, error) {
	rows, err := sq.Select(columns...).
		From(table).
		Where(sq.Eq{"snapshot_id": id}).
		OrderBy("seq").
		RunWith(r.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	return rows, nil
}

func (r *Reader) readFiles(ctx context.Context, id string) ([]string, error) {
	rows, err := r.query(ctx, "snapshot_files", id, "path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (r *Reader) readLines(ctx context.Context, id string) ([]sourcemap.Line, error) {
	rows, err := r.query(ctx, "lines", id, "original_file", "original_line", "generated_file", "generated_line")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []sourcemap.Line
	for rows.Next() {
		var l sourcemap.Line
		if err := rows.Scan(&l.OriginalFile, &l.OriginalLine, &l.GeneratedFile, &l.GeneratedLine); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *Reader) readSymbols(ctx context.Context, id string) ([]sourcemap.SymbolRecord, error) {
	rows, err := r.query(ctx, "symbols", id,
		"unit", "generated_name", "original_name", "kind", "ctype",
		"has_attr", "attr_type", "attr_length", "attr_digits",
		"size", "parent_name", "path_unit", "path_parent", "path_name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []sourcemap.SymbolRecord
	for rows.Next() {
		var (
			rec     sourcemap.SymbolRecord
			kind    string
			hasAttr bool
			attr    sourcemap.Attribute
			tag     int
		)
		err := rows.Scan(
			&rec.Unit, &rec.GeneratedName, &rec.OriginalName, &kind, &rec.CType,
			&hasAttr, &tag, &attr.Length, &attr.Digits,
			&rec.Size, &rec.Parent, &rec.Path.Unit, &rec.Path.Parent, &rec.Path.Name,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		rec.Kind = sourcemap.SymbolKind(kind)
		if hasAttr {
			attr.Type = sourcemap.TypeTag(tag)
			rec.Attribute = &attr
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Reader) readIncludes(ctx context.Context, id string) ([]sourcemap.IncludeEdge, error) {
	rows, err := r.query(ctx, "includes", id, "from_path", "to_path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []sourcemap.IncludeEdge
	for rows.Next() {
		var e sourcemap.IncludeEdge
		if err := rows.Scan(&e.From, &e.To); err != nil {
			return nil, fmt.Errorf("failed to scan include: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (r *Reader) readUnits(ctx context.Context, id string) ([]string, error) {
	rows, err := r.query(ctx, "snapshot_units", id, "unit")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (r *Reader) readDiagnostics(ctx context.Context, id string) ([]sourcemap.Diagnostic, error) {
	rows, err := r.query(ctx, "diagnostics", id, "kind", "file", "line", "message")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var diags []sourcemap.Diagnostic
	for rows.Next() {
		var (
			d    sourcemap.Diagnostic
			kind string
		)
		if err := rows.Scan(&kind, &d.File, &d.Line, &d.Message); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		d.Kind = sourcemap.DiagnosticKind(kind)
		diags = append(diags, d)
	}
	return diags, rows.Err()
}
