package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/mvp-joe/cobmap/internal/sourcemap"
)

const lockRetryDelay = 50 * time.Millisecond

// Writer persists built source maps as snapshots.
type Writer struct {
	db   *sql.DB
	lock *flock.Flock
}

// NewWriter creates a Writer without cross-process locking.
// DB must have schema already created via CreateSchema().
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// WriteSnapshot stores the flattened parts of m in a single transaction and
// returns the new snapshot id.
func (w *Writer) WriteSnapshot(ctx context.Context, m *sourcemap.SourceMap) (string, error) {
	if w.lock != nil {
		locked, err := w.lock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return "", fmt.Errorf("failed to acquire lock: %w", err)
		}
		if !locked {
			return "", ErrLocked
		}
		defer w.lock.Unlock()
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	id := uuid.New().String()
	_, err = sq.Insert("snapshots").
		Columns("id", "cwd", "created_at", "line_count", "symbol_count").
		Values(id, m.WorkingDir(), time.Now().UTC().Format(time.RFC3339Nano), m.LineCount(), m.SymbolCount()).
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to insert snapshot: %w", err)
	}

	parts := m.Parts()
	if err := writeFiles(ctx, tx, id, parts.Files); err != nil {
		return "", err
	}
	if err := writeLines(ctx, tx, id, parts.Lines); err != nil {
		return "", err
	}
	if err := writeSymbols(ctx, tx, id, parts.Symbols); err != nil {
		return "", err
	}
	if err := writeIncludes(ctx, tx, id, parts.Includes); err != nil {
		return "", err
	}
	if err := writeUnits(ctx, tx, id, parts.Units); err != nil {
		return "", err
	}
	if err := writeDiagnostics(ctx, tx, id, parts.Diagnostics); err != nil {
		return "", err
	}
	if err := setMetadata(tx, "latest_snapshot", id); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit snapshot: %w", err)
	}

	return id, nil
}

// prepare builds the insert once with squirrel and prepares it on tx.
func prepare(ctx context.Context, tx *sql.Tx, builder sq.InsertBuilder, dummy ...interface{}) (*sql.Stmt, error) {
	sqlStr, _, err := builder.Values(dummy...).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	return stmt, nil
}

func writeFiles(ctx context.Context, tx *sql.Tx, id string, files []string) error {
	stmt, err := prepare(ctx, tx, sq.Insert("snapshot_files").Columns("snapshot_id", "seq", "path"), "", 0, "")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, f := range files {
		if _, err := stmt.ExecContext(ctx, id, i, f); err != nil {
			return fmt.Errorf("failed to write file %s: %w", f, err)
		}
	}
	return nil
}

func writeLines(ctx context.Context, tx *sql.Tx, id string, lines []sourcemap.Line) error {
	stmt, err := prepare(ctx, tx,
		sq.Insert("lines").Columns(
			"snapshot_id", "seq", "original_file", "original_line", "generated_file", "generated_line",
		),
		"", 0, "", 0, "", 0,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, l := range lines {
		if _, err := stmt.ExecContext(ctx, id, i, l.OriginalFile, l.OriginalLine, l.GeneratedFile, l.GeneratedLine); err != nil {
			return fmt.Errorf("failed to write line %s: %w", l, err)
		}
	}
	return nil
}

func writeSymbols(ctx context.Context, tx *sql.Tx, id string, records []sourcemap.SymbolRecord) error {
	stmt, err := prepare(ctx, tx,
		sq.Insert("symbols").Columns(
			"snapshot_id", "seq", "unit", "generated_name", "original_name", "kind", "ctype",
			"has_attr", "attr_type", "attr_length", "attr_digits",
			"size", "parent_name", "path_unit", "path_parent", "path_name",
		),
		"", 0, "", "", "", "", "", false, 0, 0, 0, 0, "", "", "", "",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		var attr sourcemap.Attribute
		if r.Attribute != nil {
			attr = *r.Attribute
		}
		_, err := stmt.ExecContext(ctx,
			id, i, r.Unit, r.GeneratedName, r.OriginalName, string(r.Kind), r.CType,
			r.Attribute != nil, int(attr.Type), attr.Length, attr.Digits,
			r.Size, r.Parent, r.Path.Unit, r.Path.Parent, r.Path.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to write symbol %s.%s: %w", r.Unit, r.GeneratedName, err)
		}
	}
	return nil
}

func writeIncludes(ctx context.Context, tx *sql.Tx, id string, edges []sourcemap.IncludeEdge) error {
	stmt, err := prepare(ctx, tx, sq.Insert("includes").Columns("snapshot_id", "seq", "from_path", "to_path"), "", 0, "", "")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range edges {
		if _, err := stmt.ExecContext(ctx, id, i, e.From, e.To); err != nil {
			return fmt.Errorf("failed to write include %s -> %s: %w", e.From, e.To, err)
		}
	}
	return nil
}

func writeUnits(ctx context.Context, tx *sql.Tx, id string, units []string) error {
	stmt, err := prepare(ctx, tx, sq.Insert("snapshot_units").Columns("snapshot_id", "seq", "unit"), "", 0, "")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, u := range units {
		if _, err := stmt.ExecContext(ctx, id, i, u); err != nil {
			return fmt.Errorf("failed to write unit %s: %w", u, err)
		}
	}
	return nil
}

func writeDiagnostics(ctx context.Context, tx *sql.Tx, id string, diags []sourcemap.Diagnostic) error {
	stmt, err := prepare(ctx, tx,
		sq.Insert("diagnostics").Columns("snapshot_id", "seq", "kind", "file", "line", "message"),
		"", 0, "", "", 0, "",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, d := range diags {
		if _, err := stmt.ExecContext(ctx, id, i, string(d.Kind), d.File, d.Line, d.Message); err != nil {
			return fmt.Errorf("failed to write diagnostic %s: %w", d, err)
		}
	}
	return nil
}

// Prune deletes all but the newest keep snapshots. Returns the number removed.
func (w *Writer) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	rows, err := sq.Select("id").
		From("snapshots").
		OrderBy("created_at DESC", "rowid DESC").
		Offset(uint64(keep)).
		Limit(1 << 31).
		RunWith(w.db).
		QueryContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list snapshots: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan snapshot id: %w", err)
		}
		stale = append(stale, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating snapshots: %w", err)
	}

	if len(stale) == 0 {
		return 0, nil
	}

	// Child rows go with ON DELETE CASCADE
	res, err := sq.Delete("snapshots").
		Where(sq.Eq{"id": stale}).
		RunWith(w.db).
		ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
