package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"
)

// ErrSnapshotNotFound is returned when no snapshot matches a request.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrLocked is returned when another process holds the write lock.
var ErrLocked = errors.New("snapshot store is locked by another process")

// Store owns a SQLite connection to a snapshot database and the file lock
// that serialises writers across processes.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
	path string
}

// Open opens (creating if needed) the snapshot database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	// Enable foreign key constraints (required for cascade deletes)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:   db,
		lock: flock.New(dbPath + ".lock"),
		path: dbPath,
	}, nil
}

// DB exposes the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Writer returns a snapshot writer guarded by the store's file lock.
func (s *Store) Writer() *Writer {
	return &Writer{db: s.db, lock: s.lock}
}

// Reader returns a snapshot reader.
func (s *Store) Reader() *Reader {
	return NewReader(s.db)
}

// Close closes the database and releases the lock if held.
func (s *Store) Close() error {
	if s.lock != nil && s.lock.Locked() {
		if err := s.lock.Unlock(); err != nil {
			return fmt.Errorf("failed to release lock: %w", err)
		}
	}
	return s.db.Close()
}

func getMetadata(db sq.BaseRunner, key string) (string, error) {
	var value string
	err := sq.Select("value").
		From("metadata").
		Where(sq.Eq{"key": key}).
		RunWith(db).
		QueryRow().
		Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

func setMetadata(db sq.BaseRunner, key, value string) error {
	_, err := sq.Insert("metadata").
		Columns("key", "value", "updated_at").
		Values(key, value, time.Now().UTC().Format(time.RFC3339)).
		Options("OR REPLACE").
		RunWith(db).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to set metadata %s: %w", key, err)
	}
	return nil
}
