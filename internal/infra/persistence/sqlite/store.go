// Package sqlite persists archives in a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"solidcore/internal/archive"
)

var _ archive.Store = (*Store)(nil)

// DefaultPath is used when NewStore is given an empty path.
const DefaultPath = "solidcore.db"

// Store keeps one row per archive name. Metadata columns mirror archive.Meta
// so List never decodes payloads.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path and ensures the archive
// table exists.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS archives (
		name TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		encoding TEXT NOT NULL,
		entities INTEGER NOT NULL,
		size INTEGER NOT NULL,
		saved_at TEXT NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create archives table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Driver returns the backend identifier.
func (s *Store) Driver() string { return "sqlite" }

// Put upserts the archive row inside a transaction.
func (s *Store) Put(ctx context.Context, meta archive.Meta, payload []byte) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO archives(name,id,encoding,entities,size,saved_at,payload) VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET id=excluded.id, encoding=excluded.encoding, entities=excluded.entities,
		size=excluded.size, saved_at=excluded.saved_at, payload=excluded.payload`,
		meta.Name, meta.ID, meta.Encoding, meta.Entities, meta.Size, meta.SavedAt.UTC().Format(time.RFC3339Nano), payload); err != nil {
		return fmt.Errorf("upsert %s: %w", meta.Name, err)
	}
	return tx.Commit()
}

// Get returns the archive stored under name.
func (s *Store) Get(ctx context.Context, name string) (archive.Meta, []byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT name, id, encoding, entities, size, saved_at, payload FROM archives WHERE name = ?`, name)
	var (
		meta    archive.Meta
		savedAt string
		payload []byte
	)
	if err := row.Scan(&meta.Name, &meta.ID, &meta.Encoding, &meta.Entities, &meta.Size, &savedAt, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return archive.Meta{}, nil, archive.ErrNotFound
		}
		return archive.Meta{}, nil, fmt.Errorf("select %s: %w", name, err)
	}
	var err error
	if meta.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
		return archive.Meta{}, nil, fmt.Errorf("decode saved_at for %s: %w", name, err)
	}
	return meta, payload, nil
}

// List returns archive metadata ordered by name.
func (s *Store) List(ctx context.Context) ([]archive.Meta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, id, encoding, entities, size, saved_at FROM archives ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select archives: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []archive.Meta
	for rows.Next() {
		var (
			m       archive.Meta
			savedAt string
		)
		if err := rows.Scan(&m.Name, &m.ID, &m.Encoding, &m.Entities, &m.Size, &savedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if m.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
			return nil, fmt.Errorf("decode saved_at for %s: %w", m.Name, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes name, reporting whether a row existed.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM archives WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
