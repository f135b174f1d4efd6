// Package postgres persists archives in a Postgres table through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"solidcore/internal/archive"
)

var _ archive.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/solidcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store keeps one row per archive name.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed store using dsn (falls back to defaultDSN)
// and ensures the archive table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureArchiveTable(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureArchiveTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS archives (
		name TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		encoding TEXT NOT NULL,
		entities INTEGER NOT NULL,
		size INTEGER NOT NULL,
		saved_at TIMESTAMPTZ NOT NULL,
		payload BYTEA NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure archives table: %w", err)
	}
	return nil
}

// Driver returns the backend identifier.
func (s *Store) Driver() string { return "postgres" }

// Put upserts the archive row inside a transaction.
func (s *Store) Put(ctx context.Context, meta archive.Meta, payload []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO archives(name,id,encoding,entities,size,saved_at,payload) VALUES($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT(name) DO UPDATE SET id=EXCLUDED.id, encoding=EXCLUDED.encoding, entities=EXCLUDED.entities,
		size=EXCLUDED.size, saved_at=EXCLUDED.saved_at, payload=EXCLUDED.payload`,
		meta.Name, meta.ID, meta.Encoding, int64(meta.Entities), int64(meta.Size), meta.SavedAt.UTC(), payload); err != nil {
		return fmt.Errorf("upsert %s: %w", meta.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Get returns the archive stored under name.
func (s *Store) Get(ctx context.Context, name string) (archive.Meta, []byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT name, id, encoding, entities, size, saved_at, payload FROM archives WHERE name = $1`, name)
	var (
		meta    archive.Meta
		payload []byte
	)
	if err := row.Scan(&meta.Name, &meta.ID, &meta.Encoding, &meta.Entities, &meta.Size, &meta.SavedAt, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return archive.Meta{}, nil, archive.ErrNotFound
		}
		return archive.Meta{}, nil, fmt.Errorf("select %s: %w", name, err)
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
		var m archive.Meta
		if err := rows.Scan(&m.Name, &m.ID, &m.Encoding, &m.Entities, &m.Size, &m.SavedAt); err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archives: %w", err)
	}
	return out, nil
}

// Delete removes name, reporting whether a row existed.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM archives WHERE name = $1`, name)
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

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
