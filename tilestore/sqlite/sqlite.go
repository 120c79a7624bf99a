package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/hupe1980/tilecache/tilestore"
)

var _ tilestore.Store = (*Store)(nil)

const schema = `CREATE TABLE IF NOT EXISTS tiles (
	band TEXT NOT NULL,
	x    INTEGER NOT NULL,
	y    INTEGER NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (band, x, y)
)`

// Store keeps tiles in a single SQLite table.
type Store struct {
	db    *sql.DB
	owned bool
}

// Open opens (or creates) the database file at path and prepares the tiles table.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an open database. The caller keeps ownership of db.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key tilestore.Key) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM tiles WHERE band = ? AND x = ? AND y = ?`,
		key.Band, key.X, key.Y).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tilestore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s: %w", key, err)
	}
	return data, nil
}

func (s *Store) Put(ctx context.Context, key tilestore.Key, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tiles (band, x, y, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT (band, x, y) DO UPDATE SET data = excluded.data`,
		key.Band, key.X, key.Y, data)
	if err != nil {
		return fmt.Errorf("sqlite: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key tilestore.Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tiles WHERE band = ? AND x = ? AND y = ?`,
		key.Band, key.X, key.Y)
	if err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", key, err)
	}
	return nil
}

// Count returns the number of tiles stored for band.
func (s *Store) Count(ctx context.Context, band string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tiles WHERE band = ?`, band).Scan(&n)
	return n, err
}

// Close closes the database if it was opened by Open.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
