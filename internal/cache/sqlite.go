package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteDriver = "sqlite"

// SQLiteStore keeps entries in a single table. INSERT ... ON CONFLICT swaps
// the row in one statement, which is the atomic replace Save requires.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (and if needed creates) the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	// SQLite creates the -wal and -shm files with the database's mode, so
	// the database must exist as 0600 before the first connection.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create db: %w", err)
	}
	_ = f.Close()
	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS cache_entries (
    key TEXT PRIMARY KEY,
    payload TEXT NOT NULL,
    stored_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
  );`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache_entries: %w", err)
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Chmod(p, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
			_ = db.Close()
			return nil, fmt.Errorf("restrict %s: %w", filepath.Base(p), err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(key string) (Entry, bool, error) {
	var (
		e                   Entry
		storedAt, expiresAt int64
	)
	err := s.db.QueryRow(
		`SELECT key, payload, stored_at, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&e.Key, &e.Payload, &storedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	e.StoredAt = time.UnixMilli(storedAt)
	e.ExpiresAt = time.UnixMilli(expiresAt)
	return e, true, nil
}

func (s *SQLiteStore) Save(e Entry) error {
	_, err := s.db.Exec(
		`INSERT INTO cache_entries (key, payload, stored_at, expires_at)
     VALUES (?, ?, ?, ?)
     ON CONFLICT(key) DO UPDATE SET
       payload = excluded.payload,
       stored_at = excluded.stored_at,
       expires_at = excluded.expires_at`,
		e.Key, e.Payload, e.StoredAt.UnixMilli(), e.ExpiresAt.UnixMilli(),
	)
	return err
}

func (s *SQLiteStore) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}

func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM cache_entries`)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
