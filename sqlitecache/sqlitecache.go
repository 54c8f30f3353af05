// Package sqlitecache provides a SQLite-backed adjudicator.Cache.
//
// The default Open("") uses an in-memory database, so cached results live
// exactly as long as the process - the same lifetime as MemoryCache, with
// SQL introspection for debugging. Passing a file path keeps results on disk
// instead; that is a deliberate caller choice, not a default.
//
// Values are serialized with encoding/gob. Callers must gob.Register every
// concrete type they cache; values that fail to encode are simply not
// cached, and rows that fail to decode read as misses. The cache is
// best-effort by contract - rule bodies are pure, so re-execution is always
// a correct fallback.
package sqlitecache

import (
	"bytes"
	"database/sql"
	_ "embed"
	"encoding/gob"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Cache is a SQLite-backed rule result cache. Safe for concurrent use; the
// connection pool is limited to a single connection, which both serializes
// writers and makes the in-memory database shared across all callers.
type Cache struct {
	db *sql.DB
}

// envelope wraps cached values for gob so interface-typed payloads
// round-trip with their concrete type.
type envelope struct {
	Value any
}

// Open creates or opens the cache database. An empty path opens an
// in-memory database.
func Open(path string) (*Cache, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to cache database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get implements adjudicator.Cache. A row that cannot be decoded (e.g. its
// concrete type was never gob-registered in this process) reads as a miss.
func (c *Cache) Get(key string) (any, bool) {
	var blob []byte
	err := c.db.QueryRow(`SELECT value FROM results WHERE key = ?`, key).Scan(&blob)
	switch {
	case err == sql.ErrNoRows:
		return nil, false
	case err != nil:
		slog.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}

	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&env); err != nil {
		slog.Warn("cache decode failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return env.Value, true
}

// Put implements adjudicator.Cache. Values that cannot be gob-encoded are
// skipped with a warning; the caller's result is unaffected.
func (c *Cache) Put(key string, value any) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope{Value: value}); err != nil {
		slog.Warn("cache encode failed, not caching", "key", key, "error", err)
		return
	}

	_, err := c.db.Exec(`
		INSERT INTO results (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, buf.Bytes())
	if err != nil {
		slog.Warn("cache write failed", "key", key, "error", err)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}
