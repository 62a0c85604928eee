// Package respcache persists judge responses on disk so repeated validation
// of an unchanged screenshot costs nothing. It is a plain key-value store
// with a TTL; keys hash the image bytes, prompt, and model together.
package respcache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Cache is a SQLite-backed response cache.
type Cache struct {
	db  *sql.DB
	mu  sync.Mutex
	ttl time.Duration
}

// Open initializes the cache database at the given path. A non-positive TTL
// defaults to 24 hours.
func Open(path string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("respcache: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("respcache: open database: %w", err)
	}

	c := &Cache{db: db, ttl: ttl}
	if err := c.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) initialize() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS responses (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_created ON responses(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("respcache: create schema: %w", err)
		}
	}
	return nil
}

// Key derives the cache key for a judge call from the screenshot bytes, the
// prompt, and the model.
func Key(imageData []byte, prompt, model string) string {
	h := sha256.New()
	h.Write(imageData)
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(model))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached value for key, or ok=false when missing or expired.
func (c *Cache) Get(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var value string
	var createdAt int64
	err := c.db.QueryRow(`SELECT value, created_at FROM responses WHERE key = ?`, key).
		Scan(&value, &createdAt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("respcache: get: %w", err)
	}

	if time.Since(time.UnixMilli(createdAt)) > c.ttl {
		return "", false, nil
	}
	return value, true, nil
}

// Put stores a value, replacing any existing entry for the key.
func (c *Cache) Put(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO responses (key, value, created_at) VALUES (?, ?, ?)`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("respcache: put: %w", err)
	}
	return nil
}

// Prune deletes expired entries and returns how many were removed.
func (c *Cache) Prune() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-c.ttl).UnixMilli()
	res, err := c.db.Exec(`DELETE FROM responses WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("respcache: prune: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
