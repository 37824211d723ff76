// Package cache stores compiled program images in a SQLite database,
// keyed by a digest of the sources that produced them.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrMiss indicates no image is cached for the requested digest.
var ErrMiss = errors.New("image not cached")

// Cache is a digest-addressed store of encoded images.
type Cache struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) a cache database under dir.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "images.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS images (
		digest TEXT PRIMARY KEY,
		image BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Digest hashes a set of sources into a cache key. Files are folded in
// path order so the digest does not depend on map iteration.
func Digest(sources map[string]string) string {
	paths := make([]string, 0, len(sources))
	for p := range sources {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		h.Write([]byte(p))
		h.Write([]byte{0})
		h.Write([]byte(sources[p]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Put stores an encoded image under the given digest, replacing any
// previous entry.
func (c *Cache) Put(digest string, image []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO images (digest, image) VALUES (?, ?)",
		digest, image,
	)
	if err != nil {
		return fmt.Errorf("storing image: %w", err)
	}
	return nil
}

// Get retrieves the image cached under the given digest. Returns
// ErrMiss when the digest is unknown.
func (c *Cache) Get(digest string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var image []byte
	err := c.db.QueryRow("SELECT image FROM images WHERE digest = ?", digest).Scan(&image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("querying image: %w", err)
	}
	return image, nil
}

// Delete removes a cached image. Deleting an absent digest is not an
// error.
func (c *Cache) Delete(digest string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM images WHERE digest = ?", digest); err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}

// Len returns the number of cached images.
func (c *Cache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM images").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting images: %w", err)
	}
	return n, nil
}
