package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// Cache is a write-through file cache for fetched inputs. Entries are
// gzip-compressed and keyed by the hash of the file name, so repeated runs
// against the same catalog never refetch.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// NewCache creates a cache rooted at dir. An empty dir disables caching;
// Get always misses and Put is a no-op.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

func cacheKey(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) path(name string) string {
	return filepath.Join(c.dir, cacheKey(name)+".gz")
}

// Get returns the cached payload for name, if present. Corrupt entries are
// treated as misses.
func (c *Cache) Get(name string) ([]byte, bool) {
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.path(name))
	if err != nil {
		return nil, false
	}
	defer f.Close() //nolint:errcheck

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, false
	}
	defer zr.Close() //nolint:errcheck

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put stores a payload. The write goes through a temp file and rename so a
// crash never leaves a truncated entry behind.
func (c *Cache) Put(name string, data []byte) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, "entry-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	zw := gzip.NewWriter(tmp)
	if _, err := zw.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := zw.Close(); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), c.path(name))
}
