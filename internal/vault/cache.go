package vault

import (
	"sync"
	"time"

	"github.com/starford/dinosync/internal/checksum"
	"github.com/starford/dinosync/internal/frontmatter"
)

type cacheEntry struct {
	size    int64
	modTime time.Time
	sum     checksum.Digest
	fm      frontmatter.Frontmatter
}

// Cache is the vault metadata cache: parsed frontmatter keyed by path.
// Entries are revalidated against size and mtime on every lookup and can
// be dropped explicitly or by Watch.
type Cache struct {
	store Provider

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache creates an empty cache over store.
func NewCache(store Provider) *Cache {
	return &Cache{store: store, entries: make(map[string]cacheEntry)}
}

// Frontmatter returns the parsed frontmatter of the note at path. A note
// without frontmatter yields an empty, non-nil map.
func (c *Cache) Frontmatter(path string) (frontmatter.Frontmatter, error) {
	info, err := c.store.Stat(path)
	if err != nil {
		c.Invalidate(path)
		return nil, err
	}

	c.mu.Lock()
	e, ok := c.entries[path]
	c.mu.Unlock()
	if ok && e.size == info.Size && e.modTime.Equal(info.ModTime) {
		return e.fm, nil
	}

	data, err := c.store.Read(path)
	if err != nil {
		return nil, err
	}
	sum := checksum.Of(data)
	fm := e.fm
	if !ok || sum != e.sum {
		fm, _ = frontmatter.Parse(string(data))
		if fm == nil {
			fm = frontmatter.Frontmatter{}
		}
	}

	c.mu.Lock()
	c.entries[path] = cacheEntry{size: info.Size, modTime: info.ModTime, sum: sum, fm: fm}
	c.mu.Unlock()
	return fm, nil
}

// Invalidate drops the cached entry for path.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
