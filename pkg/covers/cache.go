package covers

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	KindCover     = "cover"
	KindThumbnail = "thumbnail"
)

// maxEntries bounds the LRU index itself; the effective limit is bytes.
const maxEntries = 4096

type cacheKey struct {
	bookID string
	kind   string
}

// Cache is a byte-capped LRU of rendered JPEGs. golang-lru counts entries,
// not bytes, so the cache tracks entry sizes itself and evicts oldest
// entries until the total fits again.
type Cache struct {
	mu    sync.Mutex
	lru   *lru.Cache[cacheKey, []byte]
	bytes int
	max   int
}

// NewCache creates a cache holding at most maxMB megabytes of encoded
// images. A cap of zero disables caching.
func NewCache(maxMB int) *Cache {
	c := &Cache{max: maxMB * 1024 * 1024}
	l, err := lru.NewWithEvict[cacheKey, []byte](maxEntries, func(_ cacheKey, data []byte) {
		c.bytes -= len(data)
	})
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(err)
	}
	c.lru = l
	return c
}

func (c *Cache) Get(bookID, kind string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(cacheKey{bookID: bookID, kind: kind})
}

func (c *Cache) Add(bookID, kind string, data []byte) {
	if c.max <= 0 || len(data) > c.max {
		return
	}
	key := cacheKey{bookID: bookID, kind: kind}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Remove first: replacing a key in place would not fire the eviction
	// callback and the old entry's bytes would leak from the accounting.
	c.lru.Remove(key)
	c.lru.Add(key, data)
	c.bytes += len(data)

	for c.bytes > c.max {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Bytes returns the total size of the cached images.
func (c *Cache) Bytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Purge drops every cached image.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
