package newshound

import (
	"sync"
	"time"
)

// DefaultCacheTTL is how long a cached article stays reusable.
const DefaultCacheTTL = 1 * time.Hour

// articleCache is the agent's in-memory result cache. Entries expire lazily
// on read; there is no background eviction. The mutex guards the map itself;
// read-check-then-use races across goroutines are acceptable and cost at
// worst a duplicate fetch.
type articleCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	article    Article
	insertedAt time.Time
}

func newArticleCache(ttl time.Duration) *articleCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &articleCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// get returns the cached article for a URL if present and fresh. Expired
// entries are removed on the way out.
func (c *articleCache) get(url string) (Article, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[url]
	if !ok {
		return Article{}, false
	}
	if time.Since(entry.insertedAt) > c.ttl {
		delete(c.entries, url)
		return Article{}, false
	}
	return entry.article, true
}

// put stores an article under its URL, replacing any previous entry.
// Articles are immutable; replacement is the only form of update.
func (c *articleCache) put(url string, article Article) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = cacheEntry{article: article, insertedAt: time.Now()}
}

// len reports the number of entries, expired or not.
func (c *articleCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
