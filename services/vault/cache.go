package vault

import (
	"container/list"
	"sync"
	"time"

	"github.com/recallhq/memvault/models"
)

// indexCache is an in-memory LRU cache with TTL for owner indexes, keyed by
// owner phone. Cached indexes are read-only; Store and Delete invalidate the
// owner's entry after rewriting index.json.
type indexCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	lruList *list.List
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64

	// epochs counts invalidations per owner. A reader snapshots the epoch
	// before going to disk and installs the result only if no write
	// invalidated the owner in between, so a slow read can never re-cache
	// a pre-write index.
	epochs map[string]uint64
}

type cacheEntry struct {
	owner      string
	index      *models.UserIndex
	insertedAt time.Time
	element    *list.Element
}

func (e *cacheEntry) isExpired(ttl time.Duration) bool {
	return time.Since(e.insertedAt) > ttl
}

func newIndexCache(maxSize int, ttl time.Duration) *indexCache {
	return &indexCache{
		entries: make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		epochs:  make(map[string]uint64),
	}
}

// Get returns the cached index for the owner, or nil on miss or expiry.
func (c *indexCache) Get(owner string) *models.UserIndex {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[owner]
	if !exists || entry.isExpired(c.ttl) {
		c.misses++
		if exists {
			c.removeEntry(owner)
		}
		return nil
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++
	return entry.index
}

// Epoch returns the owner's current invalidation epoch. Pass it to
// SetIfCurrent after reading the index from disk.
func (c *indexCache) Epoch(owner string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epochs[owner]
}

// SetIfCurrent stores the owner's index, evicting the least recently used
// entry when the cache is full. The index is discarded if the owner was
// invalidated since the epoch was taken.
func (c *indexCache) SetIfCurrent(owner string, ix *models.UserIndex, epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epochs[owner] != epoch {
		return
	}
	if entry, exists := c.entries[owner]; exists {
		entry.index = ix
		entry.insertedAt = time.Now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{owner: owner, index: ix, insertedAt: time.Now()}
	entry.element = c.lruList.PushFront(owner)
	c.entries[owner] = entry
}

// Invalidate removes the owner's cached index and bumps the epoch so
// in-flight reads cannot re-install a stale snapshot.
func (c *indexCache) Invalidate(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeEntry(owner)
	c.epochs[owner]++
}

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
}

func (c *indexCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// removeEntry must be called with the lock held.
func (c *indexCache) removeEntry(owner string) {
	if entry, exists := c.entries[owner]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, owner)
	}
}

// evictLRU must be called with the lock held.
func (c *indexCache) evictLRU() {
	back := c.lruList.Back()
	if back == nil {
		return
	}
	owner := back.Value.(string)
	c.lruList.Remove(back)
	delete(c.entries, owner)
}
