package querycache

import (
	"container/list"
	"errors"
	"sync"
)

// Entry is a cached translation together with the result rows observed
// when it was first executed.
type Entry struct {
	Query   string
	Columns []string
	Rows    [][]any
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

type lruItem struct {
	key   string
	entry Entry
}

// Cache is a bounded LRU keyed by composite question/schema hashes. A Get
// promotes the entry to most recently used; a Set over capacity evicts the
// least recently used entry. Entries never expire by age.
type Cache struct {
	mu        sync.Mutex
	capacity  int
	order     *list.List
	items     map[string]*list.Element
	hits      uint64
	misses    uint64
	evictions uint64
}

// NewCache returns a cache holding at most capacity entries.
func NewCache(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, errors.New("querycache: capacity must be positive")
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}, nil
}

// Get looks up key. On a hit the entry becomes most recently used.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return Entry{}, false
	}
	c.hits++
	c.order.MoveToFront(elem)
	return elem.Value.(*lruItem).entry, true
}

// Set stores entry under key, overwriting any existing value. When the
// cache is full the least recently used entry is evicted first.
func (c *Cache) Set(key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		elem.Value.(*lruItem).entry = entry
		c.order.MoveToFront(elem)
		return
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*lruItem).key)
			c.evictions++
		}
	}
	c.items[key] = c.order.PushFront(&lruItem{key: key, entry: entry})
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Capacity reports the configured maximum number of entries.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:      c.order.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// DumpedEntry pairs a cache key with its entry for snapshot export.
type DumpedEntry struct {
	Key   string
	Entry Entry
}

// Dump returns all entries ordered least recently used first, so that
// restoring them in order reproduces the recency ranking.
func (c *Cache) Dump() []DumpedEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DumpedEntry, 0, c.order.Len())
	for elem := c.order.Back(); elem != nil; elem = elem.Prev() {
		item := elem.Value.(*lruItem)
		out = append(out, DumpedEntry{Key: item.key, Entry: item.entry})
	}
	return out
}
