package cache

import (
	"container/list"
	"sync"
	"time"
)

// CacheStats is a snapshot of the cache counters and occupancy.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	Capacity  int
	Bytes     int64
	MaxBytes  int64
	HitRatio  float64
}

// LRUCache is a least recently used cache bounded by entry count and,
// optionally, by the total size of keys and values. The front of order is
// the most recently used entry.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	maxBytes int64
	bytes    int64
	entries  map[string]*list.Element
	order    *list.List

	hits, misses, evictions int64
}

type entry struct {
	key      string
	value    []byte
	deadline time.Time
}

func (e *entry) cost() int64 {
	return int64(len(e.key) + len(e.value))
}

func (e *entry) expiredAt(now time.Time) bool {
	return !e.deadline.IsZero() && now.After(e.deadline)
}

// NewLRUCache creates an LRU cache holding at most capacity entries. A
// maxBytes of zero or less disables the byte budget.
func NewLRUCache(capacity int, maxBytes int64) *LRUCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LRUCache{
		capacity: capacity,
		maxBytes: maxBytes,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns a copy of the cached value. Expired entries count as misses
// and are dropped on the way.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if ok && elem.Value.(*entry).expiredAt(time.Now()) {
		c.remove(elem)
		ok = false
	}
	if !ok {
		c.misses++
		return nil, false
	}

	c.hits++
	c.order.MoveToFront(elem)
	value := elem.Value.(*entry).value
	out := make([]byte, len(value))
	copy(out, value)
	return out, true
}

// Put stores a copy of value. It returns false when the entry alone exceeds
// the byte budget; any previous entry for key is dropped in that case.
func (c *LRUCache) Put(key string, value []byte, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.remove(elem)
	}

	e := &entry{key: key, value: make([]byte, len(value))}
	copy(e.value, value)
	if c.maxBytes > 0 && e.cost() > c.maxBytes {
		return false
	}
	if ttl > 0 {
		e.deadline = time.Now().Add(ttl)
	}

	c.entries[key] = c.order.PushFront(e)
	c.bytes += e.cost()

	for c.order.Len() > c.capacity || (c.maxBytes > 0 && c.bytes > c.maxBytes) {
		c.remove(c.order.Back())
		c.evictions++
	}
	return true
}

// Delete drops key and reports whether it was cached.
func (c *LRUCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if ok {
		c.remove(elem)
	}
	return ok
}

func (c *LRUCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.order.Len(),
		Capacity:  c.capacity,
		Bytes:     c.bytes,
		MaxBytes:  c.maxBytes,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRatio = float64(c.hits) / float64(total)
	}
	return stats
}

// CleanupExpired removes expired entries and reports how many were dropped.
func (c *LRUCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if elem.Value.(*entry).expiredAt(now) {
			c.remove(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Close releases every entry and resets the counters.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)
	c.order.Init()
	c.bytes = 0
	c.hits, c.misses, c.evictions = 0, 0, 0
	return nil
}

func (c *LRUCache) remove(elem *list.Element) {
	e := c.order.Remove(elem).(*entry)
	delete(c.entries, e.key)
	c.bytes -= e.cost()
}
