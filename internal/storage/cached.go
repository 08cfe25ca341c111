package storage

import (
	"sync"
	"time"

	"flkv/internal/cache"
)

// CachedEngine wraps an engine with an LRU read cache. Writes go through to
// the engine and then update the cache under the same lock, so a reader
// never observes a value the engine has already replaced.
type CachedEngine struct {
	engine Engine
	cache  *cache.LRUCache
	config CacheConfig

	mu     sync.RWMutex
	closed bool

	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

type CacheConfig struct {
	Size            int
	MaxBytes        int64
	TTL             time.Duration
	CleanupInterval time.Duration
}

var _ Engine = (*CachedEngine)(nil)

func NewCachedEngine(engine Engine, config CacheConfig) *CachedEngine {
	c := &CachedEngine{
		engine: engine,
		cache:  cache.NewLRUCache(config.Size, config.MaxBytes),
		config: config,
	}

	if config.TTL > 0 && config.CleanupInterval > 0 {
		c.stopCleanup = make(chan struct{})
		c.cleanupDone = make(chan struct{})
		go c.cleanupLoop()
	}

	return c
}

func (c *CachedEngine) Put(key, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if err := c.engine.Put(key, value); err != nil {
		c.cache.Delete(string(key))
		return err
	}
	c.cache.Put(string(key), value, c.config.TTL)
	return nil
}

// Get serves hits from the cache and fills it on a miss. The fill runs under
// the read lock, which excludes writers, so it cannot cache a stale value.
func (c *CachedEngine) Get(key []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}

	keyStr := string(key)
	if value, found := c.cache.Get(keyStr); found {
		return value, nil
	}

	value, err := c.engine.Get(key)
	if err != nil {
		return nil, err
	}
	c.cache.Put(keyStr, value, c.config.TTL)
	return value, nil
}

func (c *CachedEngine) Delete(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	err := c.engine.Delete(key)
	c.cache.Delete(string(key))
	return err
}

// Write replays the batch onto the cache in order after the engine accepts
// it. A rejected batch only invalidates the keys it touches.
func (c *CachedEngine) Write(batch *Batch, sync bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if err := c.engine.Write(batch, sync); err != nil {
		if batch != nil {
			batch.Range(func(op Op) bool {
				c.cache.Delete(string(op.Key))
				return true
			})
		}
		return err
	}

	batch.Range(func(op Op) bool {
		switch op.Kind {
		case OpPut:
			c.cache.Put(string(op.Key), op.Value, c.config.TTL)
		case OpDelete:
			c.cache.Delete(string(op.Key))
		}
		return true
	})
	return nil
}

// List is not cached.
func (c *CachedEngine) List(prefix []byte, limit int) ([]KeyValue, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.engine.List(prefix, limit)
}

func (c *CachedEngine) Flush() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return c.engine.Flush()
}

func (c *CachedEngine) Compact() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return c.engine.Compact()
}

func (c *CachedEngine) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.stopCleanup != nil {
		close(c.stopCleanup)
		<-c.cleanupDone
	}
	c.cache.Close()

	return c.engine.Close()
}

// Stats returns the engine statistics with the cache counters under "cache".
func (c *CachedEngine) Stats() map[string]interface{} {
	stats := c.engine.Stats()

	cacheStats := c.cache.Stats()
	stats["cache"] = map[string]interface{}{
		"enabled":   true,
		"hits":      cacheStats.Hits,
		"misses":    cacheStats.Misses,
		"evictions": cacheStats.Evictions,
		"size":      cacheStats.Size,
		"capacity":  cacheStats.Capacity,
		"bytes":     cacheStats.Bytes,
		"max_bytes": cacheStats.MaxBytes,
		"hit_ratio": cacheStats.HitRatio,
	}

	return stats
}

// CacheStats returns the current cache counters.
func (c *CachedEngine) CacheStats() cache.CacheStats {
	return c.cache.Stats()
}

func (c *CachedEngine) cleanupLoop() {
	defer close(c.cleanupDone)

	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cache.CleanupExpired()
		case <-c.stopCleanup:
			return
		}
	}
}
