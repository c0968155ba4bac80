// Package cache provides a small in-memory TTL cache used by the analytics
// engine to avoid recomputing expensive correlation scans between requests.
package cache

import (
	"context"
	"sync"
	"time"
)

const (
	// cleanup cadence for expired entries
	cleanupInterval = time.Minute
)

// Cache defines the interface for cache operations
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	Clear()
	GetStats() Stats
}

// Stats holds cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	MaxSize   int
	HitRate   float64
}

// MemoryCache implements an in-memory cache with TTL support
type MemoryCache struct {
	data    map[string]*cacheItem
	mu      sync.RWMutex
	maxSize int
	hits    int64
	misses  int64
	evicted int64
	ctx     context.Context
	cancel  context.CancelFunc
}

// cacheItem represents a cached item with metadata
type cacheItem struct {
	value      any
	expiresAt  time.Time
	lastAccess time.Time
}

// NewMemoryCache creates a new in-memory cache holding at most maxSize entries
func NewMemoryCache(maxSize int) *MemoryCache {
	ctx, cancel := context.WithCancel(context.Background())

	c := &MemoryCache{
		data:    make(map[string]*cacheItem),
		maxSize: maxSize,
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.cleanupLoop()

	return c
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.data[key]
	if !exists {
		c.misses++
		return nil, false
	}

	if time.Now().After(item.expiresAt) {
		delete(c.data, key)
		c.misses++
		return nil, false
	}

	item.lastAccess = time.Now()
	c.hits++
	return item.value, true
}

// Set stores a value in the cache with the given TTL
func (c *MemoryCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.data) >= c.maxSize {
		c.evictOldest()
	}

	now := time.Now()
	c.data[key] = &cacheItem{
		value:      value,
		expiresAt:  now.Add(ttl),
		lastAccess: now,
	}
}

// Delete removes a key from the cache
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*cacheItem)
}

// GetStats returns cache statistics
func (c *MemoryCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evicted,
		Size:      len(c.data),
		MaxSize:   c.maxSize,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// Stop terminates the background cleanup goroutine
func (c *MemoryCache) Stop() {
	c.cancel()
}

// evictOldest removes the least recently accessed entry. Caller holds the lock.
func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestAccess time.Time

	for key, item := range c.data {
		if oldestKey == "" || item.lastAccess.Before(oldestAccess) {
			oldestKey = key
			oldestAccess = item.lastAccess
		}
	}

	if oldestKey != "" {
		delete(c.data, oldestKey)
		c.evicted++
	}
}

// cleanupLoop periodically removes expired entries
func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.ctx.Done():
			return
		}
	}
}

// removeExpired drops every entry past its TTL
func (c *MemoryCache) removeExpired() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, item := range c.data {
		if now.After(item.expiresAt) {
			delete(c.data, key)
		}
	}
}
