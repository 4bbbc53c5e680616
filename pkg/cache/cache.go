package cache

import (
	"sync"
	"time"
)

// Item is a cached value with an optional expiration.
type Item struct {
	Value      interface{}
	Expiration int64
	LastAccess int64
}

// Expired reports whether the item has passed its expiration.
func (item Item) Expired() bool {
	if item.Expiration == 0 {
		return false
	}
	return time.Now().UnixNano() > item.Expiration
}

// Cache is a thread-safe in-memory cache bounded by both a TTL and a
// maximum entry count. When full, the least recently accessed entry is
// evicted.
type Cache struct {
	items             map[string]Item
	mu                sync.RWMutex
	defaultExpiration time.Duration
	maxItems          int
}

// New creates a cache with the given default TTL, entry cap and cleanup
// interval. A cleanupInterval of zero disables the background sweep.
func New(defaultExpiration time.Duration, maxItems int, cleanupInterval time.Duration) *Cache {
	c := &Cache{
		items:             make(map[string]Item),
		defaultExpiration: defaultExpiration,
		maxItems:          maxItems,
	}

	if cleanupInterval > 0 {
		go c.startCleanupTimer(cleanupInterval)
	}

	return c
}

// Set adds an item to the cache with the default expiration.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithExpiration(key, value, c.defaultExpiration)
}

// SetWithExpiration adds an item with a specific expiration.
func (c *Cache) SetWithExpiration(key string, value interface{}, d time.Duration) {
	var exp int64
	if d > 0 {
		exp = time.Now().Add(d).UnixNano()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxItems > 0 && len(c.items) >= c.maxItems {
		if _, exists := c.items[key]; !exists {
			c.evictOldest()
		}
	}

	c.items[key] = Item{
		Value:      value,
		Expiration: exp,
		LastAccess: time.Now().UnixNano(),
	}
}

// Get retrieves an item from the cache.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found || item.Expired() {
		return nil, false
	}

	item.LastAccess = time.Now().UnixNano()
	c.items[key] = item
	return item.Value, true
}

// Delete removes an item from the cache.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evictOldest removes the least recently accessed entry. Caller must
// hold the write lock.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestAccess int64
	for key, item := range c.items {
		if oldestKey == "" || item.LastAccess < oldestAccess {
			oldestKey = key
			oldestAccess = item.LastAccess
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

func (c *Cache) startCleanupTimer(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		c.deleteExpired()
	}
}

func (c *Cache) deleteExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, item := range c.items {
		if item.Expired() {
			delete(c.items, key)
		}
	}
}
