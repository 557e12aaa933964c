// Package cache provides a small LRU cache with TTL, used to keep hot
// per-user aggregates out of the database.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Get returns the cached value for key. Expired entries are evicted on read.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if time.Now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return item.data, true
}

// Set stores a value, evicting the least recently used entry when full.
func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Delete removes a key from the cache.
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

// Size returns the current number of entries, expired ones included.
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}
