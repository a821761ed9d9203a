// Package cache provides a bounded in-memory LRU cache whose entries carry
// their own expiry.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type LRU[V any] struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// New returns nil for a non-positive size; a nil cache misses every lookup.
func New[V any](maxEntries int) *LRU[V] {
	if maxEntries <= 0 {
		return nil
	}

	return &LRU[V]{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

func (c *LRU[V]) Get(key string, now time.Time) (V, bool) {
	var zero V

	if c == nil || key == "" {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	e := elem.Value.(*entry[V])

	if now.After(e.expiresAt) {
		c.removeElement(elem)

		return zero, false
	}

	c.order.MoveToFront(elem)

	return e.value, true
}

func (c *LRU[V]) Set(key string, value V, expiresAt time.Time, now time.Time) {
	if c == nil || key == "" || !expiresAt.After(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(elem)

		return
	}

	c.entries[key] = c.order.PushFront(&entry[V]{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	})

	c.evictExpiredLocked(now)
	c.enforceSizeLimitLocked()
}

func (c *LRU[V]) Len() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *LRU[V]) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()

		if now.After(elem.Value.(*entry[V]).expiresAt) {
			c.removeElement(elem)
		}

		elem = prev
	}
}

func (c *LRU[V]) enforceSizeLimitLocked() {
	for len(c.entries) > c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}

		c.removeElement(elem)
	}
}

func (c *LRU[V]) removeElement(elem *list.Element) {
	delete(c.entries, elem.Value.(*entry[V]).key)
	c.order.Remove(elem)
}
