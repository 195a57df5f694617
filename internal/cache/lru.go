package cache

import (
	"container/list"
	"sync"
	"time"
)

// FastCache is the in-process cache tier: a fixed-capacity, thread-safe LRU
// with per-entry absolute expiry. Inserting beyond capacity evicts the least
// recently used entry. An entry is expired the instant its expiry time is
// reached; Get never returns an expired value.
type FastCache struct {
	capacity   int
	defaultTTL time.Duration
	items      map[string]*fastEntry
	lruList    *list.List
	mu         sync.Mutex
	onEvict    func(key string)
	now        func() time.Time
}

type fastEntry struct {
	key       string
	value     interface{}
	expiresAt time.Time
	element   *list.Element
}

// NewFastCache creates a fast tier with the given capacity and default TTL.
func NewFastCache(capacity int, defaultTTL time.Duration) *FastCache {
	if capacity <= 0 {
		capacity = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}

	return &FastCache{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		items:      make(map[string]*fastEntry),
		lruList:    list.New(),
		now:        time.Now,
	}
}

// SetEvictionHook registers a callback invoked with the key of every entry
// removed by capacity eviction or expiry.
func (c *FastCache) SetEvictionHook(fn func(key string)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get retrieves a value. A hit moves the key to the most recently used
// position; an expired entry is removed and reported as a miss.
func (c *FastCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		return nil, false
	}

	// Exactly-at-expiry counts as expired.
	if !c.now().Before(item.expiresAt) {
		c.removeItem(item, true)
		return nil, false
	}

	c.lruList.MoveToFront(item.element)
	return item.value, true
}

// Set stores a value with the default TTL.
func (c *FastCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with an explicit TTL, computing the absolute
// expiry at insertion time.
func (c *FastCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	expiresAt := c.now().Add(ttl)

	if existing, exists := c.items[key]; exists {
		existing.value = value
		existing.expiresAt = expiresAt
		c.lruList.MoveToFront(existing.element)
		return
	}

	item := &fastEntry{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	}
	item.element = c.lruList.PushFront(item)
	c.items[key] = item

	if c.lruList.Len() > c.capacity {
		c.evictLRU()
	}
}

// Delete removes a key. Returns true if the key was present.
func (c *FastCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		return false
	}
	c.removeItem(item, false)
	return true
}

// Contains reports whether the key is present and unexpired without touching
// the recency order.
func (c *FastCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	return exists && c.now().Before(item.expiresAt)
}

// Clear removes all entries.
func (c *FastCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*fastEntry)
	c.lruList.Init()
}

// Len returns the current number of entries, including not-yet-swept expired
// ones.
func (c *FastCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// CleanupExpired removes every expired entry without waiting for access-time
// discovery. Returns the number of entries removed. Intended for a periodic
// maintenance call.
func (c *FastCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var expired []*fastEntry
	for _, item := range c.items {
		if !now.Before(item.expiresAt) {
			expired = append(expired, item)
		}
	}

	for _, item := range expired {
		c.removeItem(item, true)
	}

	return len(expired)
}

// removeItem removes an item from both the map and the recency list.
// Callers must hold the mutex.
func (c *FastCache) removeItem(item *fastEntry, evicted bool) {
	delete(c.items, item.key)
	c.lruList.Remove(item.element)
	if evicted && c.onEvict != nil {
		c.onEvict(item.key)
	}
}

// evictLRU removes the least recently used entry. Callers must hold the mutex.
func (c *FastCache) evictLRU() {
	element := c.lruList.Back()
	if element == nil {
		return
	}
	item := element.Value.(*fastEntry)
	c.removeItem(item, true)
}
