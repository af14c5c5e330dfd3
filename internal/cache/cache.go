package cache

import "sync"

// Cache is a generic thread-safe LRU cache with a soft limit.
// When the cache exceeds softLimit, the least recently used entry is
// evicted.
//
// Cache is safe for concurrent use.
// Cache must not be copied after creation (has mutex).
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	entries   map[K]*node[K, V]
	list      list[K, V]
	softLimit int
	onEvict   func(K, V)
	evictions uint64
	hits      uint64
	misses    uint64
}

// node is an entry in the doubly-linked LRU list. The head is the most
// recently used entry, the tail the least recently used.
type node[K comparable, V any] struct {
	key   K
	value V
	prev  *node[K, V]
	next  *node[K, V]
}

type list[K comparable, V any] struct {
	head *node[K, V]
	tail *node[K, V]
}

func (l *list[K, V]) pushFront(n *node[K, V]) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *list[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev = nil
	n.next = nil
}

func (l *list[K, V]) moveToFront(n *node[K, V]) {
	if n == l.head {
		return
	}
	l.unlink(n)
	l.pushFront(n)
}

// New creates a new cache with the given soft limit.
// A softLimit of 0 means unlimited. onEvict may be nil.
func New[K comparable, V any](softLimit int, onEvict func(K, V)) *Cache[K, V] {
	return &Cache[K, V]{
		entries:   make(map[K]*node[K, V]),
		softLimit: softLimit,
		onEvict:   onEvict,
	}
}

// Get retrieves a value from the cache.
// Returns (value, true) if found, (zero, false) otherwise.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.list.moveToFront(n)
	return n.value, true
}

// Set stores a value in the cache, replacing (and evicting) any previous
// value for key.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[key]; ok {
		old := n.value
		n.value = value
		c.list.moveToFront(n)
		if c.onEvict != nil {
			c.onEvict(key, old)
		}
		return
	}
	c.insertLocked(key, value)
}

// GetOrCreate returns the cached value or creates it.
// create is called under lock to prevent duplicate creation. A failed
// create leaves the cache unchanged.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[key]; ok {
		c.hits++
		c.list.moveToFront(n)
		return n.value, nil
	}
	c.misses++

	value, err := create()
	if err != nil {
		return value, err
	}
	c.insertLocked(key, value)
	return value, nil
}

// insertLocked adds a new entry and evicts over the soft limit.
// Caller must hold c.mu.
func (c *Cache[K, V]) insertLocked(key K, value V) {
	n := &node[K, V]{key: key, value: value}
	c.entries[key] = n
	c.list.pushFront(n)

	for c.softLimit > 0 && len(c.entries) > c.softLimit {
		c.evictOldestLocked()
	}
}

// evictOldestLocked removes the least recently used entry.
// Caller must hold c.mu.
func (c *Cache[K, V]) evictOldestLocked() {
	n := c.list.tail
	if n == nil {
		return
	}
	c.list.unlink(n)
	delete(c.entries, n.key)
	c.evictions++
	if c.onEvict != nil {
		c.onEvict(n.key, n.value)
	}
}

// Delete removes an entry from the cache.
// Returns true if the entry was found and removed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		return false
	}
	c.list.unlink(n)
	delete(c.entries, key)
	if c.onEvict != nil {
		c.onEvict(key, n.value)
	}
	return true
}

// DeleteIf removes every entry for which drop returns true and reports how
// many were removed.
func (c *Cache[K, V]) DeleteIf(drop func(K, V) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for n := c.list.tail; n != nil; {
		prev := n.prev
		if drop(n.key, n.value) {
			c.list.unlink(n)
			delete(c.entries, n.key)
			removed++
			if c.onEvict != nil {
				c.onEvict(n.key, n.value)
			}
		}
		n = prev
	}
	return removed
}

// Clear removes all entries from the cache, oldest first.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.list.tail != nil {
		n := c.list.tail
		c.list.unlink(n)
		if c.onEvict != nil {
			c.onEvict(n.key, n.value)
		}
	}
	c.entries = make(map[K]*node[K, V])
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Capacity returns the soft limit of the cache.
func (c *Cache[K, V]) Capacity() int {
	return c.softLimit
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Len:       len(c.entries),
		Capacity:  c.softLimit,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the soft limit.
	Capacity int
	// Hits is the number of lookups that found an entry.
	Hits uint64
	// Misses is the number of lookups that did not.
	Misses uint64
	// HitRate is the cache hit rate 0.0 to 1.0.
	HitRate float64
	// Evictions is the number of entries removed by the soft limit.
	Evictions uint64
}
