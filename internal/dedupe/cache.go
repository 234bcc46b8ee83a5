// ABOUTME: Thread-safe TTL cache of chat replies keyed by idempotency key
// ABOUTME: Lets the backend answer a retried turn without asking the model twice

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry stores the reply, its timestamp and its list element.
type cacheEntry struct {
	timestamp time.Time
	element   *list.Element
	reply     string
	done      bool
}

// Cache is a TTL-based, size-limited record of turns the backend has seen.
// A key is either in flight (claimed, no reply yet) or done (reply stored).
// A doubly-linked list keeps insertion order for O(1) eviction.
type Cache struct {
	mu      sync.RWMutex
	seen    map[string]*cacheEntry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache with the given TTL and maximum size.
// A background goroutine periodically removes expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Check reports whether key is claimed or answered and not expired.
func (c *Cache) Check(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.seen[key]
	return ok && c.live(entry)
}

// Reply returns the stored reply for key. The bool is false while the turn is
// still in flight, after expiry, or when the key was never seen.
func (c *Cache) Reply(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.seen[key]
	if !ok || !c.live(entry) || !entry.done {
		return "", false
	}
	return entry.reply, true
}

// CheckAndMark atomically claims key. It returns true when key was already
// claimed or answered, false when the caller now owns it.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.seen[key]
	if ok && c.live(entry) {
		return true
	}

	c.markLocked(key)
	return false
}

// ClaimState is the outcome of Claim.
type ClaimState int

const (
	// Claimed means the caller now owns key and must Complete or Release it.
	Claimed ClaimState = iota
	// InFlight means another caller owns key and has no reply yet.
	InFlight
	// Answered means key already has a stored reply.
	Answered
)

// Claim looks up key and claims it if free, in one locked step. The reply is
// set only when the state is Answered.
func (c *Cache) Claim(key string) (string, ClaimState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.seen[key]
	if ok && c.live(entry) {
		if entry.done {
			return entry.reply, Answered
		}
		return "", InFlight
	}

	c.markLocked(key)
	return "", Claimed
}

// Mark claims key without checking. Re-marking refreshes its timestamp and
// clears any stored reply.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key)
}

// Complete stores the reply for a claimed key. Unknown keys are added.
func (c *Cache) Complete(key, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.seen[key]
	if !ok {
		entry = c.markLocked(key)
	}
	entry.reply = reply
	entry.done = true
}

// Release forgets key so a failed turn can be retried.
func (c *Cache) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.seen[key]; ok {
		c.order.Remove(entry.element)
		delete(c.seen, key)
	}
}

// Len returns the number of tracked keys, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.seen)
}

func (c *Cache) live(entry *cacheEntry) bool {
	return time.Since(entry.timestamp) < c.ttl
}

// markLocked must be called with mu held.
func (c *Cache) markLocked(key string) *cacheEntry {
	now := time.Now()

	if entry, exists := c.seen[key]; exists {
		entry.timestamp = now
		entry.reply = ""
		entry.done = false
		c.order.MoveToBack(entry.element)
		return entry
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	entry := &cacheEntry{
		timestamp: now,
		element:   c.order.PushBack(key),
	}
	c.seen[key] = entry
	return entry
}

// evictOldest must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.seen {
		if now.Sub(entry.timestamp) > c.ttl {
			c.order.Remove(entry.element)
			delete(c.seen, key)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
