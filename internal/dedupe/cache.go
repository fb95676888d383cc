// ABOUTME: Thread-safe TTL cache of claimed chat submission keys
// ABOUTME: Size-limited with oldest-first eviction and a background sweeper

package dedupe

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultTTL           = 5 * time.Minute
	DefaultMaxEntries    = 100_000
	DefaultSweepInterval = time.Minute
)

// Config controls cache lifetime and size.
type Config struct {
	TTL           time.Duration
	MaxEntries    int
	SweepInterval time.Duration
}

// Key builds the cache key for one client submission.
func Key(agentID, sessionID, clientMessageID string) string {
	return strings.Join([]string{agentID, sessionID, clientMessageID}, "\x00")
}

// claim records when a key was taken and its place in the eviction order.
type claim struct {
	at      time.Time
	element *list.Element
}

// Cache tracks claimed keys. The list keeps keys oldest-first so eviction at
// capacity is O(1).
type Cache struct {
	mu     sync.Mutex
	claims map[string]*claim
	order  *list.List
	cfg    Config
	now    func() time.Time
	done   chan struct{}
	closed bool
}

// New creates a cache and starts its sweeper. Call Close to stop it.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	c := &Cache{
		claims: make(map[string]*claim),
		order:  list.New(),
		cfg:    cfg,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Claim takes the key if it is free or expired and reports whether it did.
// A false result means the submission is a duplicate.
func (c *Cache) Claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if existing, ok := c.claims[key]; ok {
		if now.Sub(existing.at) < c.cfg.TTL {
			return false
		}
		c.removeLocked(key, existing)
	}

	if len(c.claims) >= c.cfg.MaxEntries {
		c.evictOldestLocked()
	}
	c.claims[key] = &claim{at: now, element: c.order.PushBack(key)}
	return true
}

// Claimed reports whether the key is currently held.
func (c *Cache) Claimed(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.claims[key]
	return ok && c.now().Sub(existing.at) < c.cfg.TTL
}

// Release frees a key so the same submission can be retried.
func (c *Cache) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.claims[key]; ok {
		c.removeLocked(key, existing)
	}
}

// Len returns the number of tracked keys, including expired ones not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.claims)
}

// Must be called with mu held.
func (c *Cache) removeLocked(key string, cl *claim) {
	c.order.Remove(cl.element)
	delete(c.claims, key)
}

// Must be called with mu held.
func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.claims, key)
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep drops expired keys. Claims are appended in time order, so it stops
// at the first live one.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for e := c.order.Front(); e != nil; {
		key, _ := e.Value.(string)
		cl := c.claims[key]
		if now.Sub(cl.at) < c.cfg.TTL {
			return
		}
		next := e.Next()
		c.removeLocked(key, cl)
		e = next
	}
}

// Close stops the sweeper. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
