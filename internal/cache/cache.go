package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type entry struct {
	fingerprint string
	payload     interface{}
	createdAt   time.Time
	ttl         time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// ResultCache is a bounded, TTL-keyed store for computed query responses.
// Eviction is strict least-recently-inserted: the short TTL makes the
// LRU-vs-FIFO distinction immaterial, so FIFO keeps the implementation
// simple. Entries expire lazily on Get and via the optional sweeper.
//
// The mutex guards only map and order mutation; it is never held across a
// warehouse call, so concurrent identical misses may race. Duplicate
// warehouse calls under that stampede are accepted.
type ResultCache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	order    []string
	capacity int
	logger   *slog.Logger

	now func() time.Time
}

func New(capacity int, logger *slog.Logger) *ResultCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &ResultCache{
		entries:  make(map[string]*entry, capacity),
		order:    make([]string, 0, capacity),
		capacity: capacity,
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns the payload for fingerprint, or false on a miss. An expired
// entry is removed and reported as a miss.
func (c *ResultCache) Get(fingerprint string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if e.expired(c.now()) {
		c.removeLocked(fingerprint)
		return nil, false
	}
	return e.payload, true
}

// Put stores payload under fingerprint, evicting the oldest entry when at
// capacity. Re-putting an existing fingerprint refreshes the entry without
// changing its insertion position.
func (c *ResultCache) Put(fingerprint string, payload interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[fingerprint]; ok {
		e.payload = payload
		e.createdAt = c.now()
		e.ttl = ttl
		return
	}

	if len(c.entries) >= c.capacity {
		oldest := c.order[0]
		c.removeLocked(oldest)
		c.logger.Debug("cache entry evicted at capacity", "fingerprint", oldest)
	}

	c.entries[fingerprint] = &entry{
		fingerprint: fingerprint,
		payload:     payload,
		createdAt:   c.now(),
		ttl:         ttl,
	}
	c.order = append(c.order, fingerprint)
}

// Len returns the number of live entries, counting any not yet swept.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartSweeper evicts expired entries on an interval until ctx is done.
func (c *ResultCache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *ResultCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for fp, e := range c.entries {
		if e.expired(now) {
			c.removeLocked(fp)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("cache sweep removed expired entries", "count", removed)
	}
}

func (c *ResultCache) removeLocked(fingerprint string) {
	delete(c.entries, fingerprint)
	for i, fp := range c.order {
		if fp == fingerprint {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
