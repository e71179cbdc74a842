// Package cache holds recent probe outcomes so repeated checks of the
// same URL can skip the network. Entries are keyed by URL and detection
// catalog version: bumping the catalog invalidates everything probed
// under the old rules.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pardeepdhingra/urllens/models"
)

// entry holds a cached outcome with its creation timestamp.
type entry struct {
	outcome   *models.ProbeOutcome
	createdAt time.Time
}

// Cache is a bounded in-memory cache of probe outcomes. It is safe for
// concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Cache with the given maximum number of entries
// (non-positive means 1000). A background goroutine evicts entries older
// than 1 hour every 5 minutes until Close is called.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		done:       make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Close stops the background cleanup goroutine.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Key generates a cache key from the URL and the detection catalog
// version the outcome was produced under.
func Key(url, catalogVersion string) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte("|"))
	h.Write([]byte(catalogVersion))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached outcome if it exists and is younger than
// maxAgeMs milliseconds. If maxAgeMs <= 0, no lookup is performed.
// The returned outcome is shared and must be treated as read-only.
func (c *Cache) Get(key string, maxAgeMs int) (*models.ProbeOutcome, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if time.Since(e.createdAt) > maxAge {
		return nil, false
	}

	return e.outcome, true
}

// Set stores an outcome. The full body capture is dropped: cached
// entries keep only the short sample, like persisted results. If the
// cache is at capacity, a random entry is evicted to make room.
func (c *Cache) Set(key string, outcome *models.ProbeOutcome) {
	stripped := *outcome
	stripped.Body = nil

	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		outcome:   &stripped,
		createdAt: time.Now(),
	}
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// cleanupLoop evicts entries older than 1 hour every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.evictOlderThan(time.Now().Add(-1 * time.Hour))
		case <-c.done:
			return
		}
	}
}

func (c *Cache) evictOlderThan(cutoff time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
