package notify

import (
	"sync"
	"time"
)

// DefaultBurstTTL covers relays that fire the same follow-up several times in quick succession.
const DefaultBurstTTL = 2 * time.Minute

// BurstCache remembers keys for a short TTL. Expired entries are evicted lazily.
type BurstCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewBurstCache(ttl time.Duration) *BurstCache {
	if ttl <= 0 {
		ttl = DefaultBurstTTL
	}
	return &BurstCache{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Mark records key and reports whether it was already present and unexpired.
func (c *BurstCache) Mark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, expires := range c.seen {
		if !now.Before(expires) {
			delete(c.seen, k)
		}
	}

	if _, ok := c.seen[key]; ok {
		return true
	}
	c.seen[key] = now.Add(c.ttl)
	return false
}

// Forget removes key so the next Mark treats it as new.
func (c *BurstCache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, key)
}

// Len returns the number of unexpired keys.
func (c *BurstCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for _, expires := range c.seen {
		if now.Before(expires) {
			n++
		}
	}
	return n
}
