package cache

import (
	"sync"
	"time"
)

// Claims remembers keys for a fixed window and never forgets one early.
// Expired keys are swept at most once per window.
type Claims struct {
	mu    sync.Mutex
	seen  map[string]time.Time // key -> expiry
	ttl   time.Duration
	swept time.Time
	now   func() time.Time
}

func NewClaims(ttl time.Duration) *Claims {
	return &Claims{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

// Claim reports whether this call won key. A key can be won again only
// after it expired or was released.
func (c *Claims) Claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Sub(c.swept) >= c.ttl {
		c.sweep(now)
	}
	if exp, ok := c.seen[key]; ok && now.Before(exp) {
		return false
	}
	c.seen[key] = now.Add(c.ttl)
	return true
}

// Release gives key up so a later attempt can win it.
func (c *Claims) Release(key string) {
	c.mu.Lock()
	delete(c.seen, key)
	c.mu.Unlock()
}

func (c *Claims) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Claims) sweep(now time.Time) {
	for k, exp := range c.seen {
		if !now.Before(exp) {
			delete(c.seen, k)
		}
	}
	c.swept = now
}
