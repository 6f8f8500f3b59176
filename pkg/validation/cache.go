package validation

import (
	"crypto/sha256"
	"sync"
	"time"
)

// resultCacheEntry stores one validated security context and its expiry.
type resultCacheEntry struct {
	sc        *SecurityContext
	expiresAt time.Time
}

// resultCache caches validated security contexts keyed by the SHA-256 hash
// of the raw token plus the request's tenant indicators, so re-presented
// tokens skip key resolution and signature verification. Raw tokens are
// never stored as map keys.
type resultCache struct {
	mu      sync.RWMutex
	entries map[[sha256.Size]byte]*resultCacheEntry
	maxSize int
	ttl     time.Duration
}

func newResultCache(ttl time.Duration, maxSize int) *resultCache {
	return &resultCache{
		entries: make(map[[sha256.Size]byte]*resultCacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// cacheKeyFor derives the cache key. The zone and host indicators are part
// of the key because they steer tenant resolution: the same token
// presented with a different zone header is a different validation.
func cacheKeyFor(rawToken, zoneID, host string) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(rawToken))
	h.Write([]byte{0})
	h.Write([]byte(zoneID))
	h.Write([]byte{0})
	h.Write([]byte(host))
	var key [sha256.Size]byte
	copy(key[:], h.Sum(nil))
	return key
}

func (c *resultCache) get(key [sha256.Size]byte) (*SecurityContext, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.sc, true
}

// put stores a validated security context. The effective TTL is the
// minimum of the configured TTL and the token's remaining lifetime: a
// cached result never outlives the token it vouches for.
func (c *resultCache) put(key [sha256.Size]byte, sc *SecurityContext, tokenExp time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ttl := c.ttl
	if remaining := time.Until(tokenExp); remaining > 0 && remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return // Token already expired; do not cache.
	}

	if len(c.entries) >= c.maxSize {
		c.evictExpiredLocked()
	}
	if len(c.entries) >= c.maxSize {
		// Evict the entry closest to expiry.
		var oldestKey [sha256.Size]byte
		var oldestTime time.Time
		first := true
		for k, v := range c.entries {
			if first || v.expiresAt.Before(oldestTime) {
				oldestKey = k
				oldestTime = v.expiresAt
				first = false
			}
		}
		if !first {
			delete(c.entries, oldestKey)
		}
	}

	c.entries[key] = &resultCacheEntry{sc: sc, expiresAt: time.Now().Add(ttl)}
}

// evictExpiredLocked removes all expired entries. Caller must hold the
// write lock.
func (c *resultCache) evictExpiredLocked() {
	now := time.Now()
	for k, v := range c.entries {
		if now.After(v.expiresAt) {
			delete(c.entries, k)
		}
	}
}
