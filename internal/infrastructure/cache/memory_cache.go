package cache

import (
	"context"
	"sync"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/logger"
)

// cacheEntry is a payload with an absolute expiry
type cacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryRateCache provides a thread-safe in-memory cache with per-entry expiry.
// Expired entries are ignored on read and removed by CleanExpired.
type MemoryRateCache struct {
	cache map[string]cacheEntry
	now   func() time.Time
	mutex sync.RWMutex
}

// NewMemoryRateCache creates a new in-memory cache
func NewMemoryRateCache() *MemoryRateCache {
	return NewMemoryRateCacheWithClock(time.Now)
}

// NewMemoryRateCacheWithClock creates a cache that reads time from now
func NewMemoryRateCacheWithClock(now func() time.Time) *MemoryRateCache {
	if now == nil {
		now = time.Now
	}

	return &MemoryRateCache{
		cache: make(map[string]cacheEntry),
		now:   now,
	}
}

// Get retrieves a payload if present and not expired
func (c *MemoryRateCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.cache[key]
	if !exists || !c.now().Before(entry.expiresAt) {
		return nil, false, nil
	}

	return cloneBytes(entry.payload), true, nil
}

// Put stores a payload, replacing any previous entry for key
func (c *MemoryRateCache) Put(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache[key] = cacheEntry{
		payload:   cloneBytes(payload),
		expiresAt: c.now().Add(ttl),
	}

	return nil
}

// Size returns the number of items in the cache, expired or not
func (c *MemoryRateCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.cache)
}

// CleanExpired removes expired entries from the cache
func (c *MemoryRateCache) CleanExpired() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	count := 0
	now := c.now()

	for key, entry := range c.cache {
		if !now.Before(entry.expiresAt) {
			delete(c.cache, key)
			count++
		}
	}

	return count
}

// StartJanitor sweeps expired entries every interval until ctx is done
func (c *MemoryRateCache) StartJanitor(ctx context.Context, interval time.Duration, log logger.Logger) {
	log = logger.OrDefault(log)
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.CleanExpired(); removed > 0 {
					log.Debug("Expired cache entries removed", map[string]interface{}{
						"removed":   removed,
						"remaining": c.Size(),
					})
				}
			}
		}
	}()
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
