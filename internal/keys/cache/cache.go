// Package cache provides a TTL-bounded in-memory cache of plaintext key
// material, keyed by the canonical key identifier string.
//
// The cache owns every buffer it stores: expired and purged entries are zeroed
// before release, and Close zeroes everything. Callers always receive copies,
// which they must zero themselves after use. Population on miss is collapsed
// through singleflight so a burst of requests for the same key performs a
// single unwrap.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
)

// Loader fetches and unwraps key material on a cache miss. The cache takes
// ownership of the returned buffer.
type Loader func(ctx context.Context) ([]byte, error)

type entry struct {
	material  []byte
	expiresAt time.Time
}

// KeyCache caches plaintext key material with a fixed TTL. A background
// janitor evicts expired entries; lookups also expire lazily.
type KeyCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	group   singleflight.Group

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a KeyCache with the given entry TTL and starts the janitor.
// The janitor wakes at janitorInterval; a non-positive interval defaults to
// one minute.
func New(ttl, janitorInterval time.Duration) *KeyCache {
	if janitorInterval <= 0 {
		janitorInterval = time.Minute
	}
	c := &KeyCache{
		entries: make(map[string]*entry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.janitor(janitorInterval)
	return c
}

// GetOrLoad returns a copy of the cached material for id, loading it on a
// miss. Concurrent misses for the same id share one Loader call.
func (c *KeyCache) GetOrLoad(ctx context.Context, id string, load Loader) ([]byte, error) {
	if material := c.get(id); material != nil {
		return material, nil
	}

	// Two rounds cover a purge racing the population.
	for attempt := 0; attempt < 2; attempt++ {
		_, err, _ := c.group.Do(id, func() (interface{}, error) {
			if c.has(id) {
				return nil, nil
			}
			material, err := load(ctx)
			if err != nil {
				return nil, err
			}
			c.store(id, material)
			return nil, nil
		})
		if err != nil {
			return nil, err
		}
		if material := c.get(id); material != nil {
			return material, nil
		}
	}

	// The entry keeps vanishing under us; hand the caller an uncached load.
	return load(ctx)
}

// Purge zeroes and removes the entry for id, if present.
func (c *KeyCache) Purge(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		keysDomain.Zero(e.material)
		delete(c.entries, id)
	}
}

// Len reports the number of cached entries, including not-yet-evicted
// expired ones.
func (c *KeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the janitor and zeroes all cached material. Safe to call
// multiple times.
func (c *KeyCache) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		defer c.mu.Unlock()
		for id, e := range c.entries {
			keysDomain.Zero(e.material)
			delete(c.entries, id)
		}
	})
}

// get returns a copy of the material for id, expiring lazily.
func (c *KeyCache) get(id string) []byte {
	c.mu.RLock()
	e, ok := c.entries[id]
	if ok && time.Now().Before(e.expiresAt) {
		material := make([]byte, len(e.material))
		copy(material, e.material)
		c.mu.RUnlock()
		return material
	}
	c.mu.RUnlock()

	if ok {
		c.evictExpired(id)
	}
	return nil
}

// has reports whether an unexpired entry exists for id.
func (c *KeyCache) has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return ok && time.Now().Before(e.expiresAt)
}

// store takes ownership of material and caches it under id. An existing
// entry is zeroed first.
func (c *KeyCache) store(id string, material []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[id]; ok {
		keysDomain.Zero(old.material)
	}
	c.entries[id] = &entry{
		material:  material,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// evictExpired removes the entry for id if it has expired, zeroing its material.
func (c *KeyCache) evictExpired(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok && !time.Now().Before(e.expiresAt) {
		keysDomain.Zero(e.material)
		delete(c.entries, id)
	}
}

// janitor periodically sweeps expired entries until Close.
func (c *KeyCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep zeroes and removes every expired entry.
func (c *KeyCache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if !now.Before(e.expiresAt) {
			keysDomain.Zero(e.material)
			delete(c.entries, id)
		}
	}
}
