package controller

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/searchforge/fusion_engine/fuse"
	"github.com/searchforge/fusion_engine/internal/contract"
)

// CacheEntry captures a cached fusion outcome.
type CacheEntry struct {
	Insights []fuse.FusedInsight
	Stats    contract.Stats
	FusionMS int64
	storedAt time.Time
}

// Cache is a lightweight in-memory cache with TTL.
type Cache struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	store map[string]CacheEntry
}

// NewCache returns a cache; zero ttl disables caching.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:   ttl,
		now:   time.Now,
		store: make(map[string]CacheEntry),
	}
}

// Get retrieves an entry if still fresh.
func (c *Cache) Get(key string) (CacheEntry, bool) {
	if c == nil || c.ttl <= 0 || key == "" {
		return CacheEntry{}, false
	}

	c.mu.RLock()
	entry, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return CacheEntry{}, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		c.mu.Lock()
		delete(c.store, key)
		c.mu.Unlock()
		return CacheEntry{}, false
	}
	return entry, true
}

// Set stores an entry.
func (c *Cache) Set(key string, entry CacheEntry) {
	if c == nil || c.ttl <= 0 || key == "" {
		return
	}
	entry.storedAt = c.now()
	c.mu.Lock()
	c.store[key] = entry
	c.mu.Unlock()
}

// Len returns the number of stored entries, stale ones included.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// BuildCacheKey hashes everything that influences the fusion output.
func BuildCacheKey(req contract.FuseRequest, filter fuse.FilterConfig, policyVersion string) (string, error) {
	payload := map[string]any{
		"sources":        req.Sources,
		"external_data":  req.ExternalData,
		"filter":         filter,
		"policy_version": policyVersion,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
