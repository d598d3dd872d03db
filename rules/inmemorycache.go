package rules

import (
	"sync"
	"time"
)

type cacheEntry struct {
	rules    []*Rule
	cachedAt time.Time
}

// InMemoryRulesCache is a simple in-memory implementation of RulesCache
// Thread-safe for concurrent access
type InMemoryRulesCache struct {
	entries map[string]cacheEntry
	config  CacheConfig
	mu      sync.RWMutex
}

func NewInMemoryRulesCache(config CacheConfig) *InMemoryRulesCache {
	return &InMemoryRulesCache{
		entries: make(map[string]cacheEntry),
		config:  config,
	}
}

// Get returns a copy of the cached slice. The rules themselves are shared
// and must be treated as read-only by callers.
func (c *InMemoryRulesCache) Get(tenantID string) ([]*Rule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[tenantID]
	if !ok || c.expired(entry) {
		return nil, false
	}

	rulesCopy := make([]*Rule, len(entry.rules))
	copy(rulesCopy, entry.rules)
	return rulesCopy, true
}

func (c *InMemoryRulesCache) Set(tenantID string, rules []*Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]*Rule, len(rules))
	copy(stored, rules)
	c.entries[tenantID] = cacheEntry{rules: stored, cachedAt: time.Now()}
}

func (c *InMemoryRulesCache) Invalidate(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, tenantID)
}

func (c *InMemoryRulesCache) IsValid(tenantID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[tenantID]
	return ok && !c.expired(entry)
}

func (c *InMemoryRulesCache) expired(entry cacheEntry) bool {
	return c.config.TTL > 0 && time.Since(entry.cachedAt) > c.config.TTL
}
