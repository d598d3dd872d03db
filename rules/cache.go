package rules

import "time"

// RulesCache caches the active rules of each tenant.
// This allows swapping between in-memory, Redis, or other caching implementations
type RulesCache interface {
	// Get returns the cached rules and true, or nil and false on a miss or expiry
	Get(tenantID string) ([]*Rule, bool)

	// Set stores the rules of a tenant
	Set(tenantID string, rules []*Rule)

	// Invalidate drops one tenant, forcing a reload on next Get
	Invalidate(tenantID string)

	// IsValid returns true if the tenant has unexpired cached rules
	IsValid(tenantID string) bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries
	// Set to 0 for no expiration (manual invalidation only)
	TTL time.Duration
}

// DefaultCacheConfig only invalidates on mutations
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
