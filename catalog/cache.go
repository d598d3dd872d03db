package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/liamcoop/discovery/internal/logger"
)

// ErrCacheMiss is returned by a KVStore when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// ItemCache stores resolved items by lookup key.
// Items are immutable, so concurrent fills of the same key are harmless.
type ItemCache interface {
	// Get returns the cached item, false on miss or expiry
	Get(ctx context.Context, key string) (*Item, bool)

	// Set stores the item under key
	Set(ctx context.Context, key string, item *Item)
}

// CacheConfig holds configuration for item caches
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Set to 0 for no expiration.
	TTL time.Duration
}

// DefaultCacheConfig returns the defaults used by the server
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 5 * time.Minute}
}

type cachedEntry struct {
	item     *Item
	cachedAt time.Time
}

// InMemoryItemCache is a process-local ItemCache
type InMemoryItemCache struct {
	entries map[string]cachedEntry
	config  CacheConfig
	mu      sync.RWMutex
}

// NewInMemoryItemCache creates an empty in-memory cache
func NewInMemoryItemCache(config CacheConfig) *InMemoryItemCache {
	return &InMemoryItemCache{
		entries: make(map[string]cachedEntry),
		config:  config,
	}
}

// Get returns a cached item unless it expired
func (c *InMemoryItemCache) Get(_ context.Context, key string) (*Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.config.TTL > 0 && time.Since(entry.cachedAt) > c.config.TTL {
		return nil, false
	}
	return entry.item, true
}

// Set stores an item
func (c *InMemoryItemCache) Set(_ context.Context, key string, item *Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cachedEntry{item: item, cachedAt: time.Now()}
}

// Invalidate drops every entry
func (c *InMemoryItemCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cachedEntry)
}

// Len returns the number of entries, expired ones included
func (c *InMemoryItemCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// KVStore abstracts the key/value backend so Redis can be replaced in tests
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisKVStore implements KVStore on go-redis
type RedisKVStore struct {
	client *redis.Client
}

// NewRedisKVStore wraps a redis client
func NewRedisKVStore(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// RedisItemCache shares resolved items between server instances.
// Items are stored as JSON-encoded Props.
type RedisItemCache struct {
	kv     KVStore
	config CacheConfig
	prefix string
}

// NewRedisItemCache creates a cache on top of kv
func NewRedisItemCache(kv KVStore, config CacheConfig) *RedisItemCache {
	return &RedisItemCache{kv: kv, config: config, prefix: "catalog:item:"}
}

// Get decodes a cached item; backend and decode failures count as misses
func (c *RedisItemCache) Get(ctx context.Context, key string) (*Item, bool) {
	raw, err := c.kv.Get(ctx, c.prefix+key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			logger.Warn("catalog cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var props Props
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		logger.Warn("catalog cache entry is corrupt", "key", key, "error", err)
		return nil, false
	}
	item, err := NewItem(props)
	if err != nil {
		logger.Warn("catalog cache entry is invalid", "key", key, "error", err)
		return nil, false
	}
	return item, true
}

// Set encodes and stores an item; failures are logged and otherwise ignored
func (c *RedisItemCache) Set(ctx context.Context, key string, item *Item) {
	payload, err := json.Marshal(item.Props())
	if err != nil {
		logger.Warn("catalog cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.kv.Set(ctx, c.prefix+key, string(payload), c.config.TTL); err != nil {
		logger.Warn("catalog cache write failed", "key", key, "error", err)
	}
}

// CachedRepository is a read-through cache in front of another Repository.
// Only single-item and by-id resolution are cached; category listings always hit the source.
type CachedRepository struct {
	source Repository
	cache  ItemCache
}

// NewCachedRepository wraps source with cache
func NewCachedRepository(source Repository, cache ItemCache) *CachedRepository {
	return &CachedRepository{source: source, cache: cache}
}

// GetRequiredItem resolves through the cache
func (r *CachedRepository) GetRequiredItem(ctx context.Context, lookup Lookup) (*Item, error) {
	if err := lookup.validate(); err != nil {
		return nil, err
	}

	key := lookup.key()
	if item, ok := r.cache.Get(ctx, key); ok {
		if lookup.Category != "" {
			if err := item.EnsureCategory(lookup.Category); err != nil {
				return nil, err
			}
		}
		return item, nil
	}

	item, err := r.source.GetRequiredItem(ctx, lookup)
	if err != nil {
		return nil, err
	}

	r.cache.Set(ctx, key, item)
	if lookup.ID == "" {
		r.cache.Set(ctx, idKey(item), item)
	}
	return item, nil
}

// FindItemsByIDs serves cached ids and batches the rest into one source call
func (r *CachedRepository) FindItemsByIDs(ctx context.Context, tenantID string, ids []string) ([]*Item, error) {
	found := make([]*Item, 0, len(ids))
	var missing []string
	for _, id := range ids {
		if item, ok := r.cache.Get(ctx, Lookup{TenantID: tenantID, ID: id}.key()); ok {
			found = append(found, item)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return found, nil
	}

	fetched, err := r.source.FindItemsByIDs(ctx, tenantID, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog items: %w", err)
	}
	for _, item := range fetched {
		r.cache.Set(ctx, idKey(item), item)
	}
	return append(found, fetched...), nil
}

// ListByCategory is not cached
func (r *CachedRepository) ListByCategory(ctx context.Context, tenantID, category string) ([]*Item, error) {
	return r.source.ListByCategory(ctx, tenantID, category)
}

func idKey(item *Item) string {
	return Lookup{TenantID: item.tenantID, ID: item.id}.key()
}
