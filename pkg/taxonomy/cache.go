package taxonomy

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is the injectable domain/kind lookup cache. Lookups by code are the
// hot path for every item create, so they are served from an LRU populated
// lazily and invalidated on every write to the cached entity. Each service
// instance owns its cache; there is no process-global state.
//
// Entries are keyed by (code, caller own paths) because visibility depends on
// who is asking.
type Cache struct {
	domains *lru.Cache[string, *Domain]
	kinds   *lru.Cache[string, *Kind]
}

// NewCache creates a cache holding up to size domains and size kinds.
func NewCache(size int) (*Cache, error) {
	domains, err := lru.New[string, *Domain](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create domain cache: %w", err)
	}
	kinds, err := lru.New[string, *Kind](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create kind cache: %w", err)
	}
	return &Cache{domains: domains, kinds: kinds}, nil
}

func cacheKey(code, ownPaths string) string {
	return code + "\x00" + ownPaths
}

// Domain returns a cached domain for the given code and caller path.
func (c *Cache) Domain(code, ownPaths string) (*Domain, bool) {
	return c.domains.Get(cacheKey(code, ownPaths))
}

// PutDomain caches a domain under its code and caller path.
func (c *Cache) PutDomain(ownPaths string, d *Domain) {
	c.domains.Add(cacheKey(d.Code, ownPaths), d)
}

// DropDomain invalidates every cached entry for a domain code, across all
// caller paths.
func (c *Cache) DropDomain(code string) {
	dropByCode(c.domains, code)
}

// Kind returns a cached kind for the given code and caller path.
func (c *Cache) Kind(code, ownPaths string) (*Kind, bool) {
	return c.kinds.Get(cacheKey(code, ownPaths))
}

// PutKind caches a kind under its code and caller path.
func (c *Cache) PutKind(ownPaths string, k *Kind) {
	c.kinds.Add(cacheKey(k.Code, ownPaths), k)
}

// DropKind invalidates every cached entry for a kind code, across all caller
// paths.
func (c *Cache) DropKind(code string) {
	dropByCode(c.kinds, code)
}

func dropByCode[V any](cache *lru.Cache[string, V], code string) {
	prefix := code + "\x00"
	for _, key := range cache.Keys() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			cache.Remove(key)
		}
	}
}
