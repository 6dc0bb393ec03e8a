package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// LookupCache is a Redis-backed cache for the hot lookup paths: resolving a
// set id from its code, and whole-tree fetches keyed by set id. Writes to a
// set or its categories invalidate the affected keys; entries also expire by
// TTL as a backstop.
type LookupCache struct {
	redis *redis.Client
	ttl   map[string]time.Duration
}

// NewLookupCache creates a new lookup cache and verifies the connection.
func NewLookupCache(addr, password string, db int, lookupTTL time.Duration) (*LookupCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if lookupTTL <= 0 {
		lookupTTL = 15 * time.Minute
	}

	return &LookupCache{
		redis: client,
		ttl: map[string]time.Duration{
			"set_id": lookupTTL,
			"tree":   lookupTTL / 3,
		},
	}, nil
}

// Close closes the Redis connection
func (c *LookupCache) Close() error {
	return c.redis.Close()
}

// GetSetID resolves a cached set id by code.
func (c *LookupCache) GetSetID(ctx context.Context, code string) (string, bool) {
	id, err := c.redis.Get(ctx, "set_id:"+code).Result()
	if err != nil {
		return "", false
	}
	return id, true
}

// PutSetID caches a set id under its code.
func (c *LookupCache) PutSetID(ctx context.Context, code, id string) {
	c.redis.Set(ctx, "set_id:"+code, id, c.ttl["set_id"])
}

// InvalidateSetID drops the cached id for a set code.
func (c *LookupCache) InvalidateSetID(ctx context.Context, code string) {
	c.redis.Del(ctx, "set_id:"+code)
}

// GetTree loads a cached tree fetch into dest. The key encodes the set id
// and the fetch filter; a miss or decode failure returns false.
func (c *LookupCache) GetTree(ctx context.Context, setID, key string, dest interface{}) bool {
	cached, err := c.redis.Get(ctx, treeKey(setID, key)).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(cached), dest) == nil
}

// PutTree caches a tree fetch result and tracks its key for invalidation.
func (c *LookupCache) PutTree(ctx context.Context, setID, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	full := treeKey(setID, key)
	c.redis.Set(ctx, full, data, c.ttl["tree"])
	c.redis.SAdd(ctx, treeIndexKey(setID), full)
	c.redis.Expire(ctx, treeIndexKey(setID), c.ttl["tree"])
}

// InvalidateTree drops every cached fetch for a set. Called on any category
// or binding write under that set.
func (c *LookupCache) InvalidateTree(ctx context.Context, setID string) {
	keys, err := c.redis.SMembers(ctx, treeIndexKey(setID)).Result()
	if err == nil && len(keys) > 0 {
		c.redis.Del(ctx, keys...)
	}
	c.redis.Del(ctx, treeIndexKey(setID))
}

func treeKey(setID, key string) string {
	return fmt.Sprintf("tree:%s:%s", setID, key)
}

func treeIndexKey(setID string) string {
	return fmt.Sprintf("tree_keys:%s", setID)
}
