package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipIfNoRedis(t *testing.T) string {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping test: TEST_REDIS_ADDR environment variable not set (redis not available)")
	}

	return addr
}

func TestLookupCacheSetID(t *testing.T) {
	addr := skipIfNoRedis(t)

	cache, err := NewLookupCache(addr, "", 0, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()

	_, ok := cache.GetSetID(ctx, "org-tree")
	assert.False(t, ok)

	cache.PutSetID(ctx, "org-tree", "s1")
	id, ok := cache.GetSetID(ctx, "org-tree")
	assert.True(t, ok)
	assert.Equal(t, "s1", id)

	cache.InvalidateSetID(ctx, "org-tree")
	_, ok = cache.GetSetID(ctx, "org-tree")
	assert.False(t, ok)
}

func TestLookupCacheTreeInvalidation(t *testing.T) {
	addr := skipIfNoRedis(t)

	cache, err := NewLookupCache(addr, "", 0, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	type node struct {
		ID string `json:"id"`
	}

	cache.PutTree(ctx, "s1", "sub:depth1", []node{{ID: "c1"}})
	cache.PutTree(ctx, "s1", "sub:depth2", []node{{ID: "c1"}, {ID: "c2"}})

	var got []node
	require.True(t, cache.GetTree(ctx, "s1", "sub:depth1", &got))
	assert.Len(t, got, 1)

	// One category write drops every cached fetch for the set.
	cache.InvalidateTree(ctx, "s1")
	assert.False(t, cache.GetTree(ctx, "s1", "sub:depth1", &got))
	assert.False(t, cache.GetTree(ctx, "s1", "sub:depth2", &got))
}
