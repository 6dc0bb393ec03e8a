package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/stratum/pkg/errdef"
)

func TestAncestorPath(t *testing.T) {
	tests := []struct {
		name     string
		level    int
		ownPaths string
		want     string
	}{
		{"level 0 empty", 0, "", ""},
		{"level 0 deep", 0, "a/b/c", ""},
		{"level 0 trailing slash", 0, "a/b/c/", ""},
		{"level 1", 1, "a/b/c", "a"},
		{"level 2", 2, "a/b/c", "a/b"},
		{"level 3", 3, "a/b/c", "a/b/c"},
		{"level 3 trailing slash", 3, "a/b/c/", "a/b/c"},
		{"too shallow gets marker", 4, "a/b/c", "a/b/c//"},
		{"empty at nonzero level gets marker", 1, "", "//"},
		{"empty at level 2 gets marker", 2, "", "//"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AncestorPath(tt.level, tt.ownPaths))
		})
	}
}

func TestAncestorPathIdempotent(t *testing.T) {
	paths := []string{"", "a", "a/b", "a/b/c", "tenant1/app1"}
	for _, p := range paths {
		for level := 0; level <= Level(p); level++ {
			once := AncestorPath(level, p)
			assert.Equal(t, once, AncestorPath(level, once), "level %d path %q", level, p)
		}
	}
}

func TestSegment(t *testing.T) {
	tests := []struct {
		level    int
		ownPaths string
		want     string
		ok       bool
	}{
		{0, "a/b/c", "", false},
		{0, "a/b/c/", "", false},
		{1, "a/b/c", "a", true},
		{2, "a/b/c", "b", true},
		{3, "a/b/c", "c", true},
		{4, "a/b/c", "", false},
		{1, "", "", false},
	}

	for _, tt := range tests {
		got, ok := Segment(tt.level, tt.ownPaths)
		assert.Equal(t, tt.ok, ok, "level %d path %q", tt.level, tt.ownPaths)
		assert.Equal(t, tt.want, got, "level %d path %q", tt.level, tt.ownPaths)
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, 0, Level(""))
	assert.Equal(t, 0, Level("  "))
	assert.Equal(t, 1, Level("a"))
	assert.Equal(t, 2, Level("a/b"))
	assert.Equal(t, 3, Level("a/b/c"))
	assert.Equal(t, 3, Level("a/b/c/"))
}

func TestDeriveScopeLevel(t *testing.T) {
	level, err := DeriveScopeLevel("a/b")
	require.NoError(t, err)
	assert.Equal(t, 2, level)

	level, err = DeriveScopeLevel("")
	require.NoError(t, err)
	assert.Equal(t, 0, level)

	_, err = DeriveScopeLevel("a/b/c/d")
	require.Error(t, err)
	assert.True(t, errdef.IsInvalidArgument(err))
}

func TestDeepestSegment(t *testing.T) {
	got, ok := DeepestSegment("a/b/c")
	assert.True(t, ok)
	assert.Equal(t, "c", got)

	got, ok = DeepestSegment("a/b/c/")
	assert.True(t, ok)
	assert.Equal(t, "c", got)

	got, ok = DeepestSegment("a")
	assert.True(t, ok)
	assert.Equal(t, "a", got)

	_, ok = DeepestSegment("")
	assert.False(t, ok)
}

func TestDegrade(t *testing.T) {
	ctx := Context{OwnPaths: "a/b", Owner: "acct1"}

	degraded, err := ctx.Degrade("a/b/c")
	require.NoError(t, err)
	assert.Equal(t, "a/b/c", degraded.OwnPaths)
	assert.Equal(t, "acct1", degraded.Owner)

	root := Context{OwnPaths: ""}
	degraded, err = root.Degrade("a/b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", degraded.OwnPaths)

	_, err = Context{OwnPaths: "a"}.Degrade("b")
	require.Error(t, err)
	assert.True(t, errdef.IsConflict(err))

	_, err = Context{OwnPaths: "a/b"}.Degrade("a/c")
	require.Error(t, err)
	assert.True(t, errdef.IsConflict(err))
}
