package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisibleOwnershipMatch(t *testing.T) {
	// with sub-path visibility, no scope-level widening
	assert.True(t, Visible("a/b", PrivateScopeLevel, "a/b", true))
	assert.True(t, Visible("a/b/c", PrivateScopeLevel, "a/b", true))
	assert.False(t, Visible("a/b/c", PrivateScopeLevel, "a/b/z", true))
	assert.False(t, Visible("a", PrivateScopeLevel, "a/b", true))
}

func TestVisibleWithoutSub(t *testing.T) {
	assert.True(t, Visible("a/b", PrivateScopeLevel, "a/b", false))
	assert.False(t, Visible("a/b/c", PrivateScopeLevel, "a/b", false))
}

func TestVisibleScopeLevelWidening(t *testing.T) {
	tests := []struct {
		recordPaths string
		recordLevel int
		callerPaths string
		want        bool
	}{
		{"a/b", 0, "a/b/c", true},
		{"c", 0, "a/b/c", true},
		{"a/b", 1, "a/b/c", true},
		{"", 1, "a/b/c", true},
		{"x/b", 1, "a/b/c", false},
		{"a/b", 2, "a/b/c", true},
		{"", 2, "a/b/c", true},
		{"a", 2, "a/b/c", true},
		{"a/x", 2, "a/b/c", false},
		{"a/b/c", 3, "a/b/c", true},
		{"", 3, "a/b/c", true},
		{"a", 3, "a/b/c", true},
		{"a/b", 3, "a/b/c", true},
		{"a/b/x", 3, "a/b/c", false},
	}

	for _, tt := range tests {
		got := Visible(tt.recordPaths, tt.recordLevel, tt.callerPaths, true)
		assert.Equal(t, tt.want, got, "record %q level %d caller %q", tt.recordPaths, tt.recordLevel, tt.callerPaths)
	}
}

func TestVisibleLevelDeeperThanCaller(t *testing.T) {
	// a record scoped to level 3 is invisible to a level-2 caller unless
	// ownership matches directly
	assert.False(t, Visible("x/y/z", 3, "a/b", false))
	assert.True(t, Visible("a/b", 3, "a/b", false))
}
