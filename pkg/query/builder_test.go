package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/stratum/pkg/errdef"
)

func TestBuilderSingleValue(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add("code", Eq, "iam"))
	require.NoError(t, b.Add("sort", Gt, 10))

	assert.Equal(t, "code = $1 AND sort > $2", b.Clause())
	assert.Equal(t, []interface{}{"iam", 10}, b.Args())
	assert.Equal(t, 3, b.Next())
}

func TestBuilderIn(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add("id", In, "a", "b", "c"))
	require.NoError(t, b.Add("disabled", Eq, false))

	assert.Equal(t, "id IN ($1, $2, $3) AND disabled = $4", b.Clause())
	assert.Equal(t, []interface{}{"a", "b", "c", false}, b.Args())
}

func TestBuilderNullOperators(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add("icon", IsNull))
	require.NoError(t, b.Add("note", IsNotNull))
	require.NoError(t, b.Add("ext", IsNullOrEmpty))

	assert.Equal(t, "icon IS NULL AND note IS NOT NULL AND ext IS NULL", b.Clause())
	assert.Empty(t, b.Args())
}

func TestBuilderStartOffset(t *testing.T) {
	b := NewBuilderAt(4)
	require.NoError(t, b.Add("name", Like, "admin%"))

	assert.Equal(t, "name LIKE $4", b.Clause())
	assert.Equal(t, 5, b.Next())
}

func TestBuilderArityErrors(t *testing.T) {
	b := NewBuilder()

	err := b.Add("id", Eq)
	require.Error(t, err)
	assert.True(t, errdef.IsInvalidArgument(err))

	err = b.Add("id", In)
	require.Error(t, err)
	assert.True(t, errdef.IsInvalidArgument(err))

	err = b.Add("id", IsNull, "unexpected")
	require.Error(t, err)
	assert.True(t, errdef.IsInvalidArgument(err))

	// Failed adds must not leak placeholders or args.
	assert.True(t, b.Empty())
	assert.Equal(t, 1, b.Next())
}

func TestBuilderAddRaw(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add("tag", Eq, "role-assignable"))
	b.AddRaw("(own_paths LIKE $2 OR to_own_paths LIKE $3)", "t1%", "t1%")

	assert.Equal(t, "tag = $1 AND (own_paths LIKE $2 OR to_own_paths LIKE $3)", b.Clause())
	assert.Equal(t, []interface{}{"role-assignable", "t1%", "t1%"}, b.Args())
	assert.Equal(t, 4, b.Next())
}

func TestBuilderEmptyClause(t *testing.T) {
	b := NewBuilder()
	assert.Equal(t, "", b.Clause())
	assert.True(t, b.Empty())
}
