package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisibilityClauseRoot(t *testing.T) {
	clause, args, next := VisibilityClause("", "", false, 1)

	assert.Equal(t, "(scope_level = 0 OR own_paths = $1)", clause)
	assert.Equal(t, []interface{}{""}, args)
	assert.Equal(t, 2, next)
}

func TestVisibilityClauseRootWithSub(t *testing.T) {
	clause, args, _ := VisibilityClause("", "", true, 1)

	assert.Equal(t, "(scope_level = 0 OR own_paths LIKE $1)", clause)
	assert.Equal(t, []interface{}{"%"}, args)
}

func TestVisibilityClauseTenant(t *testing.T) {
	clause, args, next := VisibilityClause("", "t001", true, 1)

	assert.Equal(t,
		"(scope_level = 0"+
			" OR own_paths LIKE $1"+
			" OR (scope_level = 1 AND (own_paths = '' OR own_paths LIKE $2))"+
			" OR (scope_level = 2 AND (own_paths = '' OR own_paths LIKE $3)))",
		clause)
	assert.Equal(t, []interface{}{"t001%", "t001%", "t001%"}, args)
	assert.Equal(t, 4, next)
}

func TestVisibilityClauseTenantApp(t *testing.T) {
	clause, args, _ := VisibilityClause("", "t001/a001", true, 1)

	assert.Equal(t,
		"(scope_level = 0"+
			" OR own_paths LIKE $1"+
			" OR (scope_level = 1 AND (own_paths = '' OR own_paths LIKE $2))"+
			" OR (scope_level = 2 AND (own_paths = '' OR (length(own_paths) = 4 AND own_paths LIKE $3) OR own_paths LIKE $4))"+
			" OR (scope_level = 3 AND (own_paths = '' OR (length(own_paths) = 4 AND own_paths LIKE $5) OR own_paths LIKE $6)))",
		clause)
	assert.Equal(t, []interface{}{"t001/a001%", "t001%", "t001%", "t001/a001%", "t001%", "t001/a001%"}, args)
}

func TestVisibilityClauseThreeLevels(t *testing.T) {
	clause, args, _ := VisibilityClause("t.", "t001/a001/u001", false, 3)

	assert.Equal(t,
		"(t.scope_level = 0"+
			" OR t.own_paths = $3"+
			" OR (t.scope_level = 1 AND (t.own_paths = '' OR t.own_paths LIKE $4))"+
			" OR (t.scope_level = 2 AND (t.own_paths = '' OR (length(t.own_paths) = 4 AND t.own_paths LIKE $5) OR t.own_paths LIKE $6))"+
			" OR (t.scope_level = 3 AND (t.own_paths = '' OR (length(t.own_paths) = 4 AND t.own_paths LIKE $7) OR (length(t.own_paths) = 9 AND t.own_paths LIKE $8) OR t.own_paths LIKE $9)))",
		clause)
	assert.Equal(t, []interface{}{
		"t001/a001/u001", "t001%", "t001%", "t001/a001%", "t001%", "t001/a001%", "t001/a001/u001%",
	}, args)
}

func TestOwnershipClause(t *testing.T) {
	clause, args, next := OwnershipClause("", "t001", false, 2)
	assert.Equal(t, "own_paths = $2", clause)
	assert.Equal(t, []interface{}{"t001"}, args)
	assert.Equal(t, 3, next)

	clause, args, next = OwnershipClause("r.", "t001", true, 1)
	assert.Equal(t, "r.own_paths LIKE $1", clause)
	assert.Equal(t, []interface{}{"t001%"}, args)
	assert.Equal(t, 2, next)
}
