package scope

import (
	"fmt"
	"strings"
)

// VisibilityClause builds the SQL predicate implementing Visible for a whole
// result set, widening an exact-ownership query by each record's scope level.
// prefix is an optional table alias ("t."), argIndex the first positional
// placeholder to use. The returned clause references the own_paths and
// scope_level columns and is safe to AND with other conditions.
//
// For a caller at "tenant1/app1" with sub-path visibility the shape is:
//
//	scope_level = 0
//	OR own_paths LIKE 'tenant1/app1%'
//	OR (scope_level = 1 AND (own_paths = '' OR own_paths LIKE 'tenant1%'))
//	OR (scope_level = 2 AND (own_paths = '' OR (length(own_paths) = 4 AND own_paths LIKE 'tenant1%') OR own_paths LIKE 'tenant1/app1%'))
//	OR (scope_level = 3 AND ...)
//
// The fixed-width length checks assume uniform id segments, which holds for
// the generated ids stamped into ownership paths.
//
// length() is used rather than char_length() so the clause runs unchanged on
// the sqlite databases the test suites use.
func VisibilityClause(prefix, ownPaths string, withSub bool, argIndex int) (string, []interface{}, int) {
	col := prefix + "own_paths"
	lvl := prefix + "scope_level"

	var parts []string
	var args []interface{}
	next := argIndex
	ph := func() string {
		p := fmt.Sprintf("$%d", next)
		next++
		return p
	}

	parts = append(parts, fmt.Sprintf("%s = 0", lvl))

	if withSub {
		parts = append(parts, fmt.Sprintf("%s LIKE %s", col, ph()))
		args = append(args, ownPaths+"%")
	} else {
		parts = append(parts, fmt.Sprintf("%s = %s", col, ph()))
		args = append(args, ownPaths)
	}

	if p1, ok := ancestorPath(1, ownPaths); ok {
		parts = append(parts, fmt.Sprintf("(%s = 1 AND (%s = '' OR %s LIKE %s))", lvl, col, col, ph()))
		args = append(args, p1+"%")

		if p2, ok := ancestorPath(2, ownPaths); ok {
			// Width of the level-2 segmentless prefix: records created by a
			// tenant admin carry just the tenant segment.
			nodeLen := len(p2) - len(p1) - 1

			parts = append(parts, fmt.Sprintf(
				"(%s = 2 AND (%s = '' OR (length(%s) = %d AND %s LIKE %s) OR %s LIKE %s))",
				lvl, col, col, nodeLen, col, ph(), col, ph()))
			args = append(args, p1+"%", p2+"%")

			if p3, ok := ancestorPath(3, ownPaths); ok {
				parts = append(parts, fmt.Sprintf(
					"(%s = 3 AND (%s = '' OR (length(%s) = %d AND %s LIKE %s) OR (length(%s) = %d AND %s LIKE %s) OR %s LIKE %s))",
					lvl, col, col, nodeLen, col, ph(), col, nodeLen*2+1, col, ph(), col, ph()))
				args = append(args, p1+"%", p2+"%", p3+"%")
			} else if withSub {
				parts = append(parts, fmt.Sprintf(
					"(%s = 3 AND (%s = '' OR (length(%s) = %d AND %s LIKE %s) OR %s LIKE %s))",
					lvl, col, col, nodeLen, col, ph(), col, ph()))
				args = append(args, p1+"%", p2+"%")
			}
		} else if withSub {
			parts = append(parts, fmt.Sprintf("(%s = 2 AND (%s = '' OR %s LIKE %s))", lvl, col, col, ph()))
			args = append(args, p1+"%")
		}
	}

	return "(" + strings.Join(parts, " OR ") + ")", args, next
}

// OwnershipClause builds the plain ownership predicate used when a query
// bypasses scope-level widening: exact match, or prefix match with withSub.
func OwnershipClause(prefix, ownPaths string, withSub bool, argIndex int) (string, []interface{}, int) {
	col := prefix + "own_paths"
	if withSub {
		return fmt.Sprintf("%s LIKE $%d", col, argIndex), []interface{}{ownPaths + "%"}, argIndex + 1
	}
	return fmt.Sprintf("%s = $%d", col, argIndex), []interface{}{ownPaths}, argIndex + 1
}
