// Package query provides the predicate operators used by every filtered list,
// search and check operation, plus a small builder for parameterized WHERE
// clauses. Centralizing the operator-to-SQL mapping guarantees that all
// services interpret "like", "in" and "is_null_or_empty" identically.
package query

import (
	"github.com/platinummonkey/stratum/pkg/errdef"
)

// Operator is a comparison operator in a query predicate.
type Operator int

const (
	// Eq is exact equality.
	Eq Operator = iota
	// Ne is inequality.
	Ne
	// Gt is greater-than.
	Gt
	// Ge is greater-than-or-equal.
	Ge
	// Lt is less-than.
	Lt
	// Le is less-than-or-equal.
	Le
	// Like is SQL pattern matching.
	Like
	// NotLike is negated SQL pattern matching.
	NotLike
	// In tests membership in a value list.
	In
	// NotIn tests non-membership in a value list.
	NotIn
	// IsNull tests for NULL.
	IsNull
	// IsNotNull tests for NOT NULL.
	IsNotNull
	// IsNullOrEmpty is mapped identically to IsNull. An empty string is not
	// NULL, so this drops the empty-string half of the predicate; the behavior
	// is kept as-is because downstream services depend on it.
	IsNullOrEmpty
)

// operatorNames are the stable wire names used in stored filters.
var operatorNames = map[Operator]string{
	Eq:            "=",
	Ne:            "!=",
	Gt:            ">",
	Ge:            ">=",
	Lt:            "<",
	Le:            "<=",
	Like:          "like",
	NotLike:       "not_like",
	In:            "in",
	NotIn:         "not_in",
	IsNull:        "is_null",
	IsNotNull:     "is_not_null",
	IsNullOrEmpty: "is_null_or_empty",
}

var operatorSQL = map[Operator]string{
	Eq:            "=",
	Ne:            "!=",
	Gt:            ">",
	Ge:            ">=",
	Lt:            "<",
	Le:            "<=",
	Like:          "LIKE",
	NotLike:       "NOT LIKE",
	In:            "IN",
	NotIn:         "NOT IN",
	IsNull:        "IS NULL",
	IsNotNull:     "IS NOT NULL",
	IsNullOrEmpty: "IS NULL",
}

// String returns the stable wire name of the operator.
func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return "unknown"
}

// SQL returns the backend comparison for the operator.
func (op Operator) SQL() (string, error) {
	s, ok := operatorSQL[op]
	if !ok {
		return "", errdef.InvalidArgumentf("unknown query operator %d", int(op))
	}
	return s, nil
}

// Valid reports whether op is one of the defined operators.
func (op Operator) Valid() bool {
	_, ok := operatorSQL[op]
	return ok
}

// ParseOperator resolves a wire name back to an Operator.
func ParseOperator(name string) (Operator, error) {
	for op, n := range operatorNames {
		if n == name {
			return op, nil
		}
	}
	return 0, errdef.InvalidArgumentf("unknown query operator %q", name)
}
