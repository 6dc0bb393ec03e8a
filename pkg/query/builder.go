package query

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/stratum/pkg/errdef"
)

// Builder accumulates AND-composed conditions with positional placeholders.
// Placeholders are numbered $1, $2, ... starting from the index given to
// NewBuilderAt, so a builder can extend an existing parameterized statement.
type Builder struct {
	conds []string
	args  []interface{}
	next  int
}

// NewBuilder creates a builder whose placeholders start at $1.
func NewBuilder() *Builder {
	return NewBuilderAt(1)
}

// NewBuilderAt creates a builder whose placeholders start at $start.
func NewBuilderAt(start int) *Builder {
	if start < 1 {
		start = 1
	}
	return &Builder{next: start}
}

// Add appends a condition on column with the given operator and values.
// IsNull-class operators take no values, In/NotIn take one or more, and all
// other operators take exactly one.
func (b *Builder) Add(column string, op Operator, values ...interface{}) error {
	sqlOp, err := op.SQL()
	if err != nil {
		return err
	}

	switch op {
	case IsNull, IsNotNull, IsNullOrEmpty:
		if len(values) != 0 {
			return errdef.InvalidArgumentf("operator %s takes no values, got %d", op, len(values))
		}
		b.conds = append(b.conds, fmt.Sprintf("%s %s", column, sqlOp))
	case In, NotIn:
		if len(values) == 0 {
			return errdef.InvalidArgumentf("operator %s requires at least one value", op)
		}
		placeholders := make([]string, len(values))
		for i := range values {
			placeholders[i] = fmt.Sprintf("$%d", b.next)
			b.next++
		}
		b.conds = append(b.conds, fmt.Sprintf("%s %s (%s)", column, sqlOp, strings.Join(placeholders, ", ")))
		b.args = append(b.args, values...)
	default:
		if len(values) != 1 {
			return errdef.InvalidArgumentf("operator %s requires exactly one value, got %d", op, len(values))
		}
		b.conds = append(b.conds, fmt.Sprintf("%s %s $%d", column, sqlOp, b.next))
		b.next++
		b.args = append(b.args, values...)
	}
	return nil
}

// AddRaw appends a pre-built condition fragment with its bound arguments.
// The fragment must use placeholders numbered from the builder's current
// index; callers obtain that index via Next before formatting.
func (b *Builder) AddRaw(cond string, args ...interface{}) {
	b.conds = append(b.conds, cond)
	b.args = append(b.args, args...)
	b.next += len(args)
}

// Clause returns the accumulated conditions joined with AND, or the empty
// string if no conditions were added.
func (b *Builder) Clause() string {
	return strings.Join(b.conds, " AND ")
}

// Args returns the bound arguments in placeholder order.
func (b *Builder) Args() []interface{} {
	return b.args
}

// Next returns the index the next placeholder will use.
func (b *Builder) Next() int {
	return b.next
}

// Empty reports whether no conditions have been added.
func (b *Builder) Empty() bool {
	return len(b.conds) == 0
}
