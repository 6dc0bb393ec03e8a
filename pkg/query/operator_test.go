package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/stratum/pkg/errdef"
)

func TestOperatorSQLMapping(t *testing.T) {
	tests := []struct {
		op   Operator
		sql  string
		name string
	}{
		{Eq, "=", "="},
		{Ne, "!=", "!="},
		{Gt, ">", ">"},
		{Ge, ">=", ">="},
		{Lt, "<", "<"},
		{Le, "<=", "<="},
		{Like, "LIKE", "like"},
		{NotLike, "NOT LIKE", "not_like"},
		{In, "IN", "in"},
		{NotIn, "NOT IN", "not_in"},
		{IsNull, "IS NULL", "is_null"},
		{IsNotNull, "IS NOT NULL", "is_not_null"},
		{IsNullOrEmpty, "IS NULL", "is_null_or_empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, err := tt.op.SQL()
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.name, tt.op.String())
			assert.True(t, tt.op.Valid())
		})
	}
}

func TestIsNullOrEmptyMatchesIsNull(t *testing.T) {
	// Documented quirk: an empty string is not NULL but the two operators
	// share one backend comparison.
	a, err := IsNull.SQL()
	require.NoError(t, err)
	b, err := IsNullOrEmpty.SQL()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseOperatorRoundTrip(t *testing.T) {
	for op := Eq; op <= IsNullOrEmpty; op++ {
		parsed, err := ParseOperator(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}
}

func TestParseOperatorUnknown(t *testing.T) {
	_, err := ParseOperator("between")
	require.Error(t, err)
	assert.True(t, errdef.IsInvalidArgument(err))
}

func TestInvalidOperatorSQL(t *testing.T) {
	_, err := Operator(99).SQL()
	require.Error(t, err)
	assert.True(t, errdef.IsInvalidArgument(err))
	assert.False(t, Operator(99).Valid())
}
