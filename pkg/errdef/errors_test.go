package errdef

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"conflict", Conflictf("code %s already exists", "iam"), KindConflict},
		{"not found", NotFoundf("kind %s not found", "iam-role"), KindNotFound},
		{"invalid reference", InvalidReferencef("item %s is not visible", "x"), KindInvalidReference},
		{"invalid argument", InvalidArgumentf("bad scope level %d", 9), KindInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
		})
	}
}

func TestKindOfSurvivesWrapping(t *testing.T) {
	inner := Conflictf("duplicate binding")
	outer := fmt.Errorf("failed to bind item: %w", inner)

	assert.Equal(t, KindConflict, KindOf(outer))
	assert.True(t, IsConflict(outer))
	assert.False(t, IsNotFound(outer))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("row not found")
	err := Wrap(KindNotFound, cause, "failed to load item")

	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load item: row not found", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(KindConflict, nil, "ignored"))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "conflict", KindConflict.String())
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "invalid_reference", KindInvalidReference.String())
	assert.Equal(t, "invalid_argument", KindInvalidArgument.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}
