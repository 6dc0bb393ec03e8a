package tree

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/stratum/pkg/errdef"
	"github.com/platinummonkey/stratum/pkg/scope"
)

func TestInsertCategoryRacingDuplicateSysCode(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// a concurrent allocator claimed the same sibling code first
	mock.ExpectExec(`INSERT INTO set_category`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_set_category_sys_code"})

	store := NewStore(db)
	_, err = store.InsertCategory(context.Background(), db, &Category{
		SysCode: "0001", Name: "eng", RelSetID: "s1",
	}, scope.Context{OwnPaths: "t001", Owner: "acct1"})

	require.Error(t, err)
	assert.True(t, errdef.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBindingRacingDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO set_item_binding`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_set_item_binding"})

	store := NewStore(db)
	_, err = store.InsertBinding(context.Background(), &Binding{
		RelSetID: "s1", RelCateSysCode: "0001", RelItemID: "i1",
	}, scope.Context{OwnPaths: "t001", Owner: "acct1"})

	require.Error(t, err)
	assert.True(t, errdef.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
