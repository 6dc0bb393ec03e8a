package taxonomy

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

func TestCreateDomainConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(1\) FROM resource_domain WHERE code = \$1`).
		WithArgs("iam").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	store := NewStore(db)
	_, err = store.CreateDomain(context.Background(), &Domain{Code: "iam", Name: "IAM"}, scope.Context{Owner: "acct1"})

	require.Error(t, err)
	assert.True(t, errdef.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDomainInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(1\) FROM resource_domain WHERE code = \$1`).
		WithArgs("iam").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO resource_domain`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewStore(db)
	d := &Domain{Code: "iam", Name: "IAM", ScopeLevel: 0}
	id, err := store.CreateDomain(context.Background(), d, scope.Context{OwnPaths: "t001", Owner: "acct1"})

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, d.ID)
	assert.Equal(t, "t001", d.OwnPaths)
	assert.Equal(t, "acct1", d.Owner)
	assert.False(t, d.CreateTime.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDomainRacingDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// the pre-check passes, then a concurrent insert wins the race and the
	// unique constraint fires
	mock.ExpectQuery(`SELECT COUNT\(1\) FROM resource_domain WHERE code = \$1`).
		WithArgs("iam").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO resource_domain`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_resource_domain_code"})

	store := NewStore(db)
	_, err = store.CreateDomain(context.Background(), &Domain{Code: "iam", Name: "IAM"}, scope.Context{Owner: "acct1"})

	require.Error(t, err)
	assert.True(t, errdef.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateKindMissingParent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(1\) FROM resource_kind WHERE code = \$1`).
		WithArgs("iam-role").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT COUNT\(1\) FROM resource_kind WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	store := NewStore(db)
	_, err = store.CreateKind(context.Background(), &Kind{Code: "iam-role", Name: "Role", ParentID: "missing"}, scope.Context{})

	require.Error(t, err)
	assert.True(t, errdef.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDomainGuarded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(1\) FROM resource_item WHERE rel_domain_id = \$1`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	store := NewStore(db)
	err = store.DeleteDomain(context.Background(), "d1", scope.Context{})

	require.Error(t, err)
	assert.True(t, errdef.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDomainNoFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	// No fields set means no statement is issued.
	require.NoError(t, store.UpdateDomain(context.Background(), "d1", DomainModify{}, scope.Context{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateKindNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE resource_kind SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewStore(db)
	name := "renamed"
	err = store.UpdateKind(context.Background(), "missing", KindModify{Name: &name}, scope.Context{OwnPaths: "t001"})

	require.Error(t, err)
	assert.True(t, errdef.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
