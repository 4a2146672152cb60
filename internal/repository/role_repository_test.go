package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
)

func TestRoleFindByNameAttachesPermissions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + roleColumns + " FROM roles WHERE name = $1")).
		WithArgs("PROFESSOR").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}).AddRow("r1", "PROFESSOR", "", now, now))
	mock.ExpectQuery("FROM role_permissions rp JOIN permissions p").
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "id", "name", "description", "created_at", "updated_at"}).
			AddRow("r1", "p1", "GRADE_RESOLUTION", "", now, now).
			AddRow("r1", "p2", "READ_GROUP", "", now, now))

	role, err := repo.FindByName(context.Background(), "PROFESSOR")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, role.PermissionIDs())
	assert.True(t, role.HasPermission("p2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleCreateLinksPermissions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO roles").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO role_permissions").WithArgs(sqlmock.AnyArg(), "p1").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	role := &models.Role{Name: "TA"}
	require.NoError(t, repo.Create(context.Background(), role, []string{"p1"}))
	assert.NotEmpty(t, role.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleCreateRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO roles").WillReturnError(errors.New("duplicate"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Role{Name: "TA"}, []string{"p1"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleAddPermissionReportsExisting(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectExec("INSERT INTO role_permissions").WithArgs("r1", "p1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO role_permissions").WithArgs("r1", "p1").WillReturnResult(sqlmock.NewResult(0, 0))

	added, err := repo.AddPermission(context.Background(), "r1", "p1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.AddPermission(context.Background(), "r1", "p1")
	require.NoError(t, err)
	assert.False(t, added)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionExistsByNameExcludesSelf(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM permissions WHERE name = $1 AND id::text <> $2)")).
		WithArgs("READ_GROUP", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.ExistsByName(context.Background(), "READ_GROUP", "p1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionDeleteRefusedWhenSoleRolePermission(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF r")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1").AddRow("r2"))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM role_permissions rp WHERE rp.permission_id").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "p1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrPermissionInUse))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionDeleteUnusedCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF r")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM permissions WHERE id = $1")).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "p1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRemovePermissionKeepsLastOne(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM roles WHERE id = $1 FOR UPDATE")).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM role_permissions WHERE role_id = $1 AND permission_id <> $2")).
		WithArgs("r1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	err := repo.RemovePermission(context.Background(), "r1", "p1")
	assert.ErrorIs(t, err, models.ErrLastPermission)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRemovePermissionDeletesUnderLock(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM roles WHERE id = $1 FOR UPDATE")).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM role_permissions WHERE role_id = $1 AND permission_id <> $2")).
		WithArgs("r1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2")).
		WithArgs("r1", "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.RemovePermission(context.Background(), "r1", "p1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
