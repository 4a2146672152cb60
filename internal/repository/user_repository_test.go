package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userRowColumns = []string{"id", "name", "email", "password_hash", "photo_url", "is_active", "created_at", "updated_at"}

func TestFindByEmailLoadsRolesAndPermissions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("alice@x.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow("u1", "Alice", "alice@x.com", "hash", nil, true, now, now))
	mock.ExpectQuery("FROM user_roles ur JOIN roles r").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "id", "name", "description", "created_at", "updated_at"}).
			AddRow("u1", "r1", "STUDENT", "", now, now))
	mock.ExpectQuery("FROM role_permissions rp JOIN permissions p").
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "id", "name", "description", "created_at", "updated_at"}).
			AddRow("r1", "p1", "READ_ACTIVITY", "", now, now))

	user, err := repo.FindByEmail(context.Background(), "Alice@X.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", user.Email)
	require.Len(t, user.Roles, 1)
	assert.Equal(t, "STUDENT", user.Roles[0].Name)
	require.Len(t, user.Roles[0].Permissions, 1)
	assert.Equal(t, "READ_ACTIVITY", user.Roles[0].Permissions[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE id = ").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserLinksRolesInTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO user_roles").WithArgs(sqlmock.AnyArg(), "r1").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO user_roles").WithArgs(sqlmock.AnyArg(), "r2").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user := &models.User{Name: "Bob", Email: "BOB@x.com", PasswordHash: "hash", IsActive: true}
	require.NoError(t, repo.Create(context.Background(), user, []string{"r1", "r2"}))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "bob@x.com", user.Email)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserRollsBackOnLinkFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM user_roles").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_roles").WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), &models.User{ID: "u1", Name: "Bob", Email: "bob@x.com"}, []string{"r9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link user role")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserWritesPasswordInSameTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("password_hash = COALESCE(NULLIF(")).
		WithArgs("Bob", "bob@x.com", "new-hash", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM user_roles").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_roles").WithArgs("u1", "r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user := &models.User{ID: "u1", Name: "Bob", Email: "Bob@x.com", PasswordHash: "new-hash"}
	require.NoError(t, repo.Update(context.Background(), user, []string{"r1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveRoleKeepsLastOne(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM user_roles WHERE user_id = $1 AND role_id <> $2")).
		WithArgs("u1", "r1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	err := repo.RemoveRole(context.Background(), "u1", "r1")
	assert.ErrorIs(t, err, models.ErrLastRole)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveRoleUnknownUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.RemoveRole(context.Background(), "ghost", "r1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "jti-1", UserID: "u1", ExpiresAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeUserRefreshTokens(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE")).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.RevokeUserRefreshTokens(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersFiltersByRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users u WHERE 1=1 AND EXISTS (SELECT 1 FROM user_roles ur JOIN roles r ON r.id = ur.role_id WHERE ur.user_id = u.id AND r.name = $1) ORDER BY u.created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("PROFESSOR").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow("u1", "Ada", "ada@x.com", "hash", nil, true, now, now))
	mock.ExpectQuery("FROM user_roles ur JOIN roles r").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "id", "name", "description", "created_at", "updated_at"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users u WHERE 1=1 AND EXISTS")).
		WithArgs("PROFESSOR").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	users, total, err := repo.List(context.Background(), models.UserFilter{RoleName: "PROFESSOR"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Empty(t, users[0].Roles)
	assert.NotNil(t, users[0].Roles)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
