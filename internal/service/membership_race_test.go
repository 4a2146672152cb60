package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ctp-api/internal/authz"
	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/repository/memstore"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

// slowRoles widens the gap between the service's read and its write.
type slowRoles struct {
	*memstore.RoleRepository
}

func (r slowRoles) FindByID(ctx context.Context, id string) (*models.Role, error) {
	role, err := r.RoleRepository.FindByID(ctx, id)
	time.Sleep(2 * time.Millisecond)
	return role, err
}

type slowUsers struct {
	*memstore.UserRepository
}

func (r slowUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, err := r.UserRepository.FindByID(ctx, id)
	time.Sleep(2 * time.Millisecond)
	return user, err
}

type failingUpdateUsers struct {
	*memstore.UserRepository
}

func (failingUpdateUsers) Update(context.Context, *models.User, []string) error {
	return errors.New("connection reset")
}

func TestRoleServiceConcurrentRemovalsKeepOnePermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewRoleService(slowRoles{f.store.Roles()}, f.store.Permissions(), f.store.Users(), nil, nil)
	read := f.permission(t, authz.PermReadGroup)
	write := f.permission(t, authz.PermWriteGroup)

	for i := 0; i < 10; i++ {
		role, err := f.roles.Create(ctx, RoleRequest{Name: "TA" + string(rune('A'+i)), PermissionIDs: []string{read.ID, write.ID}}, nil)
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, permID := range []string{read.ID, write.ID} {
			wg.Add(1)
			go func(j int, permID string) {
				defer wg.Done()
				_, errs[j] = svc.RemovePermission(ctx, role.ID, permID, nil)
			}(j, permID)
		}
		wg.Wait()

		stored, err := f.roles.Get(ctx, role.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Permissions, 1)
		failures := 0
		for _, err := range errs {
			if err != nil {
				requireCode(t, err, appErrors.ErrBusinessRule)
				failures++
			}
		}
		assert.Equal(t, 1, failures)
	}
}

func TestUserServiceConcurrentRemovalsKeepOneRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewUserService(slowUsers{f.store.Users()}, f.store.Roles(), nil, nil)
	student := f.role(t, models.RoleStudent)
	professor := f.role(t, models.RoleProfessor)

	for i := 0; i < 10; i++ {
		user := f.createUser(t, "race"+string(rune('a'+i))+"@x.com", models.RoleStudent, models.RoleProfessor)

		var wg sync.WaitGroup
		for _, roleID := range []string{student.ID, professor.ID} {
			wg.Add(1)
			go func(roleID string) {
				defer wg.Done()
				_, _ = svc.RemoveRole(ctx, user.ID, roleID, nil)
			}(roleID)
		}
		wg.Wait()

		stored, err := f.users.Get(ctx, user.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Roles, 1)
	}
}

func TestPermissionServiceDeleteRaceWithRoleRemoval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	read, err := f.permissions.Create(ctx, PermissionRequest{Name: "READ_LAB"}, nil)
	require.NoError(t, err)
	write, err := f.permissions.Create(ctx, PermissionRequest{Name: "WRITE_LAB"}, nil)
	require.NoError(t, err)
	role, err := f.roles.Create(ctx, RoleRequest{Name: "PAIR", PermissionIDs: []string{read.ID, write.ID}}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = f.roles.RemovePermission(ctx, role.ID, write.ID, nil)
	}()
	go func() {
		defer wg.Done()
		_ = f.permissions.Delete(ctx, read.ID, nil)
	}()
	wg.Wait()

	stored, err := f.roles.Get(ctx, role.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Permissions, 1)
}

func TestUserServiceUpdateFailureKeepsPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "jules@x.com", models.RoleStudent)
	svc := NewUserService(failingUpdateUsers{f.store.Users()}, f.store.Roles(), nil, nil)

	_, err := svc.Update(ctx, user.ID, UpdateUserRequest{
		Name:     "Renamed",
		Email:    user.Email,
		Password: "brand-new-pass",
		RoleIDs:  user.RoleIDs(),
	}, nil)
	requireCode(t, err, appErrors.ErrInternal)

	stored, err := f.store.Users().FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Name, stored.Name)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret123")))
}

func TestUserServiceUpdateChangesPasswordWithProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "kai@x.com", models.RoleStudent)

	updated, err := f.users.Update(ctx, user.ID, UpdateUserRequest{
		Name:     "Kai Renamed",
		Email:    user.Email,
		Password: "brand-new-pass",
		RoleIDs:  user.RoleIDs(),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Kai Renamed", updated.Name)

	_, err = f.auth.Login(ctx, models.LoginRequest{Email: user.Email, Password: "brand-new-pass"})
	require.NoError(t, err)
	_, err = f.auth.Login(ctx, models.LoginRequest{Email: user.Email, Password: "secret123"})
	requireCode(t, err, appErrors.ErrInvalidCredentials)

	kept, err := f.users.Update(ctx, user.ID, UpdateUserRequest{Name: "Kai", Email: user.Email, RoleIDs: user.RoleIDs()}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Kai", kept.Name)
	_, err = f.auth.Login(ctx, models.LoginRequest{Email: user.Email, Password: "brand-new-pass"})
	require.NoError(t, err)
}
