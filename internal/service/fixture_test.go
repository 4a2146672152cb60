package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ctp-api/internal/authz"
	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/repository/memstore"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

// fixture wires services over a seeded in-memory store.
type fixture struct {
	store       *memstore.Store
	permissions *PermissionService
	roles       *RoleService
	users       *UserService
	auth        *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	// Keep bcrypt cheap in tests.
	cost := bcryptCost
	bcryptCost = bcrypt.MinCost
	t.Cleanup(func() { bcryptCost = cost })

	store := memstore.New()
	seeder := NewSeeder(store.Permissions(), store.Roles(), store.Users(), SeedConfig{}, zap.NewNop())
	require.NoError(t, seeder.EnsureDefaults(context.Background()))

	users := NewUserService(store.Users(), store.Roles(), nil, nil)
	return &fixture{
		store:       store,
		permissions: NewPermissionService(store.Permissions(), store.Users(), nil, nil),
		roles:       NewRoleService(store.Roles(), store.Permissions(), store.Users(), nil, nil),
		users:       users,
		auth: NewAuthService(store.Users(), users, nil, nil, AuthConfig{
			AccessTokenSecret:  "test-secret",
			AccessTokenExpiry:  time.Hour,
			RefreshTokenExpiry: 24 * time.Hour,
			Issuer:             "ctp-api-test",
		}),
	}
}

func (f *fixture) role(t *testing.T, name string) *models.Role {
	t.Helper()
	role, err := f.roles.GetByName(context.Background(), name)
	require.NoError(t, err)
	return role
}

func (f *fixture) permission(t *testing.T, name string) *models.Permission {
	t.Helper()
	perm, err := f.store.Permissions().FindByName(context.Background(), name)
	require.NoError(t, err)
	return perm
}

func (f *fixture) createUser(t *testing.T, email string, roleNames ...string) *models.User {
	t.Helper()
	ids := make([]string, 0, len(roleNames))
	for _, name := range roleNames {
		ids = append(ids, f.role(t, name).ID)
	}
	user, err := f.users.Create(context.Background(), CreateUserRequest{
		Name:     "User " + email,
		Email:    email,
		Password: "secret123",
		RoleIDs:  ids,
	}, nil)
	require.NoError(t, err)
	return user
}

func principalOf(user *models.User) *authz.Principal {
	return authz.FromUser(user)
}

func requireCode(t *testing.T, err error, want *appErrors.Error) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, want.Code, appErr.Code, appErr.Message)
	return appErr
}
