package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ctp-api/internal/authz"
	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/repository/memstore"
)

func TestSeederIsIdempotentAndCreatesAdmin(t *testing.T) {
	cost := bcryptCost
	bcryptCost = bcrypt.MinCost
	t.Cleanup(func() { bcryptCost = cost })

	store := memstore.New()
	ctx := context.Background()
	seeder := NewSeeder(store.Permissions(), store.Roles(), store.Users(), SeedConfig{AdminEmail: "Root@X.com", AdminPassword: "rootpass"}, zap.NewNop())

	require.NoError(t, seeder.EnsureDefaults(ctx))
	require.NoError(t, seeder.EnsureDefaults(ctx))

	perms, total, err := store.Permissions().List(ctx, models.PermissionFilter{PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, len(authz.DefaultPermissions), total)
	assert.Len(t, perms, len(authz.DefaultPermissions))

	_, roleTotal, err := store.Roles().List(ctx, models.RoleFilter{})
	require.NoError(t, err)
	assert.Equal(t, len(authz.DefaultRoles), roleTotal)

	admin, err := store.Users().FindByEmail(ctx, "root@x.com")
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleAdmin}, admin.RoleNames())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("rootpass")))
}

func TestSeederRestoresMissingDefaultPermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.role(t, models.RoleStudent)
	submit := f.permission(t, authz.PermSubmitResolution)
	require.NoError(t, f.store.Roles().RemovePermission(ctx, student.ID, submit.ID))

	seeder := NewSeeder(f.store.Permissions(), f.store.Roles(), f.store.Users(), SeedConfig{}, nil)
	require.NoError(t, seeder.EnsureDefaults(ctx))

	assert.True(t, f.role(t, models.RoleStudent).HasPermission(submit.ID))
}
