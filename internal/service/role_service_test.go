package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/authz"
	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

func TestRoleServiceCreateRequiresPermission(t *testing.T) {
	f := newFixture(t)

	_, err := f.roles.Create(context.Background(), RoleRequest{Name: "R1"}, nil)
	appErr := requireCode(t, err, appErrors.ErrBusinessRule)
	assert.Contains(t, appErr.Message, "must have at least one permission")
	assert.Contains(t, appErr.Message, "R1")
}

func TestRoleServiceCreateUnknownPermission(t *testing.T) {
	f := newFixture(t)

	_, err := f.roles.Create(context.Background(), RoleRequest{Name: "R1", PermissionIDs: []string{"missing"}}, nil)
	appErr := requireCode(t, err, appErrors.ErrNotFound)
	assert.Equal(t, "Permission not found: missing", appErr.Message)
}

func TestRoleServiceCreateDuplicateName(t *testing.T) {
	f := newFixture(t)
	perm := f.permission(t, authz.PermReadGroup)

	_, err := f.roles.Create(context.Background(), RoleRequest{Name: "teaching_assistant", PermissionIDs: []string{perm.ID}}, nil)
	require.NoError(t, err)
	_, err = f.roles.Create(context.Background(), RoleRequest{Name: "TEACHING_ASSISTANT", PermissionIDs: []string{perm.ID}}, nil)
	requireCode(t, err, appErrors.ErrConflict)
}

func TestRoleServiceAddPermissionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	read := f.permission(t, authz.PermReadGroup)
	write := f.permission(t, authz.PermWriteGroup)
	role, err := f.roles.Create(ctx, RoleRequest{Name: "TA", PermissionIDs: []string{read.ID}}, nil)
	require.NoError(t, err)

	first, err := f.roles.AddPermission(ctx, role.ID, write.ID, nil)
	require.NoError(t, err)
	second, err := f.roles.AddPermission(ctx, role.ID, write.ID, nil)
	require.NoError(t, err)

	assert.Len(t, first.Permissions, 2)
	assert.Len(t, second.Permissions, 2)
	stored, err := f.roles.Get(ctx, role.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Permissions, 2)
}

func TestRoleServiceRemoveLastPermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	read := f.permission(t, authz.PermReadGroup)
	role, err := f.roles.Create(ctx, RoleRequest{Name: "TA", PermissionIDs: []string{read.ID}}, nil)
	require.NoError(t, err)

	_, err = f.roles.RemovePermission(ctx, role.ID, read.ID, nil)
	appErr := requireCode(t, err, appErrors.ErrBusinessRule)
	assert.Contains(t, appErr.Message, "Role 'TA' must have at least one permission")
}

func TestRoleServiceUpdateToEmptyPermissionsRejected(t *testing.T) {
	f := newFixture(t)
	student := f.role(t, models.RoleStudent)

	_, err := f.roles.Update(context.Background(), student.ID, RoleRequest{Name: models.RoleStudent}, nil)
	requireCode(t, err, appErrors.ErrBusinessRule)
}

func TestRoleServiceDeleteAssignedRole(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "bob@x.com", models.RoleStudent)

	err := f.roles.Delete(context.Background(), f.role(t, models.RoleStudent).ID, nil)
	requireCode(t, err, appErrors.ErrConflict)
}

func TestRoleServiceDeleteWritesAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	read := f.permission(t, authz.PermReadGroup)
	role, err := f.roles.Create(ctx, RoleRequest{Name: "TEMP", PermissionIDs: []string{read.ID}}, &models.AuditActor{UserID: "admin"})
	require.NoError(t, err)

	require.NoError(t, f.roles.Delete(ctx, role.ID, &models.AuditActor{UserID: "admin"}))
	_, err = f.roles.Get(ctx, role.ID)
	requireCode(t, err, appErrors.ErrNotFound)

	actions := make([]string, 0)
	for _, log := range f.store.AuditLogs() {
		actions = append(actions, log.Action)
	}
	assert.Equal(t, []string{models.AuditActionRoleCreate, models.AuditActionRoleDelete}, actions)
}
