package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ctp-api/internal/models"
)

func pageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return size, (page - 1) * size
}

func sortOrder(raw string) string {
	switch raw {
	case "asc", "ASC":
		return "ASC"
	default:
		return "DESC"
	}
}

func stamp(created *time.Time, updated *time.Time) {
	now := time.Now().UTC()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

// rollback is deferred by transactional writes; it is a no-op after commit.
func rollback(tx *sqlx.Tx, err *error) {
	if *err != nil {
		_ = tx.Rollback()
	}
}

type rolePermissionRow struct {
	RoleID string `db:"role_id"`
	models.Permission
}

// permissionsByRole resolves role_permissions for the given role ids.
func permissionsByRole(ctx context.Context, db *sqlx.DB, roleIDs []string) (map[string][]models.Permission, error) {
	result := make(map[string][]models.Permission, len(roleIDs))
	if len(roleIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT rp.role_id, p.id, p.name, p.description, p.created_at, p.updated_at FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id WHERE rp.role_id IN (?) ORDER BY p.name`, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("build role permissions query: %w", err)
	}
	var rows []rolePermissionRow
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load role permissions: %w", err)
	}
	for _, row := range rows {
		result[row.RoleID] = append(result[row.RoleID], row.Permission)
	}
	return result, nil
}

type userRoleRow struct {
	UserID string `db:"user_id"`
	models.Role
}

// rolesByUser resolves user_roles, and each role's permissions, for the given user ids.
func rolesByUser(ctx context.Context, db *sqlx.DB, userIDs []string) (map[string][]models.Role, error) {
	result := make(map[string][]models.Role, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT ur.user_id, r.id, r.name, r.description, r.created_at, r.updated_at FROM user_roles ur JOIN roles r ON r.id = ur.role_id WHERE ur.user_id IN (?) ORDER BY r.name`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("build user roles query: %w", err)
	}
	var rows []userRoleRow
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load user roles: %w", err)
	}

	roleIDs := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.Role.ID]; !ok {
			seen[row.Role.ID] = struct{}{}
			roleIDs = append(roleIDs, row.Role.ID)
		}
	}
	perms, err := permissionsByRole(ctx, db, roleIDs)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		role := row.Role
		role.Permissions = perms[role.ID]
		if role.Permissions == nil {
			role.Permissions = []models.Permission{}
		}
		result[row.UserID] = append(result[row.UserID], role)
	}
	return result, nil
}
