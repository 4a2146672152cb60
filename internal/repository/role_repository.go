package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ctp-api/internal/models"
)

const roleColumns = `id, name, description, created_at, updated_at`

// RoleRepository persists roles and their permission id sets.
type RoleRepository struct {
	db *sqlx.DB
}

// NewRoleRepository creates a new instance of RoleRepository.
func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// List returns roles with their permissions resolved.
func (r *RoleRepository) List(ctx context.Context, filter models.RoleFilter) ([]models.Role, int, error) {
	base := "FROM roles WHERE 1=1"
	var args []interface{}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	size, offset := pageBounds(filter.Page, filter.PageSize)

	var roles []models.Role
	query := fmt.Sprintf("SELECT %s %s ORDER BY name ASC LIMIT %d OFFSET %d", roleColumns, base, size, offset)
	if err := r.db.SelectContext(ctx, &roles, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list roles: %w", err)
	}
	if err := r.attachPermissions(ctx, roles); err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count roles: %w", err)
	}
	return roles, total, nil
}

// FindByID returns a role with permissions or sql.ErrNoRows.
func (r *RoleRepository) FindByID(ctx context.Context, id string) (*models.Role, error) {
	return r.findOne(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
}

// FindByName returns a role with permissions or sql.ErrNoRows.
func (r *RoleRepository) FindByName(ctx context.Context, name string) (*models.Role, error) {
	return r.findOne(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
}

// FindByIDs returns the roles that exist among ids, permissions resolved.
func (r *RoleRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Role, error) {
	if len(ids) == 0 {
		return []models.Role{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+roleColumns+` FROM roles WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build roles query: %w", err)
	}
	var roles []models.Role
	if err := r.db.SelectContext(ctx, &roles, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find roles by ids: %w", err)
	}
	if err := r.attachPermissions(ctx, roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// ExistsByName checks name uniqueness, ignoring excludeID when set.
func (r *RoleRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM roles WHERE name = $1 AND id::text <> $2)`, name, excludeID); err != nil {
		return false, fmt.Errorf("check role name: %w", err)
	}
	return exists, nil
}

// Create inserts the role and its permission links in one transaction.
func (r *RoleRepository) Create(ctx context.Context, role *models.Role, permissionIDs []string) (err error) {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	stamp(&role.CreatedAt, &role.UpdatedAt)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create role tx: %w", err)
	}
	defer rollback(tx, &err)

	const query = `INSERT INTO roles (id, name, description, created_at, updated_at) VALUES (:id, :name, :description, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, role); err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	if err = linkPermissions(ctx, tx, role.ID, permissionIDs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create role tx: %w", err)
	}
	return nil
}

// Update modifies the role and replaces its permission set atomically.
func (r *RoleRepository) Update(ctx context.Context, role *models.Role, permissionIDs []string) (err error) {
	stamp(nil, &role.UpdatedAt)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update role tx: %w", err)
	}
	defer rollback(tx, &err)

	const query = `UPDATE roles SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, query, role); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, role.ID); err != nil {
		return fmt.Errorf("clear role permissions: %w", err)
	}
	if err = linkPermissions(ctx, tx, role.ID, permissionIDs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update role tx: %w", err)
	}
	return nil
}

// AddPermission links a permission, reporting false when it was already present.
func (r *RoleRepository) AddPermission(ctx context.Context, roleID, permissionID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleID, permissionID)
	if err != nil {
		return false, fmt.Errorf("add role permission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add role permission rows: %w", err)
	}
	return affected > 0, nil
}

// RemovePermission unlinks a permission from a role. The role row stays locked while the
// other permissions are counted, so concurrent removals cannot leave it empty.
func (r *RoleRepository) RemovePermission(ctx context.Context, roleID, permissionID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove role permission tx: %w", err)
	}
	defer rollback(tx, &err)

	var locked string
	if err = tx.GetContext(ctx, &locked, `SELECT id FROM roles WHERE id = $1 FOR UPDATE`, roleID); err != nil {
		return err
	}
	var others int
	if err = tx.GetContext(ctx, &others, `SELECT COUNT(*) FROM role_permissions WHERE role_id = $1 AND permission_id <> $2`, roleID, permissionID); err != nil {
		return fmt.Errorf("count role permissions: %w", err)
	}
	if others == 0 {
		return models.ErrLastPermission
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID); err != nil {
		return fmt.Errorf("remove role permission: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit remove role permission tx: %w", err)
	}
	return nil
}

// Delete removes the role; permission links cascade.
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	return nil
}

// CountUsers returns how many users hold the role.
func (r *RoleRepository) CountUsers(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM user_roles WHERE role_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count role users: %w", err)
	}
	return count, nil
}

func (r *RoleRepository) findOne(ctx context.Context, query string, arg interface{}) (*models.Role, error) {
	var role models.Role
	if err := r.db.GetContext(ctx, &role, query, arg); err != nil {
		return nil, err
	}
	roles := []models.Role{role}
	if err := r.attachPermissions(ctx, roles); err != nil {
		return nil, err
	}
	return &roles[0], nil
}

func (r *RoleRepository) attachPermissions(ctx context.Context, roles []models.Role) error {
	ids := make([]string, len(roles))
	for i := range roles {
		ids[i] = roles[i].ID
	}
	perms, err := permissionsByRole(ctx, r.db, ids)
	if err != nil {
		return err
	}
	for i := range roles {
		roles[i].Permissions = perms[roles[i].ID]
		if roles[i].Permissions == nil {
			roles[i].Permissions = []models.Permission{}
		}
	}
	return nil
}

func linkPermissions(ctx context.Context, tx *sqlx.Tx, roleID string, permissionIDs []string) error {
	for _, pid := range permissionIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleID, pid); err != nil {
			return fmt.Errorf("link role permission: %w", err)
		}
	}
	return nil
}
