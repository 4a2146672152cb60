package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ctp-api/internal/models"
)

const permissionColumns = `id, name, description, created_at, updated_at`

// PermissionRepository provides database access for permissions.
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository creates a new instance of PermissionRepository.
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// List returns permissions ordered by name with the total count.
func (r *PermissionRepository) List(ctx context.Context, filter models.PermissionFilter) ([]models.Permission, int, error) {
	base := "FROM permissions WHERE 1=1"
	var args []interface{}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	size, offset := pageBounds(filter.Page, filter.PageSize)

	var perms []models.Permission
	query := fmt.Sprintf("SELECT %s %s ORDER BY name ASC LIMIT %d OFFSET %d", permissionColumns, base, size, offset)
	if err := r.db.SelectContext(ctx, &perms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list permissions: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count permissions: %w", err)
	}
	return perms, total, nil
}

// FindByID returns a permission by id or sql.ErrNoRows.
func (r *PermissionRepository) FindByID(ctx context.Context, id string) (*models.Permission, error) {
	var perm models.Permission
	if err := r.db.GetContext(ctx, &perm, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &perm, nil
}

// FindByName returns a permission by its unique name or sql.ErrNoRows.
func (r *PermissionRepository) FindByName(ctx context.Context, name string) (*models.Permission, error) {
	var perm models.Permission
	if err := r.db.GetContext(ctx, &perm, `SELECT `+permissionColumns+` FROM permissions WHERE name = $1`, name); err != nil {
		return nil, err
	}
	return &perm, nil
}

// FindByIDs returns the permissions that exist among ids.
func (r *PermissionRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Permission, error) {
	if len(ids) == 0 {
		return []models.Permission{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+permissionColumns+` FROM permissions WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build permissions query: %w", err)
	}
	var perms []models.Permission
	if err := r.db.SelectContext(ctx, &perms, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find permissions by ids: %w", err)
	}
	return perms, nil
}

// ExistsByName checks name uniqueness, ignoring excludeID when set.
func (r *PermissionRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM permissions WHERE name = $1 AND id::text <> $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check permission name: %w", err)
	}
	return exists, nil
}

// Create inserts a permission.
func (r *PermissionRepository) Create(ctx context.Context, perm *models.Permission) error {
	if perm.ID == "" {
		perm.ID = uuid.NewString()
	}
	stamp(&perm.CreatedAt, &perm.UpdatedAt)
	const query = `INSERT INTO permissions (id, name, description, created_at, updated_at) VALUES (:id, :name, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, perm); err != nil {
		return fmt.Errorf("create permission: %w", err)
	}
	return nil
}

// Update modifies name and description.
func (r *PermissionRepository) Update(ctx context.Context, perm *models.Permission) error {
	stamp(nil, &perm.UpdatedAt)
	const query = `UPDATE permissions SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, perm); err != nil {
		return fmt.Errorf("update permission: %w", err)
	}
	return nil
}

// Delete removes a permission; role links cascade. Every role holding it is locked first,
// and the delete is refused with models.ErrPermissionInUse when it is any role's last one.
func (r *PermissionRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete permission tx: %w", err)
	}
	defer rollback(tx, &err)

	var holders []string
	const lockQuery = `SELECT r.id FROM roles r JOIN role_permissions rp ON rp.role_id = r.id WHERE rp.permission_id = $1 ORDER BY r.id FOR UPDATE OF r`
	if err = tx.SelectContext(ctx, &holders, lockQuery, id); err != nil {
		return fmt.Errorf("lock roles holding permission: %w", err)
	}
	if len(holders) > 0 {
		var sole int
		const soleQuery = `SELECT COUNT(*) FROM role_permissions rp WHERE rp.permission_id = $1 AND NOT EXISTS (SELECT 1 FROM role_permissions o WHERE o.role_id = rp.role_id AND o.permission_id <> $1)`
		if err = tx.GetContext(ctx, &sole, soleQuery, id); err != nil {
			return fmt.Errorf("count roles depending on permission: %w", err)
		}
		if sole > 0 {
			return fmt.Errorf("%w: %d role(s)", models.ErrPermissionInUse, sole)
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM permissions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete permission tx: %w", err)
	}
	return nil
}
