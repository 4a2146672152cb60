package models

import "time"

// Role bundles permissions. Permissions are loaded from role_permissions by id.
type Role struct {
	ID          string       `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Description string       `db:"description" json:"description"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
	Permissions []Permission `db:"-" json:"permissions"`
}

// PermissionIDs returns the identifiers of the role's permissions.
func (r *Role) PermissionIDs() []string {
	ids := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		ids = append(ids, p.ID)
	}
	return ids
}

// HasPermission reports whether the role already holds the permission id.
func (r *Role) HasPermission(permissionID string) bool {
	for _, p := range r.Permissions {
		if p.ID == permissionID {
			return true
		}
	}
	return false
}

// RoleFilter defines list filters for roles.
type RoleFilter struct {
	Search   string
	Page     int
	PageSize int
}
