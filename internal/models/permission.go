package models

import "time"

// Permission is a named capability granted through roles.
type Permission struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// PermissionFilter defines list filters for permissions.
type PermissionFilter struct {
	Search   string
	Page     int
	PageSize int
}
