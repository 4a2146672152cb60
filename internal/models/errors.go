package models

import "errors"

// Stores return these when a write would break a membership invariant. They are checked
// inside the same transaction (or lock) as the write.
var (
	ErrLastPermission  = errors.New("role must keep at least one permission")
	ErrLastRole        = errors.New("user must keep at least one role")
	ErrPermissionInUse = errors.New("permission is the only permission of a role")
)
