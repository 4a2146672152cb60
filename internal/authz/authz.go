// Package authz derives granted authorities from a principal's role graph and
// evaluates the guard rules attached to routes.
package authz

import (
	"sort"
	"strings"

	"github.com/noah-isme/ctp-api/internal/models"
)

// RolePrefix marks role-derived authorities.
const RolePrefix = "ROLE_"

// Authorities is the granted authority set of a principal.
type Authorities map[string]struct{}

// Derive returns {"ROLE_"+role} ∪ {permission} for every role and its permissions.
func Derive(roles []models.Role) Authorities {
	set := make(Authorities)
	for _, role := range roles {
		set[RolePrefix+role.Name] = struct{}{}
		for _, perm := range role.Permissions {
			set[perm.Name] = struct{}{}
		}
	}
	return set
}

// FromNames builds the authority set out of role and permission names, as carried in tokens.
func FromNames(roles, permissions []string) Authorities {
	set := make(Authorities, len(roles)+len(permissions))
	for _, r := range roles {
		set[RolePrefix+r] = struct{}{}
	}
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether the exact authority is granted.
func (a Authorities) Has(authority string) bool {
	if a == nil {
		return false
	}
	_, ok := a[authority]
	return ok
}

// HasRole reports whether ROLE_<name> is granted.
func (a Authorities) HasRole(name string) bool {
	return a.Has(RolePrefix + strings.TrimPrefix(name, RolePrefix))
}

// Roles returns the role names without prefix, sorted.
func (a Authorities) Roles() []string {
	out := make([]string, 0)
	for k := range a {
		if strings.HasPrefix(k, RolePrefix) {
			out = append(out, strings.TrimPrefix(k, RolePrefix))
		}
	}
	sort.Strings(out)
	return out
}

// Permissions returns the permission authorities, sorted.
func (a Authorities) Permissions() []string {
	out := make([]string, 0)
	for k := range a {
		if !strings.HasPrefix(k, RolePrefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// List returns every authority, sorted.
func (a Authorities) List() []string {
	out := make([]string, 0, len(a))
	for k := range a {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
