package authz

import "github.com/noah-isme/ctp-api/internal/models"

// Rule decides whether a principal may proceed. A nil principal is always denied.
type Rule func(p *Principal) bool

// Authenticated grants any principal.
func Authenticated() Rule {
	return func(p *Principal) bool { return p != nil }
}

// HasRole grants principals holding ROLE_<name>.
func HasRole(name string) Rule {
	return func(p *Principal) bool { return p.HasRole(name) }
}

// HasAuthority grants principals holding the exact authority.
func HasAuthority(authority string) Rule {
	return func(p *Principal) bool { return p.HasAuthority(authority) }
}

// AnyOf grants when at least one rule grants.
func AnyOf(rules ...Rule) Rule {
	return func(p *Principal) bool {
		if p == nil {
			return false
		}
		for _, r := range rules {
			if r(p) {
				return true
			}
		}
		return false
	}
}

// AllOf grants when every rule grants.
func AllOf(rules ...Rule) Rule {
	return func(p *Principal) bool {
		if p == nil || len(rules) == 0 {
			return false
		}
		for _, r := range rules {
			if !r(p) {
				return false
			}
		}
		return true
	}
}

// PermissionOrAdmin is hasAuthority(perm) or hasRole(ADMIN).
func PermissionOrAdmin(permission string) Rule {
	return AnyOf(HasAuthority(permission), HasRole(models.RoleAdmin))
}
