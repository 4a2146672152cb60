package authz

import "github.com/noah-isme/ctp-api/internal/models"

// Principal is the authenticated caller, passed explicitly to services.
type Principal struct {
	UserID      string
	Email       string
	Name        string
	Authorities Authorities
}

// FromClaims builds a principal from the signed token payload.
func FromClaims(claims *models.JWTClaims) *Principal {
	if claims == nil {
		return nil
	}
	return &Principal{
		UserID:      claims.UserID,
		Email:       claims.Email,
		Name:        claims.Name,
		Authorities: FromNames(claims.Roles, claims.Permissions),
	}
}

// FromUser builds a principal from the current stored role graph.
func FromUser(user *models.User) *Principal {
	if user == nil {
		return nil
	}
	return &Principal{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Authorities: Derive(user.Roles),
	}
}

// HasRole is nil-safe.
func (p *Principal) HasRole(name string) bool {
	return p != nil && p.Authorities.HasRole(name)
}

// HasAuthority is nil-safe.
func (p *Principal) HasAuthority(authority string) bool {
	return p != nil && p.Authorities.Has(authority)
}

// IsAdmin reports the superuser bypass.
func (p *Principal) IsAdmin() bool {
	return p.HasRole(models.RoleAdmin)
}
