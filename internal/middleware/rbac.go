package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ctp-api/internal/authz"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/response"
)

// Require guards a route with an authorization rule. A missing principal yields 401,
// a principal the rule rejects yields 403.
func Require(rule authz.Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := PrincipalFromContext(c)
		if principal == nil {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if !rule(principal) {
			response.Abort(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}

// RequirePermission allows holders of the permission and administrators.
func RequirePermission(permission string) gin.HandlerFunc {
	return Require(authz.PermissionOrAdmin(permission))
}
