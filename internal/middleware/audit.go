package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ctp-api/internal/models"
)

// Actor describes the caller of a mutating request for the audit trail.
func Actor(c *gin.Context) *models.AuditActor {
	actor := &models.AuditActor{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
	if principal := PrincipalFromContext(c); principal != nil {
		actor.UserID = principal.UserID
	}
	return actor
}
