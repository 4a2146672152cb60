package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ctp-api/internal/authz"
	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/logger"
	"github.com/noah-isme/ctp-api/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the authenticated principal.
const ContextPrincipalKey = "principal"

// accessTokenQueryParam lets EventSource clients, which cannot set headers, authenticate.
const accessTokenQueryParam = "access_token"

type tokenValidator interface {
	ValidateToken(tokenString string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(tokens tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c)
		if err != nil {
			response.Abort(c, err)
			return
		}

		claims, err := tokens.ValidateToken(raw)
		if err != nil {
			response.Abort(c, err)
			return
		}

		setPrincipal(c, authz.FromClaims(claims))
		c.Next()
	}
}

// OptionalJWT attaches the principal when a valid token is present but does not block.
func OptionalJWT(tokens tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c)
		if err == nil {
			if claims, err := tokens.ValidateToken(raw); err == nil {
				setPrincipal(c, authz.FromClaims(claims))
			}
		}
		c.Next()
	}
}

// PrincipalFromContext returns the authenticated caller or nil.
func PrincipalFromContext(c *gin.Context) *authz.Principal {
	value, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return nil
	}
	principal, _ := value.(*authz.Principal)
	return principal
}

func setPrincipal(c *gin.Context, principal *authz.Principal) {
	c.Set(ContextPrincipalKey, principal)
	c.Set(logger.PrincipalEmailKey, principal.Email)
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query(accessTokenQueryParam); token != "" {
			return token, nil
		}
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
