package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/ctp-api/internal/authz"
	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/logger"
)

type stubValidator map[string]*models.JWTClaims

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newRouter(tokens tokenValidator, guard gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWT(tokens), guard, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user":  PrincipalFromContext(c).UserID,
			"email": c.GetString(logger.PrincipalEmailKey),
			"actor": Actor(c).UserID,
		})
	})
	return r
}

func perform(r http.Handler, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndRequire(t *testing.T) {
	tokens := stubValidator{
		"student": {UserID: "u1", Email: "stu@x.com", Roles: []string{models.RoleStudent}, Permissions: []string{authz.PermSubmitResolution}},
		"admin":   {UserID: "u2", Email: "admin@x.com", Roles: []string{models.RoleAdmin}},
	}
	r := newRouter(tokens, RequirePermission(authz.PermSubmitResolution))

	w := perform(r, "/protected", "student")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"u1","email":"stu@x.com","actor":"u1"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, perform(r, "/protected", "admin").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "/protected", "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "/protected", "forged").Code)
	assert.Equal(t, http.StatusOK, perform(r, "/protected?access_token=student", "").Code)
}

func TestRequireForbidsMissingAuthority(t *testing.T) {
	tokens := stubValidator{"student": {UserID: "u1", Roles: []string{models.RoleStudent}}}
	r := newRouter(tokens, Require(authz.HasRole(models.RoleAdmin)))

	w := perform(r, "/protected", "student")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrForbidden.Code)
}

func TestRequireWithoutPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/open", OptionalJWT(stubValidator{}), Require(authz.Authenticated()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusUnauthorized, perform(r, "/open", "bogus").Code)
}

func TestOptionalJWTAttachesValidPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := stubValidator{"student": {UserID: "u1", Email: "stu@x.com", Roles: []string{models.RoleStudent}}}
	r := gin.New()
	r.GET("/open", OptionalJWT(tokens), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(logger.PrincipalEmailKey))
	})

	w := perform(r, "/open", "student")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu@x.com", w.Body.String())

	w = perform(r, "/open", "forged")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	r := newRouter(stubValidator{}, Require(authz.Authenticated()))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization header")
}
