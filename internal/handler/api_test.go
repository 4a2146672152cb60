package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
)

func TestRegisterLoginMe(t *testing.T) {
	srv := newTestServer(t)

	info := srv.register(t, "Alice", "alice@x.com")
	assert.Equal(t, []string{models.RoleStudent}, info.Roles)

	token := srv.login(t, "alice@x.com", "secret123")
	require.NotEmpty(t, token)

	rec, env := srv.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[models.UserInfo](t, env)
	assert.Equal(t, "alice@x.com", me.Email)
	assert.Contains(t, me.Permissions, "SUBMIT_RESOLUTION")
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "Alice", "alice@x.com")

	rec, env := srv.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@x.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
}

func TestRouteGuards(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "Bob", "bob@x.com")
	student := srv.login(t, "bob@x.com", "secret123")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"me without token", http.MethodGet, "/api/auth/me", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/users", "not-a-jwt", http.StatusUnauthorized},
		{"student lists users", http.MethodGet, "/api/users", student, http.StatusForbidden},
		{"student creates semester", http.MethodPost, "/api/semesters", student, http.StatusForbidden},
		{"student grades", http.MethodPut, "/api/resolutions/x/points", student, http.StatusForbidden},
		{"student reads activities", http.MethodGet, "/api/activities", student, http.StatusOK},
		{"public ping", http.MethodGet, "/api/test/ping", "", http.StatusOK},
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"ready", http.MethodGet, "/ready", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := srv.do(t, tc.method, tc.path, tc.token, map[string]string{})
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestCreateRoleWithoutPermissions(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login(t, adminEmail, adminPassword)

	rec, env := srv.do(t, http.MethodPost, "/api/roles", admin, map[string]interface{}{
		"name": "R1", "permission_ids": []string{},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BUSINESS_RULE_VIOLATION", env.Error.Code)
	assert.Equal(t, "Role 'R1' must have at least one permission", env.Error.Message)
}

func TestRolePermissionLinks(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login(t, adminEmail, adminPassword)

	rec, env := srv.do(t, http.MethodPost, "/api/permissions", admin, map[string]string{"name": "export_grades"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	perm := decode[models.Permission](t, env)
	assert.Equal(t, "EXPORT_GRADES", perm.Name)

	rec, env = srv.do(t, http.MethodPost, "/api/roles", admin, map[string]interface{}{
		"name": "auditor", "permission_ids": []string{perm.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	role := decode[models.Role](t, env)

	rec, env = srv.do(t, http.MethodDelete, "/api/roles/"+role.ID+"/permissions/"+perm.ID, admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)

	rec, _ = srv.do(t, http.MethodDelete, "/api/permissions/"+perm.ID, admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = srv.do(t, http.MethodGet, "/api/permissions?search=EXPORT", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestUserRoleManagement(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login(t, adminEmail, adminPassword)

	rec, env := srv.do(t, http.MethodPost, "/api/users", admin, map[string]interface{}{
		"name": "Carol", "email": "Carol@X.com", "password": "secret123",
		"role_ids": []string{srv.roleID(t, models.RoleProfessor)},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode[models.User](t, env)
	assert.Equal(t, "carol@x.com", user.Email)

	rec, _ = srv.do(t, http.MethodPost, "/api/users/"+user.ID+"/roles/"+srv.roleID(t, models.RoleStudent), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = srv.do(t, http.MethodDelete, "/api/users/"+user.ID+"/roles/"+srv.roleID(t, models.RoleStudent), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = srv.do(t, http.MethodDelete, "/api/users/"+user.ID+"/roles/"+srv.roleID(t, models.RoleProfessor), admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)

	rec, _ = srv.do(t, http.MethodPost, "/api/users", admin, map[string]interface{}{
		"name": "Dup", "email": "carol@x.com", "password": "secret123",
		"role_ids": []string{srv.roleID(t, models.RoleStudent)},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInvalidJSONPayload(t *testing.T) {
	srv := newTestServer(t)
	rec, env := srv.do(t, http.MethodPost, "/api/auth/login", "", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.True(t, strings.HasPrefix(env.Error.Message, "invalid login payload"))
}
