package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/repository"
	"github.com/noah-isme/ctp-api/internal/repository/memstore"
	"github.com/noah-isme/ctp-api/internal/service"
	"github.com/noah-isme/ctp-api/pkg/storage"
)

const (
	adminEmail    = "root@x.com"
	adminPassword = "rootpass1"
)

type testServer struct {
	router     *gin.Engine
	store      *memstore.Store
	scoreboard *service.ScoreboardService
}

type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Pagination *models.Pagination `json:"pagination"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := zap.NewNop()

	store := memstore.New()
	seeder := service.NewSeeder(store.Permissions(), store.Roles(), store.Users(),
		service.SeedConfig{AdminEmail: adminEmail, AdminPassword: adminPassword}, logger)
	require.NoError(t, seeder.EnsureDefaults(ctx))

	metrics := service.NewMetricsService()
	users := service.NewUserService(store.Users(), store.Roles(), nil, logger)
	auth := service.NewAuthService(store.Users(), users, nil, logger, service.AuthConfig{
		AccessTokenSecret:  "handler-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "ctp-api-test",
	})

	scoreboard := service.NewScoreboardService(store.Resolutions(), store.Activities(), repository.NewLocalBroadcaster(),
		service.ScoreboardConfig{Workers: 1, Retries: 1, RetryDelay: 10 * time.Millisecond}, metrics, logger)
	scoreboard.Start(ctx)
	t.Cleanup(scoreboard.Stop)

	resolutions := service.NewResolutionService(store.Resolutions(), service.ResolutionDeps{
		Students:   store.Students(),
		Exercises:  store.Exercises(),
		Professors: store.Professors(),
		Groups:     store.Groups(),
		Audit:      store.Users(),
		Metrics:    metrics,
		Scoreboard: scoreboard,
	}, service.LeaderboardConfig{Size: 5}, nil, logger)

	files, err := storage.NewLocalStore(t.TempDir(), "/api/files/images/", storage.NewSignedURLSigner("img-secret", time.Hour))
	require.NoError(t, err)
	images := service.NewImageService(files, service.ImageConfig{}, metrics, logger)

	r := gin.New()
	RegisterRoutes(r, "/api", auth, Handlers{
		Auth:        NewAuthHandler(auth),
		Permissions: NewPermissionHandler(service.NewPermissionService(store.Permissions(), store.Users(), nil, logger)),
		Roles:       NewRoleHandler(service.NewRoleService(store.Roles(), store.Permissions(), store.Users(), nil, logger)),
		Users:       NewUserHandler(users),
		Semesters:   NewSemesterHandler(service.NewSemesterService(store.Semesters(), nil, logger)),
		Groups:      NewGroupHandler(service.NewGroupService(store.Groups(), store.Semesters(), nil, logger)),
		Professors:  NewProfessorHandler(service.NewProfessorService(store.Professors(), store.Users(), store.Activities(), nil, logger)),
		Students:    NewStudentHandler(service.NewStudentService(store.Students(), store.Users(), nil, logger)),
		Activities:  NewActivityHandler(service.NewActivityService(store.Activities(), store.Groups(), store.Professors(), nil, logger)),
		Exercises:   NewExerciseHandler(service.NewExerciseService(store.Exercises(), store.Activities(), nil, logger)),
		Resolutions: NewResolutionHandler(resolutions),
		Images:      NewImageHandler(images, files),
		Scoreboard:  NewScoreboardHandler(scoreboard),
		Metrics: NewMetricsHandler(metrics, map[string]ReadinessCheck{
			"store": func(context.Context) error { return nil },
		}),
	})

	return &testServer{router: r, store: store, scoreboard: scoreboard}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[models.LoginResponse](t, env).AccessToken
}

func (s *testServer) register(t *testing.T, name, email string) models.UserInfo {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.UserInfo](t, env)
}

func (s *testServer) roleID(t *testing.T, name string) string {
	t.Helper()
	role, err := s.store.Roles().FindByName(context.Background(), name)
	require.NoError(t, err)
	return role.ID
}
