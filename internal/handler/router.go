package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ctp-api/internal/authz"
	"github.com/noah-isme/ctp-api/internal/middleware"
	"github.com/noah-isme/ctp-api/internal/models"
)

// tokenValidator validates bearer access tokens.
type tokenValidator interface {
	ValidateToken(tokenString string) (*models.JWTClaims, error)
}

// Handlers bundles every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth        *AuthHandler
	Permissions *PermissionHandler
	Roles       *RoleHandler
	Users       *UserHandler
	Semesters   *SemesterHandler
	Groups      *GroupHandler
	Professors  *ProfessorHandler
	Students    *StudentHandler
	Activities  *ActivityHandler
	Exercises   *ExerciseHandler
	Resolutions *ResolutionHandler
	Images      *ImageHandler
	Scoreboard  *ScoreboardHandler
	Metrics     *MetricsHandler
}

// RegisterRoutes mounts the probes at the root and the API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, tokens tokenValidator, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	auth := middleware.JWT(tokens)
	perm := middleware.RequirePermission

	api.GET("/test/ping", h.Metrics.Ping)
	// Viewers need no token; a valid one names them in the access log.
	api.GET("/ws/activities/:id/scoreboard", middleware.OptionalJWT(tokens), h.Scoreboard.Stream)
	api.GET("/files/images/:token", h.Images.ServeFile)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/refresh", h.Auth.Refresh)
	authGroup.POST("/logout", auth, h.Auth.Logout)
	authGroup.POST("/change-password", auth, h.Auth.ChangePassword)
	authGroup.GET("/me", auth, h.Auth.Me)

	secured := api.Group("", auth)

	permissions := secured.Group("/permissions", perm(authz.PermManagePermissions))
	permissions.GET("", h.Permissions.List)
	permissions.GET("/:id", h.Permissions.Get)
	permissions.POST("", h.Permissions.Create)
	permissions.PUT("/:id", h.Permissions.Update)
	permissions.DELETE("/:id", h.Permissions.Delete)

	roles := secured.Group("/roles", perm(authz.PermManageRoles))
	roles.GET("", h.Roles.List)
	roles.GET("/:id", h.Roles.Get)
	roles.POST("", h.Roles.Create)
	roles.PUT("/:id", h.Roles.Update)
	roles.DELETE("/:id", h.Roles.Delete)
	roles.POST("/:id/permissions/:permissionId", h.Roles.AddPermission)
	roles.DELETE("/:id/permissions/:permissionId", h.Roles.RemovePermission)

	users := secured.Group("/users", perm(authz.PermManageUsers))
	users.GET("", h.Users.List)
	users.GET("/:id", h.Users.Get)
	users.POST("", h.Users.Create)
	users.PUT("/:id", h.Users.Update)
	users.DELETE("/:id", h.Users.Delete)
	users.POST("/:id/roles/:roleId", h.Users.AddRole)
	users.DELETE("/:id/roles/:roleId", h.Users.RemoveRole)

	crud(secured.Group("/semesters"), authz.PermReadSemester, authz.PermWriteSemester,
		h.Semesters.List, h.Semesters.Get, h.Semesters.Create, h.Semesters.Update, h.Semesters.Delete)
	crud(secured.Group("/groups"), authz.PermReadGroup, authz.PermWriteGroup,
		h.Groups.List, h.Groups.Get, h.Groups.Create, h.Groups.Update, h.Groups.Delete)
	crud(secured.Group("/professors"), authz.PermReadProfessor, authz.PermWriteProfessor,
		h.Professors.List, h.Professors.Get, h.Professors.Create, nil, h.Professors.Delete)
	crud(secured.Group("/students"), authz.PermReadStudent, authz.PermWriteStudent,
		h.Students.List, h.Students.Get, h.Students.Create, h.Students.Update, h.Students.Delete)
	crud(secured.Group("/activities"), authz.PermReadActivity, authz.PermWriteActivity,
		h.Activities.List, h.Activities.Get, h.Activities.Create, h.Activities.Update, h.Activities.Delete)
	crud(secured.Group("/exercises"), authz.PermReadExercise, authz.PermWriteExercise,
		h.Exercises.List, h.Exercises.Get, h.Exercises.Create, h.Exercises.Update, h.Exercises.Delete)

	resolutions := secured.Group("/resolutions")
	resolutions.GET("", perm(authz.PermReadResolution), h.Resolutions.List)
	resolutions.GET("/:id", perm(authz.PermReadResolution), h.Resolutions.Get)
	resolutions.POST("", perm(authz.PermSubmitResolution), h.Resolutions.Submit)
	resolutions.PUT("/:id/points", perm(authz.PermGradeResolution), h.Resolutions.AssignPoints)
	resolutions.DELETE("/:id", perm(authz.PermDeleteResolution), h.Resolutions.Delete)

	leaderboard := secured.Group("/leaderboard", perm(authz.PermViewLeaderboard))
	leaderboard.GET("/group/:name", h.Resolutions.Leaderboard)
	leaderboard.GET("/group/:name/export", h.Resolutions.ExportLeaderboard)

	images := secured.Group("/images")
	images.POST("/upload", perm(authz.PermUploadImage), h.Images.Upload)
	images.GET("/*key", middleware.Require(authz.Authenticated()), h.Images.SignedURL)
	images.DELETE("/*key", perm(authz.PermDeleteImage), h.Images.Delete)
}

func crud(g *gin.RouterGroup, read, write string, list, get, create, update, remove gin.HandlerFunc) {
	g.GET("", middleware.RequirePermission(read), list)
	g.GET("/:id", middleware.RequirePermission(read), get)
	g.POST("", middleware.RequirePermission(write), create)
	if update != nil {
		g.PUT("/:id", middleware.RequirePermission(write), update)
	}
	g.DELETE("/:id", middleware.RequirePermission(write), remove)
}
