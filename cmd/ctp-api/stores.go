package main

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/repository"
	"github.com/noah-isme/ctp-api/internal/repository/memstore"
)

// stores is the persistence backend selected by STORAGE_DRIVER.
type stores struct {
	permissions permissionStore
	roles       roleStore
	users       userStore
	semesters   semesterStore
	groups      groupStore
	professors  professorStore
	students    studentStore
	activities  activityStore
	exercises   exerciseStore
	resolutions resolutionStore
}

func postgresStores(db *sqlx.DB) stores {
	return stores{
		permissions: repository.NewPermissionRepository(db),
		roles:       repository.NewRoleRepository(db),
		users:       repository.NewUserRepository(db),
		semesters:   repository.NewSemesterRepository(db),
		groups:      repository.NewGroupRepository(db),
		professors:  repository.NewProfessorRepository(db),
		students:    repository.NewStudentRepository(db),
		activities:  repository.NewActivityRepository(db),
		exercises:   repository.NewExerciseRepository(db),
		resolutions: repository.NewResolutionRepository(db),
	}
}

func memoryStores() stores {
	m := memstore.New()
	return stores{
		permissions: m.Permissions(),
		roles:       m.Roles(),
		users:       m.Users(),
		semesters:   m.Semesters(),
		groups:      m.Groups(),
		professors:  m.Professors(),
		students:    m.Students(),
		activities:  m.Activities(),
		exercises:   m.Exercises(),
		resolutions: m.Resolutions(),
	}
}

type permissionStore interface {
	Create(ctx context.Context, perm *models.Permission) error
	Delete(ctx context.Context, id string) error
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Permission, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Permission, error)
	FindByName(ctx context.Context, name string) (*models.Permission, error)
	List(ctx context.Context, filter models.PermissionFilter) ([]models.Permission, int, error)
	Update(ctx context.Context, perm *models.Permission) error
}

type roleStore interface {
	AddPermission(ctx context.Context, roleID, permissionID string) (bool, error)
	CountUsers(ctx context.Context, id string) (int, error)
	Create(ctx context.Context, role *models.Role, permissionIDs []string) error
	Delete(ctx context.Context, id string) error
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Role, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Role, error)
	FindByName(ctx context.Context, name string) (*models.Role, error)
	List(ctx context.Context, filter models.RoleFilter) ([]models.Role, int, error)
	RemovePermission(ctx context.Context, roleID, permissionID string) error
	Update(ctx context.Context, role *models.Role, permissionIDs []string) error
}

type userStore interface {
	Create(ctx context.Context, user *models.User, roleIDs []string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	Delete(ctx context.Context, id string) error
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindRefreshToken(ctx context.Context, id string) (*models.RefreshToken, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	Update(ctx context.Context, user *models.User, roleIDs []string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

type semesterStore interface {
	CountGroups(ctx context.Context, id string) (int, error)
	Create(ctx context.Context, semester *models.Semester) error
	Delete(ctx context.Context, id string) error
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, int, error)
	Update(ctx context.Context, semester *models.Semester) error
}

type groupStore interface {
	CountActivities(ctx context.Context, id string) (int, error)
	Create(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id string) error
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Group, error)
	FindByName(ctx context.Context, name string) (*models.Group, error)
	List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error)
	Update(ctx context.Context, group *models.Group) error
}

type professorStore interface {
	Create(ctx context.Context, professor *models.Professor) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Professor, error)
	List(ctx context.Context, filter models.ProfileFilter) ([]models.Professor, int, error)
}

type studentStore interface {
	Create(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Student, error)
	List(ctx context.Context, filter models.ProfileFilter) ([]models.Student, int, error)
	Update(ctx context.Context, student *models.Student) error
}

type activityStore interface {
	Create(ctx context.Context, activity *models.Activity) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Activity, error)
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error)
	Update(ctx context.Context, activity *models.Activity) error
}

type exerciseStore interface {
	Create(ctx context.Context, exercise *models.Exercise) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Exercise, error)
	List(ctx context.Context, filter models.ExerciseFilter) ([]models.Exercise, int, error)
	Update(ctx context.Context, exercise *models.Exercise) error
}

type resolutionStore interface {
	ActivityScores(ctx context.Context, activityID string) ([]models.StudentScore, error)
	AssignPoints(ctx context.Context, id string, points int, awardedBy string, gradedAt time.Time) error
	CreateNextAttempt(ctx context.Context, resolution *models.Resolution) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Resolution, error)
	GroupScores(ctx context.Context, groupID string) ([]models.StudentScore, error)
	List(ctx context.Context, filter models.ResolutionFilter) ([]models.Resolution, int, error)
}
