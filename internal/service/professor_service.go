package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/pkg/database"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

type professorRepository interface {
	List(ctx context.Context, filter models.ProfileFilter) ([]models.Professor, int, error)
	FindByID(ctx context.Context, id string) (*models.Professor, error)
	Create(ctx context.Context, professor *models.Professor) error
	Delete(ctx context.Context, id string) error
}

type professorActivities interface {
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ProfessorRequest promotes an existing user to a professor profile.
type ProfessorRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// ProfessorService manages professor profiles.
type ProfessorService struct {
	repo       professorRepository
	users      userFinder
	activities professorActivities
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewProfessorService creates a professor service.
func NewProfessorService(repo professorRepository, users userFinder, activities professorActivities, validate *validator.Validate, logger *zap.Logger) *ProfessorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfessorService{repo: repo, users: users, activities: activities, validator: validate, logger: logger}
}

// List returns paginated professors.
func (s *ProfessorService) List(ctx context.Context, filter models.ProfileFilter) ([]models.Professor, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list professors")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a professor by user id.
func (s *ProfessorService) Get(ctx context.Context, id string) (*models.Professor, error) {
	professor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Professor", id)
	}
	return professor, nil
}

// Create attaches a professor profile to an existing user.
func (s *ProfessorService) Create(ctx context.Context, req ProfessorRequest) (*models.Professor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid professor payload")
	}
	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, lookupError(err, "User", req.UserID)
	}
	if _, err := s.repo.FindByID(ctx, user.ID); err == nil {
		return nil, appErrors.Conflict("User '%s' is already a professor", user.Email)
	}

	professor := &models.Professor{ID: user.ID}
	if err := s.repo.Create(ctx, professor); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Conflict("User '%s' is already a professor", user.Email)
		}
		return nil, appErrors.Internal(err, "failed to create professor")
	}
	professor.Name = user.Name
	professor.Email = user.Email
	return professor, nil
}

// Delete removes the professor profile; the user account stays.
func (s *ProfessorService) Delete(ctx context.Context, id string) error {
	professor, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	_, running, err := s.activities.List(ctx, models.ActivityFilter{ProfessorID: id, PageSize: 1})
	if err != nil {
		return appErrors.Internal(err, "failed to check professor dependencies")
	}
	if running > 0 {
		return appErrors.Conflict("Professor '%s' still runs %d activities", professor.Email, running)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete professor")
	}
	return nil
}
