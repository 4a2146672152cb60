package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/pkg/database"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.ProfileFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

// CreateStudentRequest attaches a student profile to an existing user.
type CreateStudentRequest struct {
	UserID         string `json:"user_id" validate:"required"`
	InitialProfile string `json:"initial_profile" validate:"max=2000"`
}

// UpdateStudentRequest updates the student's initial profile.
type UpdateStudentRequest struct {
	InitialProfile string `json:"initial_profile" validate:"max=2000"`
}

// StudentService manages student profiles.
type StudentService struct {
	repo      studentRepository
	users     userFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService creates a student service.
func NewStudentService(repo studentRepository, users userFinder, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, users: users, validator: validate, logger: logger}
}

// List returns paginated students.
func (s *StudentService) List(ctx context.Context, filter models.ProfileFilter) ([]models.Student, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list students")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a student by user id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Student", id)
	}
	return student, nil
}

// Create attaches a student profile to an existing user.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid student payload")
	}
	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, lookupError(err, "User", req.UserID)
	}
	if _, err := s.repo.FindByID(ctx, user.ID); err == nil {
		return nil, appErrors.Conflict("User '%s' is already a student", user.Email)
	}

	student := &models.Student{ID: user.ID, InitialProfile: strings.TrimSpace(req.InitialProfile)}
	if err := s.repo.Create(ctx, student); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Conflict("User '%s' is already a student", user.Email)
		}
		return nil, appErrors.Internal(err, "failed to create student")
	}
	student.Name = user.Name
	student.Email = user.Email
	return student, nil
}

// Update changes the student's initial profile.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid student payload")
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	student.InitialProfile = strings.TrimSpace(req.InitialProfile)
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Internal(err, "failed to update student")
	}
	return student, nil
}

// Delete removes the student profile together with its resolutions.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete student")
	}
	return nil
}
