package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/pkg/database"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

type semesterRepository interface {
	List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, int, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, semester *models.Semester) error
	Update(ctx context.Context, semester *models.Semester) error
	Delete(ctx context.Context, id string) error
	CountGroups(ctx context.Context, id string) (int, error)
}

// SemesterRequest describes payload for creating or updating semesters.
type SemesterRequest struct {
	Code      string    `json:"code" validate:"required,max=20"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	IsActive  *bool     `json:"is_active"`
}

// SemesterService orchestrates semester workflows.
type SemesterService struct {
	repo      semesterRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSemesterService creates a new semester service instance.
func NewSemesterService(repo semesterRepository, validate *validator.Validate, logger *zap.Logger) *SemesterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemesterService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated semesters, newest first.
func (s *SemesterService) List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list semesters")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a semester by ID.
func (s *SemesterService) Get(ctx context.Context, id string) (*models.Semester, error) {
	semester, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Semester", id)
	}
	return semester, nil
}

// Create adds a semester with a unique code.
func (s *SemesterService) Create(ctx context.Context, req SemesterRequest) (*models.Semester, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.Code)
	if err := s.ensureCodeFree(ctx, code, ""); err != nil {
		return nil, err
	}

	semester := &models.Semester{
		Code:      code,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsActive:  req.IsActive != nil && *req.IsActive,
	}
	if err := s.repo.Create(ctx, semester); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Conflict("Semester '%s' already exists", code)
		}
		return nil, appErrors.Internal(err, "failed to create semester")
	}
	return semester, nil
}

// Update modifies a semester record.
func (s *SemesterService) Update(ctx context.Context, id string, req SemesterRequest) (*models.Semester, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	semester, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.Code)
	if err := s.ensureCodeFree(ctx, code, id); err != nil {
		return nil, err
	}

	semester.Code = code
	semester.StartDate = req.StartDate
	semester.EndDate = req.EndDate
	if req.IsActive != nil {
		semester.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, semester); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Conflict("Semester '%s' already exists", code)
		}
		return nil, appErrors.Internal(err, "failed to update semester")
	}
	return semester, nil
}

// Delete removes a semester without groups.
func (s *SemesterService) Delete(ctx context.Context, id string) error {
	semester, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.repo.CountGroups(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to check semester dependencies")
	}
	if count > 0 {
		return appErrors.Conflict("Semester '%s' still has %d group(s)", semester.Code, count)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete semester")
	}
	return nil
}

func (s *SemesterService) validate(req SemesterRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid semester payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}
	return nil
}

func (s *SemesterService) ensureCodeFree(ctx context.Context, code, excludeID string) error {
	exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check semester uniqueness")
	}
	if exists {
		return appErrors.Conflict("Semester '%s' already exists", code)
	}
	return nil
}
