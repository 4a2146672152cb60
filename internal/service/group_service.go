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

type groupRepository interface {
	List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error)
	FindByID(ctx context.Context, id string) (*models.Group, error)
	FindByName(ctx context.Context, name string) (*models.Group, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id string) error
	CountActivities(ctx context.Context, id string) (int, error)
}

type semesterFinder interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

// GroupRequest describes payload for creating or updating groups.
type GroupRequest struct {
	Name       string `json:"name" validate:"required,max=80"`
	CourseID   string `json:"course_id" validate:"required,max=40"`
	SemesterID string `json:"semester_id" validate:"required"`
}

// GroupService orchestrates group workflows.
type GroupService struct {
	repo      groupRepository
	semesters semesterFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService creates a group service.
func NewGroupService(repo groupRepository, semesters semesterFinder, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{repo: repo, semesters: semesters, validator: validate, logger: logger}
}

// List returns paginated groups.
func (s *GroupService) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list groups")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a group by ID.
func (s *GroupService) Get(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Group", id)
	}
	return group, nil
}

// GetByName returns a group by its unique name.
func (s *GroupService) GetByName(ctx context.Context, name string) (*models.Group, error) {
	group, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, lookupError(err, "Group", name)
	}
	return group, nil
}

// Create adds a group to an existing semester.
func (s *GroupService) Create(ctx context.Context, req GroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid group payload")
	}
	name := strings.TrimSpace(req.Name)
	if err := s.checkRefs(ctx, name, req.SemesterID, ""); err != nil {
		return nil, err
	}

	group := &models.Group{Name: name, CourseID: strings.TrimSpace(req.CourseID), SemesterID: req.SemesterID}
	if err := s.repo.Create(ctx, group); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Conflict("Group '%s' already exists", name)
		}
		return nil, appErrors.Internal(err, "failed to create group")
	}
	return group, nil
}

// Update modifies a group.
func (s *GroupService) Update(ctx context.Context, id string, req GroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid group payload")
	}
	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if err := s.checkRefs(ctx, name, req.SemesterID, id); err != nil {
		return nil, err
	}

	group.Name = name
	group.CourseID = strings.TrimSpace(req.CourseID)
	group.SemesterID = req.SemesterID
	if err := s.repo.Update(ctx, group); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Conflict("Group '%s' already exists", name)
		}
		return nil, appErrors.Internal(err, "failed to update group")
	}
	return group, nil
}

// Delete removes a group without activities.
func (s *GroupService) Delete(ctx context.Context, id string) error {
	group, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.repo.CountActivities(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to check group dependencies")
	}
	if count > 0 {
		return appErrors.Conflict("Group '%s' still has %d activities", group.Name, count)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete group")
	}
	return nil
}

func (s *GroupService) checkRefs(ctx context.Context, name, semesterID, excludeID string) error {
	if _, err := s.semesters.FindByID(ctx, semesterID); err != nil {
		return lookupError(err, "Semester", semesterID)
	}
	exists, err := s.repo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check group uniqueness")
	}
	if exists {
		return appErrors.Conflict("Group '%s' already exists", name)
	}
	return nil
}
