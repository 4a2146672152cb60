package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

type activityRepository interface {
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error)
	FindByID(ctx context.Context, id string) (*models.Activity, error)
	Create(ctx context.Context, activity *models.Activity) error
	Update(ctx context.Context, activity *models.Activity) error
	Delete(ctx context.Context, id string) error
}

type groupFinder interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
}

type professorFinder interface {
	FindByID(ctx context.Context, id string) (*models.Professor, error)
}

// ActivityRequest describes payload for creating or updating activities.
type ActivityRequest struct {
	GroupID     string                `json:"group_id" validate:"required"`
	ProfessorID string                `json:"professor_id" validate:"required"`
	Title       string                `json:"title" validate:"required,max=200"`
	StartTime   time.Time             `json:"start_time" validate:"required"`
	EndTime     time.Time             `json:"end_time" validate:"required"`
	Status      models.ActivityStatus `json:"status" validate:"omitempty,oneof=PENDING ACTIVE COMPLETED CANCELLED"`
}

// ActivityService manages activities.
type ActivityService struct {
	repo       activityRepository
	groups     groupFinder
	professors professorFinder
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewActivityService creates an activity service.
func NewActivityService(repo activityRepository, groups groupFinder, professors professorFinder, validate *validator.Validate, logger *zap.Logger) *ActivityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, groups: groups, professors: professors, validator: validate, logger: logger}
}

// List returns paginated activities, latest start first.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list activities")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns an activity by ID.
func (s *ActivityService) Get(ctx context.Context, id string) (*models.Activity, error) {
	activity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Activity", id)
	}
	return activity, nil
}

// Create schedules an activity for a group.
func (s *ActivityService) Create(ctx context.Context, req ActivityRequest) (*models.Activity, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	activity := &models.Activity{
		GroupID:     req.GroupID,
		ProfessorID: req.ProfessorID,
		Title:       strings.TrimSpace(req.Title),
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Status:      req.Status,
	}
	if activity.Status == "" {
		activity.Status = models.ActivityStatusPending
	}
	if err := s.repo.Create(ctx, activity); err != nil {
		return nil, appErrors.Internal(err, "failed to create activity")
	}
	return activity, nil
}

// Update modifies an activity.
func (s *ActivityService) Update(ctx context.Context, id string, req ActivityRequest) (*models.Activity, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	activity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	activity.GroupID = req.GroupID
	activity.ProfessorID = req.ProfessorID
	activity.Title = strings.TrimSpace(req.Title)
	activity.StartTime = req.StartTime
	activity.EndTime = req.EndTime
	if req.Status != "" {
		activity.Status = req.Status
	}
	if err := s.repo.Update(ctx, activity); err != nil {
		return nil, appErrors.Internal(err, "failed to update activity")
	}
	return activity, nil
}

// Delete removes an activity and its exercises.
func (s *ActivityService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete activity")
	}
	return nil
}

func (s *ActivityService) validate(ctx context.Context, req ActivityRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid activity payload")
	}
	if !req.StartTime.Before(req.EndTime) {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	if _, err := s.groups.FindByID(ctx, req.GroupID); err != nil {
		return lookupError(err, "Group", req.GroupID)
	}
	if _, err := s.professors.FindByID(ctx, req.ProfessorID); err != nil {
		return lookupError(err, "Professor", req.ProfessorID)
	}
	return nil
}
