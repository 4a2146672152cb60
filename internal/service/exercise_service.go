package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

type exerciseRepository interface {
	List(ctx context.Context, filter models.ExerciseFilter) ([]models.Exercise, int, error)
	FindByID(ctx context.Context, id string) (*models.Exercise, error)
	Create(ctx context.Context, exercise *models.Exercise) error
	Update(ctx context.Context, exercise *models.Exercise) error
	Delete(ctx context.Context, id string) error
}

type activityFinder interface {
	FindByID(ctx context.Context, id string) (*models.Activity, error)
}

// ExerciseRequest describes payload for creating or updating exercises.
type ExerciseRequest struct {
	ActivityID *string `json:"activity_id"`
	Title      string  `json:"title" validate:"required,max=200"`
	Statement  string  `json:"statement" validate:"required"`
	Difficulty int     `json:"difficulty" validate:"required,min=1,max=10"`
	MaxPoints  int     `json:"max_points" validate:"required,min=1"`
}

// ExerciseService manages exercises.
type ExerciseService struct {
	repo       exerciseRepository
	activities activityFinder
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewExerciseService creates an exercise service.
func NewExerciseService(repo exerciseRepository, activities activityFinder, validate *validator.Validate, logger *zap.Logger) *ExerciseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExerciseService{repo: repo, activities: activities, validator: validate, logger: logger}
}

// List returns paginated exercises in creation order.
func (s *ExerciseService) List(ctx context.Context, filter models.ExerciseFilter) ([]models.Exercise, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list exercises")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns an exercise by ID.
func (s *ExerciseService) Get(ctx context.Context, id string) (*models.Exercise, error) {
	exercise, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Exercise", id)
	}
	return exercise, nil
}

// Create adds an exercise, optionally inside an activity.
func (s *ExerciseService) Create(ctx context.Context, req ExerciseRequest) (*models.Exercise, error) {
	activityID, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}
	exercise := &models.Exercise{
		ActivityID: activityID,
		Title:      strings.TrimSpace(req.Title),
		Statement:  req.Statement,
		Difficulty: req.Difficulty,
		MaxPoints:  req.MaxPoints,
	}
	if err := s.repo.Create(ctx, exercise); err != nil {
		return nil, appErrors.Internal(err, "failed to create exercise")
	}
	return exercise, nil
}

// Update modifies an exercise.
func (s *ExerciseService) Update(ctx context.Context, id string, req ExerciseRequest) (*models.Exercise, error) {
	activityID, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}
	exercise, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exercise.ActivityID = activityID
	exercise.Title = strings.TrimSpace(req.Title)
	exercise.Statement = req.Statement
	exercise.Difficulty = req.Difficulty
	exercise.MaxPoints = req.MaxPoints
	if err := s.repo.Update(ctx, exercise); err != nil {
		return nil, appErrors.Internal(err, "failed to update exercise")
	}
	return exercise, nil
}

// Delete removes an exercise and its resolutions.
func (s *ExerciseService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete exercise")
	}
	return nil
}

// validate checks the payload and returns the normalised activity reference.
func (s *ExerciseService) validate(ctx context.Context, req ExerciseRequest) (*string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid exercise payload")
	}
	if req.ActivityID == nil || strings.TrimSpace(*req.ActivityID) == "" {
		return nil, nil
	}
	id := strings.TrimSpace(*req.ActivityID)
	if _, err := s.activities.FindByID(ctx, id); err != nil {
		return nil, lookupError(err, "Activity", id)
	}
	return &id, nil
}
