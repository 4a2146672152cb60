package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/authz"
	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/pkg/database"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/export"
)

const (
	submitAttempts          = 3
	leaderboardCachePattern = "leaderboard:group:*"
)

type resolutionRepository interface {
	List(ctx context.Context, filter models.ResolutionFilter) ([]models.Resolution, int, error)
	FindByID(ctx context.Context, id string) (*models.Resolution, error)
	CreateNextAttempt(ctx context.Context, resolution *models.Resolution) error
	AssignPoints(ctx context.Context, id string, points int, awardedBy string, gradedAt time.Time) error
	Delete(ctx context.Context, id string) error
	GroupScores(ctx context.Context, groupID string) ([]models.StudentScore, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type exerciseFinder interface {
	FindByID(ctx context.Context, id string) (*models.Exercise, error)
}

type groupNameFinder interface {
	FindByName(ctx context.Context, name string) (*models.Group, error)
}

type scoreboardNotifier interface {
	Notify(ctx context.Context, activityID string)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// SubmitResolutionRequest is a student's submission. StudentID defaults to the caller.
type SubmitResolutionRequest struct {
	StudentID  string  `json:"student_id"`
	ExerciseID string  `json:"exercise_id" validate:"required"`
	Code       *string `json:"code"`
}

// AssignPointsRequest grades a resolution. ProfessorID defaults to the caller.
type AssignPointsRequest struct {
	Points      *int   `json:"points" validate:"required,min=0"`
	ProfessorID string `json:"professor_id"`
}

// LeaderboardConfig sizes and caches the group leaderboard.
type LeaderboardConfig struct {
	Size     int
	CacheTTL time.Duration
}

// ExportFile is a rendered leaderboard export.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ResolutionDeps groups the collaborators of ResolutionService.
type ResolutionDeps struct {
	Students   studentFinder
	Exercises  exerciseFinder
	Professors professorFinder
	Groups     groupNameFinder
	Audit      auditWriter
	Cache      *CacheService
	Metrics    *MetricsService
	Scoreboard scoreboardNotifier
}

// ResolutionService runs the submission and grading workflow and derives leaderboards.
type ResolutionService struct {
	repo      resolutionRepository
	deps      ResolutionDeps
	config    LeaderboardConfig
	renderers map[export.Format]datasetRenderer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewResolutionService creates a resolution service.
func NewResolutionService(repo resolutionRepository, deps ResolutionDeps, config LeaderboardConfig, validate *validator.Validate, logger *zap.Logger) *ResolutionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Size <= 0 {
		config.Size = 5
	}
	return &ResolutionService{
		repo:   repo,
		deps:   deps,
		config: config,
		renderers: map[export.Format]datasetRenderer{
			export.FormatCSV: export.NewCSVExporter(),
			export.FormatPDF: export.NewPDFExporter(),
		},
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns paginated resolutions, newest first.
func (s *ResolutionService) List(ctx context.Context, filter models.ResolutionFilter) ([]models.Resolution, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list resolutions")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a resolution by ID.
func (s *ResolutionService) Get(ctx context.Context, id string) (*models.Resolution, error) {
	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Resolution", id)
	}
	return res, nil
}

// Submit stores the next attempt of a student for an exercise in PENDING state.
func (s *ResolutionService) Submit(ctx context.Context, principal *authz.Principal, req SubmitResolutionRequest) (*models.Resolution, error) {
	if principal == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid resolution payload")
	}

	studentID := req.StudentID
	if studentID == "" {
		studentID = principal.UserID
	}
	if studentID != principal.UserID && !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot submit on behalf of another student")
	}
	if _, err := s.deps.Students.FindByID(ctx, studentID); err != nil {
		return nil, lookupError(err, "Student", studentID)
	}
	if _, err := s.deps.Exercises.FindByID(ctx, req.ExerciseID); err != nil {
		return nil, lookupError(err, "Exercise", req.ExerciseID)
	}

	code := ""
	if req.Code != nil {
		code = *req.Code
	}

	for attempt := 1; attempt <= submitAttempts; attempt++ {
		res := &models.Resolution{
			StudentID:   studentID,
			ExerciseID:  req.ExerciseID,
			Code:        code,
			SubmittedAt: s.now(),
		}
		err := s.repo.CreateNextAttempt(ctx, res)
		if err == nil {
			s.deps.Metrics.IncSubmission()
			s.logger.Info("resolution submitted",
				zap.String("resolution_id", res.ID),
				zap.String("student_id", studentID),
				zap.String("exercise_id", req.ExerciseID),
				zap.Int("attempt_no", res.AttemptNo))
			return res, nil
		}
		if !database.IsUniqueViolation(err) {
			return nil, appErrors.Internal(err, "failed to submit resolution")
		}
		s.logger.Debug("attempt number taken, retrying", zap.Int("try", attempt), zap.String("student_id", studentID))
	}
	return nil, appErrors.Conflict("concurrent submissions for exercise %s, please retry", req.ExerciseID)
}

// AssignPoints grades a resolution, marking it COMPLETED. Re-grading is allowed.
func (s *ResolutionService) AssignPoints(ctx context.Context, principal *authz.Principal, id string, req AssignPointsRequest) (*models.Resolution, error) {
	if principal == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid points payload")
	}

	res, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exercise, err := s.deps.Exercises.FindByID(ctx, res.ExerciseID)
	if err != nil {
		return nil, lookupError(err, "Exercise", res.ExerciseID)
	}
	points := *req.Points
	if points > exercise.MaxPoints {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("points must be between 0 and %d", exercise.MaxPoints))
	}

	professorID := req.ProfessorID
	if professorID == "" {
		professorID = principal.UserID
	}
	if _, err := s.deps.Professors.FindByID(ctx, professorID); err != nil {
		return nil, lookupError(err, "Professor", professorID)
	}

	if res.Status == models.ResolutionStatusCompleted {
		s.logger.Warn("re-grading completed resolution",
			zap.String("resolution_id", res.ID),
			zap.Intp("previous_points", res.PointsAwarded),
			zap.Int("points", points))
	}
	before := *res

	gradedAt := s.now()
	if err := s.repo.AssignPoints(ctx, res.ID, points, professorID, gradedAt); err != nil {
		return nil, appErrors.Internal(err, "failed to assign points")
	}
	res.PointsAwarded = &points
	res.AwardedBy = &professorID
	res.GradedAt = &gradedAt
	res.Status = models.ResolutionStatusCompleted

	s.deps.Metrics.IncGrade()
	s.deps.Cache.Invalidate(ctx, leaderboardCachePattern)
	if exercise.ActivityID != nil && s.deps.Scoreboard != nil {
		s.deps.Scoreboard.Notify(ctx, *exercise.ActivityID)
	}
	writeAudit(ctx, s.deps.Audit, s.logger, &models.AuditActor{UserID: principal.UserID}, models.AuditActionResolutionGrade, "resolutions", res.ID, before, res)
	return res, nil
}

// Delete removes a resolution.
func (s *ResolutionService) Delete(ctx context.Context, id string) error {
	res, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete resolution")
	}
	if res.Status == models.ResolutionStatusCompleted {
		s.deps.Cache.Invalidate(ctx, leaderboardCachePattern)
	}
	return nil
}

// Leaderboard ranks the group's students by COMPLETED points, keeping the top entries.
// Equal totals keep first-submission order.
func (s *ResolutionService) Leaderboard(ctx context.Context, groupName string) (*models.Leaderboard, error) {
	group, err := s.deps.Groups.FindByName(ctx, groupName)
	if err != nil {
		return nil, lookupError(err, "Group", groupName)
	}

	key := "leaderboard:group:" + group.Name
	var cached models.Leaderboard
	if s.deps.Cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	start := time.Now()
	scores, err := s.repo.GroupScores(ctx, group.ID)
	s.deps.Metrics.ObserveDBQuery("group_scores", time.Since(start))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to compute leaderboard")
	}

	board := &models.Leaderboard{
		GroupID:     group.ID,
		GroupName:   group.Name,
		Entries:     RankScores(scores, s.config.Size),
		GeneratedAt: s.now(),
	}
	s.deps.Cache.Set(ctx, key, board, s.config.CacheTTL)
	return board, nil
}

// Export renders the group leaderboard as csv or pdf.
func (s *ResolutionService) Export(ctx context.Context, groupName, rawFormat string) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Validation(err, "unsupported export format")
	}
	board, err := s.Leaderboard(ctx, groupName)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(board.Entries))
	for i, e := range board.Entries {
		rows = append(rows, []string{strconv.Itoa(i + 1), e.StudentID, e.StudentName, strconv.Itoa(e.TotalPoints)})
	}
	content, err := s.renderers[format].Render(export.Dataset{
		Title:       "Leaderboard " + board.GroupName,
		Headers:     []string{"Rank", "Student ID", "Student", "Points"},
		Rows:        rows,
		GeneratedAt: board.GeneratedAt,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render leaderboard export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("leaderboard-%s.%s", board.GroupName, format),
		ContentType: format.ContentType(),
		Content:     content,
	}, nil
}

// RankScores sorts by total points descending, keeping input order for ties, and keeps the top n.
func RankScores(scores []models.StudentScore, n int) []models.StudentScore {
	ranked := make([]models.StudentScore, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalPoints > ranked[j].TotalPoints
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
