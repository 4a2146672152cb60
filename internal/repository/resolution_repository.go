package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ctp-api/internal/models"
)

const resolutionColumns = `id, student_id, exercise_id, points_awarded, awarded_by, status, attempt_no, submitted_at, graded_at, code`

// ResolutionRepository handles persistence for exercise submissions and score aggregation.
type ResolutionRepository struct {
	db *sqlx.DB
}

// NewResolutionRepository instantiates a resolution repository.
func NewResolutionRepository(db *sqlx.DB) *ResolutionRepository {
	return &ResolutionRepository{db: db}
}

// List returns resolutions matching provided filters, latest submission first.
func (r *ResolutionRepository) List(ctx context.Context, filter models.ResolutionFilter) ([]models.Resolution, int, error) {
	base := "FROM resolutions WHERE 1=1"
	var conditions []string
	var args []interface{}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ExerciseID != "" {
		conditions = append(conditions, fmt.Sprintf("exercise_id = $%d", len(args)+1))
		args = append(args, filter.ExerciseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}
	size, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY submitted_at DESC LIMIT %d OFFSET %d", resolutionColumns, base, size, offset)
	var resolutions []models.Resolution
	if err := r.db.SelectContext(ctx, &resolutions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list resolutions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count resolutions: %w", err)
	}
	return resolutions, total, nil
}

// FindByID loads a resolution by identifier.
func (r *ResolutionRepository) FindByID(ctx context.Context, id string) (*models.Resolution, error) {
	var resolution models.Resolution
	if err := r.db.GetContext(ctx, &resolution, `SELECT `+resolutionColumns+` FROM resolutions WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &resolution, nil
}

// CreateNextAttempt inserts a PENDING resolution numbered one past the student's highest
// attempt for the exercise. Concurrent callers racing on the same number hit
// uq_resolutions_attempt and must retry.
func (r *ResolutionRepository) CreateNextAttempt(ctx context.Context, resolution *models.Resolution) error {
	if resolution.ID == "" {
		resolution.ID = uuid.NewString()
	}
	if resolution.SubmittedAt.IsZero() {
		resolution.SubmittedAt = time.Now().UTC()
	}
	resolution.Status = models.ResolutionStatusPending
	resolution.PointsAwarded = nil
	resolution.AwardedBy = nil
	resolution.GradedAt = nil

	const query = `INSERT INTO resolutions (id, student_id, exercise_id, status, attempt_no, submitted_at, code)
		SELECT $1, $2, $3, $4, COALESCE(MAX(attempt_no), 0) + 1, $5, $6 FROM resolutions WHERE student_id = $2 AND exercise_id = $3
		RETURNING attempt_no`
	row := r.db.QueryRowxContext(ctx, query, resolution.ID, resolution.StudentID, resolution.ExerciseID, resolution.Status, resolution.SubmittedAt, resolution.Code)
	if err := row.Scan(&resolution.AttemptNo); err != nil {
		return fmt.Errorf("create resolution: %w", err)
	}
	return nil
}

// AssignPoints grades a resolution and marks it COMPLETED.
func (r *ResolutionRepository) AssignPoints(ctx context.Context, id string, points int, awardedBy string, gradedAt time.Time) error {
	const query = `UPDATE resolutions SET points_awarded = $2, awarded_by = $3, status = $4, graded_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, points, awardedBy, models.ResolutionStatusCompleted, gradedAt); err != nil {
		return fmt.Errorf("assign resolution points: %w", err)
	}
	return nil
}

// Delete removes a resolution permanently.
func (r *ResolutionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM resolutions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete resolution: %w", err)
	}
	return nil
}

const scoreSelect = `SELECT r.student_id, u.name AS student_name, COALESCE(SUM(r.points_awarded), 0) AS total_points
	FROM resolutions r
	JOIN exercises e ON e.id = r.exercise_id
	JOIN activities a ON a.id = e.activity_id
	JOIN users u ON u.id = r.student_id`

// GroupScores sums COMPLETED points per student across the group's activities.
// Rows come back in order of each student's first submission; ranking happens in the service.
func (r *ResolutionRepository) GroupScores(ctx context.Context, groupID string) ([]models.StudentScore, error) {
	query := scoreSelect + ` WHERE a.group_id = $1 AND r.status = $2 GROUP BY r.student_id, u.name ORDER BY MIN(r.submitted_at) ASC`
	var scores []models.StudentScore
	if err := r.db.SelectContext(ctx, &scores, query, groupID, models.ResolutionStatusCompleted); err != nil {
		return nil, fmt.Errorf("aggregate group scores: %w", err)
	}
	return scores, nil
}

// ActivityScores sums COMPLETED points per student within one activity.
func (r *ResolutionRepository) ActivityScores(ctx context.Context, activityID string) ([]models.StudentScore, error) {
	query := scoreSelect + ` WHERE a.id = $1 AND r.status = $2 GROUP BY r.student_id, u.name ORDER BY MIN(r.submitted_at) ASC`
	var scores []models.StudentScore
	if err := r.db.SelectContext(ctx, &scores, query, activityID, models.ResolutionStatusCompleted); err != nil {
		return nil, fmt.Errorf("aggregate activity scores: %w", err)
	}
	return scores, nil
}
