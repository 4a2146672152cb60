package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ctp-api/internal/models"
)

const exerciseColumns = `id, activity_id, title, statement, difficulty, max_points, created_at, updated_at`

// ExerciseRepository handles persistence for exercises.
type ExerciseRepository struct {
	db *sqlx.DB
}

// NewExerciseRepository instantiates an exercise repository.
func NewExerciseRepository(db *sqlx.DB) *ExerciseRepository {
	return &ExerciseRepository{db: db}
}

// List returns exercises, optionally scoped to one activity.
func (r *ExerciseRepository) List(ctx context.Context, filter models.ExerciseFilter) ([]models.Exercise, int, error) {
	base := "FROM exercises WHERE 1=1"
	var args []interface{}
	if filter.ActivityID != "" {
		base += fmt.Sprintf(" AND activity_id = $%d", len(args)+1)
		args = append(args, filter.ActivityID)
	}
	size, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at ASC LIMIT %d OFFSET %d", exerciseColumns, base, size, offset)
	var exercises []models.Exercise
	if err := r.db.SelectContext(ctx, &exercises, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list exercises: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count exercises: %w", err)
	}
	return exercises, total, nil
}

// FindByID loads an exercise by identifier.
func (r *ExerciseRepository) FindByID(ctx context.Context, id string) (*models.Exercise, error) {
	var exercise models.Exercise
	if err := r.db.GetContext(ctx, &exercise, `SELECT `+exerciseColumns+` FROM exercises WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &exercise, nil
}

// Create inserts a new exercise.
func (r *ExerciseRepository) Create(ctx context.Context, exercise *models.Exercise) error {
	if exercise.ID == "" {
		exercise.ID = uuid.NewString()
	}
	stamp(&exercise.CreatedAt, &exercise.UpdatedAt)
	const query = `INSERT INTO exercises (id, activity_id, title, statement, difficulty, max_points, created_at, updated_at) VALUES (:id, :activity_id, :title, :statement, :difficulty, :max_points, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exercise); err != nil {
		return fmt.Errorf("create exercise: %w", err)
	}
	return nil
}

// Update modifies an existing exercise.
func (r *ExerciseRepository) Update(ctx context.Context, exercise *models.Exercise) error {
	stamp(nil, &exercise.UpdatedAt)
	const query = `UPDATE exercises SET activity_id = :activity_id, title = :title, statement = :statement, difficulty = :difficulty, max_points = :max_points, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, exercise); err != nil {
		return fmt.Errorf("update exercise: %w", err)
	}
	return nil
}

// Delete removes an exercise; its resolutions cascade.
func (r *ExerciseRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM exercises WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete exercise: %w", err)
	}
	return nil
}
