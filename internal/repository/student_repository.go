package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ctp-api/internal/models"
)

const studentSelect = `SELECT s.id, u.name, u.email, s.initial_profile, s.created_at, s.updated_at FROM students s JOIN users u ON u.id = s.id`

// StudentRepository persists student profiles keyed by user id.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository instantiates a student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students joined with their account details.
func (r *StudentRepository) List(ctx context.Context, filter models.ProfileFilter) ([]models.Student, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (LOWER(u.name) LIKE $%d OR LOWER(u.email) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	size, offset := pageBounds(filter.Page, filter.PageSize)

	var students []models.Student
	query := fmt.Sprintf("%s%s ORDER BY u.name ASC LIMIT %d OFFSET %d", studentSelect, where, size, offset)
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students s JOIN users u ON u.id = s.id"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID loads a student by user id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, studentSelect+` WHERE s.id = $1`, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create registers an existing user as a student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	stamp(&student.CreatedAt, &student.UpdatedAt)
	const query = `INSERT INTO students (id, initial_profile, created_at, updated_at) VALUES (:id, :initial_profile, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies the student profile.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	stamp(nil, &student.UpdatedAt)
	const query = `UPDATE students SET initial_profile = :initial_profile, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes the student profile; the user account stays.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}
