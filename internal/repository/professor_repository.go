package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ctp-api/internal/models"
)

const professorSelect = `SELECT p.id, u.name, u.email, p.created_at FROM professors p JOIN users u ON u.id = p.id`

// ProfessorRepository persists professor profiles keyed by user id.
type ProfessorRepository struct {
	db *sqlx.DB
}

// NewProfessorRepository instantiates a professor repository.
func NewProfessorRepository(db *sqlx.DB) *ProfessorRepository {
	return &ProfessorRepository{db: db}
}

// List returns professors joined with their account details.
func (r *ProfessorRepository) List(ctx context.Context, filter models.ProfileFilter) ([]models.Professor, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (LOWER(u.name) LIKE $%d OR LOWER(u.email) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	size, offset := pageBounds(filter.Page, filter.PageSize)

	var professors []models.Professor
	query := fmt.Sprintf("%s%s ORDER BY u.name ASC LIMIT %d OFFSET %d", professorSelect, where, size, offset)
	if err := r.db.SelectContext(ctx, &professors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list professors: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM professors p JOIN users u ON u.id = p.id"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count professors: %w", err)
	}
	return professors, total, nil
}

// FindByID loads a professor by user id.
func (r *ProfessorRepository) FindByID(ctx context.Context, id string) (*models.Professor, error) {
	var professor models.Professor
	if err := r.db.GetContext(ctx, &professor, professorSelect+` WHERE p.id = $1`, id); err != nil {
		return nil, err
	}
	return &professor, nil
}

// Create registers an existing user as a professor.
func (r *ProfessorRepository) Create(ctx context.Context, professor *models.Professor) error {
	if professor.CreatedAt.IsZero() {
		professor.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.ExecContext(ctx, `INSERT INTO professors (id, created_at) VALUES ($1, $2)`, professor.ID, professor.CreatedAt); err != nil {
		return fmt.Errorf("create professor: %w", err)
	}
	return nil
}

// Delete removes the professor profile; the user account stays.
func (r *ProfessorRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM professors WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete professor: %w", err)
	}
	return nil
}
