package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied statement by statement; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS permissions (
		id UUID PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_permissions_name UNIQUE (name)
	)`,
	`CREATE TABLE IF NOT EXISTS roles (
		id UUID PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_roles_name UNIQUE (name)
	)`,
	`CREATE TABLE IF NOT EXISTS role_permissions (
		role_id UUID NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		permission_id UUID NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
		PRIMARY KEY (role_id, permission_id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash TEXT NOT NULL,
		photo_url TEXT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_users_email UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS user_roles (
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role_id UUID NOT NULL REFERENCES roles(id) ON DELETE RESTRICT,
		PRIMARY KEY (user_id, role_id)
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at TIMESTAMPTZ NULL,
		ip_address VARCHAR(64) NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		user_id UUID NULL,
		action VARCHAR(64) NOT NULL,
		resource VARCHAR(64) NOT NULL,
		resource_id VARCHAR(64) NULL,
		old_values JSONB NULL,
		new_values JSONB NULL,
		ip_address VARCHAR(64) NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS semesters (
		id UUID PRIMARY KEY,
		code VARCHAR(32) NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_semesters_code UNIQUE (code)
	)`,
	`CREATE TABLE IF NOT EXISTS groups (
		id UUID PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		course_id VARCHAR(64) NOT NULL,
		semester_id UUID NOT NULL REFERENCES semesters(id) ON DELETE RESTRICT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_groups_name UNIQUE (name)
	)`,
	`CREATE TABLE IF NOT EXISTS professors (
		id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		initial_profile TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS activities (
		id UUID PRIMARY KEY,
		group_id UUID NOT NULL REFERENCES groups(id) ON DELETE RESTRICT,
		professor_id UUID NOT NULL REFERENCES professors(id) ON DELETE RESTRICT,
		title VARCHAR(200) NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS exercises (
		id UUID PRIMARY KEY,
		activity_id UUID NULL REFERENCES activities(id) ON DELETE CASCADE,
		title VARCHAR(200) NOT NULL,
		statement TEXT NOT NULL,
		difficulty SMALLINT NOT NULL CHECK (difficulty BETWEEN 1 AND 10),
		max_points INTEGER NOT NULL CHECK (max_points >= 1),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS resolutions (
		id UUID PRIMARY KEY,
		student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		exercise_id UUID NOT NULL REFERENCES exercises(id) ON DELETE CASCADE,
		points_awarded INTEGER NULL,
		awarded_by UUID NULL REFERENCES professors(id) ON DELETE SET NULL,
		status VARCHAR(16) NOT NULL,
		attempt_no INTEGER NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL,
		graded_at TIMESTAMPTZ NULL,
		code TEXT NOT NULL DEFAULT '',
		CONSTRAINT uq_resolutions_attempt UNIQUE (student_id, exercise_id, attempt_no)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_resolutions_exercise_status ON resolutions (exercise_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_group ON activities (group_id)`,
	`CREATE INDEX IF NOT EXISTS idx_exercises_activity ON exercises (activity_id)`,
}

// Migrate creates the relational schema when missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
