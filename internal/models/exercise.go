package models

import "time"

// Exercise is a gradable problem, optionally attached to an activity.
type Exercise struct {
	ID         string    `db:"id" json:"id"`
	ActivityID *string   `db:"activity_id" json:"activity_id,omitempty"`
	Title      string    `db:"title" json:"title"`
	Statement  string    `db:"statement" json:"statement"`
	Difficulty int       `db:"difficulty" json:"difficulty"`
	MaxPoints  int       `db:"max_points" json:"max_points"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ExerciseFilter defines filters supported by list endpoints.
type ExerciseFilter struct {
	ActivityID string
	Page       int
	PageSize   int
}
