package models

import "time"

// Group is a course section within a semester.
type Group struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	CourseID   string    `db:"course_id" json:"course_id"`
	SemesterID string    `db:"semester_id" json:"semester_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// GroupFilter defines filters supported by list endpoints.
type GroupFilter struct {
	SemesterID string
	CourseID   string
	Page       int
	PageSize   int
}
