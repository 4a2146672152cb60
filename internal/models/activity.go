package models

import "time"

// ActivityStatus enumerates the lifecycle of an activity.
type ActivityStatus string

const (
	ActivityStatusPending   ActivityStatus = "PENDING"
	ActivityStatusActive    ActivityStatus = "ACTIVE"
	ActivityStatusCompleted ActivityStatus = "COMPLETED"
	ActivityStatusCancelled ActivityStatus = "CANCELLED"
)

// Activity is a timed set of exercises run by a professor for a group.
type Activity struct {
	ID          string         `db:"id" json:"id"`
	GroupID     string         `db:"group_id" json:"group_id"`
	ProfessorID string         `db:"professor_id" json:"professor_id"`
	Title       string         `db:"title" json:"title"`
	StartTime   time.Time      `db:"start_time" json:"start_time"`
	EndTime     time.Time      `db:"end_time" json:"end_time"`
	Status      ActivityStatus `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// ActivityFilter defines filters supported by list endpoints.
type ActivityFilter struct {
	GroupID     string
	ProfessorID string
	Status      ActivityStatus
	Page        int
	PageSize    int
}
