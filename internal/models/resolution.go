package models

import "time"

// ResolutionStatus is PENDING until a professor grades the submission.
type ResolutionStatus string

const (
	ResolutionStatusPending   ResolutionStatus = "PENDING"
	ResolutionStatusCompleted ResolutionStatus = "COMPLETED"
)

// Resolution is a student's submission for an exercise.
type Resolution struct {
	ID            string           `db:"id" json:"id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	ExerciseID    string           `db:"exercise_id" json:"exercise_id"`
	PointsAwarded *int             `db:"points_awarded" json:"points_awarded"`
	AwardedBy     *string          `db:"awarded_by" json:"awarded_by"`
	Status        ResolutionStatus `db:"status" json:"status"`
	AttemptNo     int              `db:"attempt_no" json:"attempt_no"`
	SubmittedAt   time.Time        `db:"submitted_at" json:"submitted_at"`
	GradedAt      *time.Time       `db:"graded_at" json:"graded_at,omitempty"`
	Code          string           `db:"code" json:"code"`
}

// ResolutionFilter defines filters supported by list endpoints.
type ResolutionFilter struct {
	StudentID  string
	ExerciseID string
	Status     ResolutionStatus
	Page       int
	PageSize   int
}
