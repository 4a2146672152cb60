package models

import "time"

// StudentScore is the aggregated COMPLETED points of one student.
type StudentScore struct {
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	TotalPoints int    `db:"total_points" json:"total_points"`
}

// Leaderboard is the ranked top of a group.
type Leaderboard struct {
	GroupID     string         `json:"group_id"`
	GroupName   string         `json:"group_name"`
	Entries     []StudentScore `json:"entries"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// ScoreboardUpdate is broadcast to live subscribers of an activity.
type ScoreboardUpdate struct {
	ActivityID  string         `json:"activity_id"`
	Entries     []StudentScore `json:"entries"`
	GeneratedAt time.Time      `json:"generated_at"`
}
