package models

import "time"

// Student extends a user; ID is the user's id.
type Student struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	InitialProfile string    `db:"initial_profile" json:"initial_profile"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ProfileFilter is shared by professor and student listings.
type ProfileFilter struct {
	Search   string
	Page     int
	PageSize int
}
