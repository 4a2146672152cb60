package database

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate is returned by non-SQL stores for unique constraint clashes.
var ErrDuplicate = errors.New("duplicate key")

const pqUniqueViolation = "23505"

// IsUniqueViolation reports a unique constraint failure from PostgreSQL or an in-memory store.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	return false
}

// ConstraintName returns the violated constraint for PostgreSQL errors.
func ConstraintName(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}
