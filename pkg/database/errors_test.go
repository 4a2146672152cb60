package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("create role: %w", &pq.Error{Code: "23505", Constraint: "uq_roles_name"})
	assert.True(t, IsUniqueViolation(wrapped))
	assert.Equal(t, "uq_roles_name", ConstraintName(wrapped))

	assert.True(t, IsUniqueViolation(fmt.Errorf("memstore: %w", ErrDuplicate)))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}
