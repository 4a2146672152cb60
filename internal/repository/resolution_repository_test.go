package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/pkg/database"
)

func TestCreateNextAttemptReturnsAttemptNumber(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResolutionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT $1, $2, $3, $4, COALESCE(MAX(attempt_no), 0) + 1, $5, $6 FROM resolutions WHERE student_id = $2 AND exercise_id = $3")).
		WithArgs(sqlmock.AnyArg(), "s1", "e1", models.ResolutionStatusPending, sqlmock.AnyArg(), "").
		WillReturnRows(sqlmock.NewRows([]string{"attempt_no"}).AddRow(2))

	res := &models.Resolution{StudentID: "s1", ExerciseID: "e1"}
	require.NoError(t, repo.CreateNextAttempt(context.Background(), res))
	assert.Equal(t, 2, res.AttemptNo)
	assert.Equal(t, models.ResolutionStatusPending, res.Status)
	assert.Nil(t, res.PointsAwarded)
	assert.NotEmpty(t, res.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateNextAttemptNumbersPastDeletedAttempts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResolutionRepository(db)

	numbered := regexp.QuoteMeta("COALESCE(MAX(attempt_no), 0) + 1")
	mock.ExpectQuery(numbered).WillReturnRows(sqlmock.NewRows([]string{"attempt_no"}).AddRow(1))
	mock.ExpectQuery(numbered).WillReturnRows(sqlmock.NewRows([]string{"attempt_no"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM resolutions WHERE id = $1")).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(numbered).WillReturnRows(sqlmock.NewRows([]string{"attempt_no"}).AddRow(3))

	ctx := context.Background()
	first := &models.Resolution{ID: "r1", StudentID: "s1", ExerciseID: "e1"}
	require.NoError(t, repo.CreateNextAttempt(ctx, first))
	require.NoError(t, repo.CreateNextAttempt(ctx, &models.Resolution{StudentID: "s1", ExerciseID: "e1"}))
	require.NoError(t, repo.Delete(ctx, "r1"))
	third := &models.Resolution{StudentID: "s1", ExerciseID: "e1"}
	require.NoError(t, repo.CreateNextAttempt(ctx, third))

	assert.Equal(t, 3, third.AttemptNo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateNextAttemptSurfacesUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResolutionRepository(db)

	mock.ExpectQuery("INSERT INTO resolutions").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_resolutions_attempt"})

	err := repo.CreateNextAttempt(context.Background(), &models.Resolution{StudentID: "s1", ExerciseID: "e1"})
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
	assert.Equal(t, "uq_resolutions_attempt", database.ConstraintName(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignPointsMarksCompleted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResolutionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE resolutions SET points_awarded = $2, awarded_by = $3, status = $4, graded_at = $5 WHERE id = $1")).
		WithArgs("res1", 7, "prof1", models.ResolutionStatusCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AssignPoints(context.Background(), "res1", 7, "prof1", nowUTC()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupScoresAggregatesCompleted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResolutionRepository(db)

	mock.ExpectQuery("WHERE a.group_id = \\$1 AND r.status = \\$2 GROUP BY r.student_id, u.name").
		WithArgs("g1", models.ResolutionStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "student_name", "total_points"}).
			AddRow("s1", "Ann", 10).
			AddRow("s2", "Ben", 25))

	scores, err := repo.GroupScores(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, 25, scores[1].TotalPoints)
	assert.NoError(t, mock.ExpectationsWereMet())
}
