package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
)

// course is a group with one activity, one exercise, a professor and a student.
type course struct {
	admin, professor, student string
	studentID                 string
	activity                  models.Activity
	exercise                  models.Exercise
}

func setupCourse(t *testing.T, srv *testServer) course {
	t.Helper()
	admin := srv.login(t, adminEmail, adminPassword)

	rec, env := srv.do(t, http.MethodPost, "/api/semesters", admin, map[string]interface{}{
		"code": "2024-1", "start_date": "2024-03-01T00:00:00Z", "end_date": "2024-07-01T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	semester := decode[models.Semester](t, env)

	rec, env = srv.do(t, http.MethodPost, "/api/groups", admin, map[string]string{
		"name": "G1", "course_id": "CS101", "semester_id": semester.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	group := decode[models.Group](t, env)

	rec, env = srv.do(t, http.MethodPost, "/api/users", admin, map[string]interface{}{
		"name": "Prof", "email": "prof@x.com", "password": "secret123",
		"role_ids": []string{srv.roleID(t, models.RoleProfessor)},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	profUser := decode[models.User](t, env)
	rec, _ = srv.do(t, http.MethodPost, "/api/professors", admin, map[string]string{"user_id": profUser.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	bob := srv.register(t, "Bob", "bob@x.com")
	rec, _ = srv.do(t, http.MethodPost, "/api/students", admin, map[string]string{"user_id": bob.ID, "initial_profile": "beginner"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	professor := srv.login(t, "prof@x.com", "secret123")
	rec, env = srv.do(t, http.MethodPost, "/api/activities", professor, map[string]string{
		"group_id": group.ID, "professor_id": profUser.ID, "title": "Loops",
		"start_time": "2024-03-10T09:00:00Z", "end_time": "2024-03-10T11:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	activity := decode[models.Activity](t, env)

	rec, env = srv.do(t, http.MethodPost, "/api/exercises", professor, map[string]interface{}{
		"activity_id": activity.ID, "title": "FizzBuzz", "statement": "Print 1..100",
		"difficulty": 2, "max_points": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	exercise := decode[models.Exercise](t, env)

	return course{
		admin:     admin,
		professor: professor,
		student:   srv.login(t, "bob@x.com", "secret123"),
		studentID: bob.ID,
		activity:  activity,
		exercise:  exercise,
	}
}

func TestSubmitNumbersAttempts(t *testing.T) {
	srv := newTestServer(t)
	c := setupCourse(t, srv)

	for want := 1; want <= 2; want++ {
		rec, env := srv.do(t, http.MethodPost, "/api/resolutions", c.student, map[string]string{
			"exercise_id": c.exercise.ID, "code": "print('hi')",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		res := decode[models.Resolution](t, env)
		assert.Equal(t, want, res.AttemptNo)
		assert.Equal(t, models.ResolutionStatusPending, res.Status)
		assert.Equal(t, c.studentID, res.StudentID)
	}

	rec, env := srv.do(t, http.MethodGet, "/api/resolutions?student_id="+c.studentID, c.student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, env.Pagination.TotalCount)
}

func TestSubmitUnknownExercise(t *testing.T) {
	srv := newTestServer(t)
	c := setupCourse(t, srv)

	rec, env := srv.do(t, http.MethodPost, "/api/resolutions", c.student, map[string]string{"exercise_id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Exercise not found: missing", env.Error.Message)
}

func TestGradeAndLeaderboard(t *testing.T) {
	srv := newTestServer(t)
	c := setupCourse(t, srv)

	rec, env := srv.do(t, http.MethodPost, "/api/resolutions", c.student, map[string]string{"exercise_id": c.exercise.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decode[models.Resolution](t, env)

	rec, env = srv.do(t, http.MethodPut, "/api/resolutions/"+res.ID+"/points", c.professor, map[string]int{"points": 11})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "points must be between 0 and 10", env.Error.Message)

	rec, env = srv.do(t, http.MethodPut, "/api/resolutions/"+res.ID+"/points", c.professor, map[string]int{"points": 8})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	graded := decode[models.Resolution](t, env)
	assert.Equal(t, models.ResolutionStatusCompleted, graded.Status)
	require.NotNil(t, graded.PointsAwarded)
	assert.Equal(t, 8, *graded.PointsAwarded)

	rec, env = srv.do(t, http.MethodGet, "/api/leaderboard/group/G1", c.student, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	board := decode[models.Leaderboard](t, env)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, c.studentID, board.Entries[0].StudentID)
	assert.Equal(t, 8, board.Entries[0].TotalPoints)

	rec, _ = srv.do(t, http.MethodGet, "/api/leaderboard/group/G1/export?format=csv", c.student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "leaderboard-G1.csv")
	assert.Contains(t, rec.Body.String(), "Bob")

	rec, _ = srv.do(t, http.MethodGet, "/api/leaderboard/group/G1/export?format=xml", c.student, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = srv.do(t, http.MethodGet, "/api/leaderboard/group/nope", c.student, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteResolutionRequiresPermission(t *testing.T) {
	srv := newTestServer(t)
	c := setupCourse(t, srv)

	rec, env := srv.do(t, http.MethodPost, "/api/resolutions", c.student, map[string]string{"exercise_id": c.exercise.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decode[models.Resolution](t, env)

	rec, _ = srv.do(t, http.MethodDelete, "/api/resolutions/"+res.ID, c.professor, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = srv.do(t, http.MethodDelete, "/api/resolutions/"+res.ID, c.admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = srv.do(t, http.MethodGet, "/api/resolutions/"+res.ID, c.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDomainDeleteGuards(t *testing.T) {
	srv := newTestServer(t)
	c := setupCourse(t, srv)

	rec, _ := srv.do(t, http.MethodDelete, "/api/groups/"+c.activity.GroupID, c.admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = srv.do(t, http.MethodDelete, "/api/professors/"+c.activity.ProfessorID, c.admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = srv.do(t, http.MethodPut, "/api/activities/"+c.activity.ID, c.professor, map[string]string{
		"group_id": c.activity.GroupID, "professor_id": c.activity.ProfessorID, "title": "Loops",
		"start_time": c.activity.EndTime.Format(time.RFC3339), "end_time": c.activity.StartTime.Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
