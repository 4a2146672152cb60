package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

func TestSemesterServiceRejectsInvertedDates(t *testing.T) {
	d := newDomain(t, ResolutionDeps{})
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := d.semesters.Create(context.Background(), SemesterRequest{Code: "2024-1", StartDate: start, EndDate: start})
	appErr := requireCode(t, err, appErrors.ErrValidation)
	assert.Equal(t, "start_date must be before end_date", appErr.Message)
}

func TestSemesterServiceDuplicateCodeAndDeleteGuard(t *testing.T) {
	d := newDomain(t, ResolutionDeps{})
	ctx := context.Background()
	group := d.group(t, "G1")

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := d.semesters.Create(ctx, SemesterRequest{Code: "S-G1", StartDate: start, EndDate: start.AddDate(0, 1, 0)})
	requireCode(t, err, appErrors.ErrConflict)

	err = d.semesters.Delete(ctx, group.SemesterID)
	appErr := requireCode(t, err, appErrors.ErrConflict)
	assert.Contains(t, appErr.Message, "still has 1 group(s)")
}

func TestGroupServiceRequiresSemesterAndUniqueName(t *testing.T) {
	d := newDomain(t, ResolutionDeps{})
	ctx := context.Background()

	_, err := d.groups.Create(ctx, GroupRequest{Name: "G1", CourseID: "CS101", SemesterID: "sem-missing"})
	appErr := requireCode(t, err, appErrors.ErrNotFound)
	assert.Equal(t, "Semester not found: sem-missing", appErr.Message)

	group := d.group(t, "G1")
	_, err = d.groups.Create(ctx, GroupRequest{Name: "G1", CourseID: "CS102", SemesterID: group.SemesterID})
	requireCode(t, err, appErrors.ErrConflict)

	byName, err := d.groups.GetByName(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, group.ID, byName.ID)
}

func TestGroupServiceDeleteBlockedByActivities(t *testing.T) {
	d := newDomain(t, ResolutionDeps{})
	group := d.group(t, "G1")
	_, prof := d.professor(t, "prof@x.com")
	d.activity(t, group.ID, prof.ID)

	err := d.groups.Delete(context.Background(), group.ID)
	appErr := requireCode(t, err, appErrors.ErrConflict)
	assert.Contains(t, appErr.Message, "still has 1 activities")
}

func TestProfessorServiceLifecycle(t *testing.T) {
	d := newDomain(t, ResolutionDeps{})
	ctx := context.Background()

	_, err := d.professors.Create(ctx, ProfessorRequest{UserID: "u-missing"})
	requireCode(t, err, appErrors.ErrNotFound)

	user, prof := d.professor(t, "prof@x.com")
	assert.Equal(t, user.ID, prof.ID)
	assert.Equal(t, "prof@x.com", prof.Email)

	_, err = d.professors.Create(ctx, ProfessorRequest{UserID: user.ID})
	requireCode(t, err, appErrors.ErrConflict)

	group := d.group(t, "G1")
	act := d.activity(t, group.ID, prof.ID)
	requireCode(t, d.professors.Delete(ctx, prof.ID), appErrors.ErrConflict)

	require.NoError(t, d.activities.Delete(ctx, act.ID))
	require.NoError(t, d.professors.Delete(ctx, prof.ID))
	_, err = d.users.Get(ctx, user.ID)
	require.NoError(t, err)
}

func TestStudentServiceUpdateProfile(t *testing.T) {
	d := newDomain(t, ResolutionDeps{})
	ctx := context.Background()
	_, st := d.student(t, "stu@x.com")

	updated, err := d.students.Update(ctx, st.ID, UpdateStudentRequest{InitialProfile: "  likes graphs "})
	require.NoError(t, err)
	assert.Equal(t, "likes graphs", updated.InitialProfile)

	items, page, err := d.students.List(ctx, models.ProfileFilter{Search: "stu@"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, page.TotalCount)

	require.NoError(t, d.students.Delete(ctx, st.ID))
	_, err = d.students.Get(ctx, st.ID)
	requireCode(t, err, appErrors.ErrNotFound)
}

func TestActivityServiceValidation(t *testing.T) {
	d := newDomain(t, ResolutionDeps{})
	ctx := context.Background()
	group := d.group(t, "G1")
	_, prof := d.professor(t, "prof@x.com")
	start := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	_, err := d.activities.Create(ctx, ActivityRequest{GroupID: group.ID, ProfessorID: prof.ID, Title: "Lab", StartTime: start, EndTime: start.Add(-time.Hour)})
	requireCode(t, err, appErrors.ErrValidation)

	_, err = d.activities.Create(ctx, ActivityRequest{GroupID: group.ID, ProfessorID: "p-missing", Title: "Lab", StartTime: start, EndTime: start.Add(time.Hour)})
	appErr := requireCode(t, err, appErrors.ErrNotFound)
	assert.Equal(t, "Professor not found: p-missing", appErr.Message)

	_, err = d.activities.Create(ctx, ActivityRequest{GroupID: group.ID, ProfessorID: prof.ID, Title: "Lab", StartTime: start, EndTime: start.Add(time.Hour), Status: "DONE"})
	requireCode(t, err, appErrors.ErrValidation)

	act := d.activity(t, group.ID, prof.ID)
	assert.Equal(t, models.ActivityStatusPending, act.Status)
}

func TestExerciseServiceActivityIsOptional(t *testing.T) {
	d := newDomain(t, ResolutionDeps{})
	ctx := context.Background()

	standalone := d.exercise(t, nil, 10)
	assert.Nil(t, standalone.ActivityID)

	missing := "act-missing"
	_, err := d.exercises.Create(ctx, ExerciseRequest{ActivityID: &missing, Title: "X", Statement: "Y", Difficulty: 1, MaxPoints: 5})
	requireCode(t, err, appErrors.ErrNotFound)

	_, err = d.exercises.Create(ctx, ExerciseRequest{Title: "X", Statement: "Y", Difficulty: 11, MaxPoints: 5})
	requireCode(t, err, appErrors.ErrValidation)
}
