package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
)

// domain extends the identity fixture with the course services.
type domain struct {
	*fixture
	semesters   *SemesterService
	groups      *GroupService
	professors  *ProfessorService
	students    *StudentService
	activities  *ActivityService
	exercises   *ExerciseService
	resolutions *ResolutionService
}

func newDomain(t *testing.T, deps ResolutionDeps) *domain {
	t.Helper()
	f := newFixture(t)
	s := f.store
	if deps.Students == nil {
		deps.Students = s.Students()
	}
	if deps.Exercises == nil {
		deps.Exercises = s.Exercises()
	}
	if deps.Professors == nil {
		deps.Professors = s.Professors()
	}
	if deps.Groups == nil {
		deps.Groups = s.Groups()
	}
	if deps.Audit == nil {
		deps.Audit = s.Users()
	}
	return &domain{
		fixture:     f,
		semesters:   NewSemesterService(s.Semesters(), nil, nil),
		groups:      NewGroupService(s.Groups(), s.Semesters(), nil, nil),
		professors:  NewProfessorService(s.Professors(), s.Users(), s.Activities(), nil, nil),
		students:    NewStudentService(s.Students(), s.Users(), nil, nil),
		activities:  NewActivityService(s.Activities(), s.Groups(), s.Professors(), nil, nil),
		exercises:   NewExerciseService(s.Exercises(), s.Activities(), nil, nil),
		resolutions: NewResolutionService(s.Resolutions(), deps, LeaderboardConfig{Size: 5}, nil, nil),
	}
}

func (d *domain) semester(t *testing.T, code string) *models.Semester {
	t.Helper()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	sem, err := d.semesters.Create(context.Background(), SemesterRequest{Code: code, StartDate: start, EndDate: start.AddDate(0, 4, 0)})
	require.NoError(t, err)
	return sem
}

func (d *domain) group(t *testing.T, name string) *models.Group {
	t.Helper()
	sem := d.semester(t, "S-"+name)
	group, err := d.groups.Create(context.Background(), GroupRequest{Name: name, CourseID: "CS101", SemesterID: sem.ID})
	require.NoError(t, err)
	return group
}

func (d *domain) professor(t *testing.T, email string) (*models.User, *models.Professor) {
	t.Helper()
	user := d.createUser(t, email, models.RoleProfessor)
	prof, err := d.professors.Create(context.Background(), ProfessorRequest{UserID: user.ID})
	require.NoError(t, err)
	return user, prof
}

func (d *domain) student(t *testing.T, email string) (*models.User, *models.Student) {
	t.Helper()
	user := d.createUser(t, email, models.RoleStudent)
	st, err := d.students.Create(context.Background(), CreateStudentRequest{UserID: user.ID})
	require.NoError(t, err)
	return user, st
}

func (d *domain) activity(t *testing.T, groupID, professorID string) *models.Activity {
	t.Helper()
	start := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	act, err := d.activities.Create(context.Background(), ActivityRequest{
		GroupID: groupID, ProfessorID: professorID, Title: "Lab 1", StartTime: start, EndTime: start.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	return act
}

func (d *domain) exercise(t *testing.T, activityID *string, maxPoints int) *models.Exercise {
	t.Helper()
	ex, err := d.exercises.Create(context.Background(), ExerciseRequest{
		ActivityID: activityID, Title: "Two sum", Statement: "Return indices", Difficulty: 3, MaxPoints: maxPoints,
	})
	require.NoError(t, err)
	return ex
}
