package memstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/pkg/database"
)

// SemesterRepository implements semester persistence on the store.
type SemesterRepository struct{ s *Store }

// Semesters returns the semester repository view.
func (s *Store) Semesters() *SemesterRepository { return &SemesterRepository{s: s} }

func (r *SemesterRepository) List(_ context.Context, filter models.SemesterFilter) ([]models.Semester, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Semester
	for _, sem := range r.s.semesters {
		if filter.IsActive != nil && sem.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, sem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return paginate(out, filter.Page, filter.PageSize), len(out), nil
}

func (r *SemesterRepository) FindByID(_ context.Context, id string) (*models.Semester, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sem, ok := r.s.semesters[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &sem, nil
}

func (r *SemesterRepository) ExistsByCode(_ context.Context, code, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, sem := range r.s.semesters {
		if sem.Code == code && sem.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *SemesterRepository) Create(_ context.Context, semester *models.Semester) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sem := range r.s.semesters {
		if sem.Code == semester.Code {
			return fmt.Errorf("create semester: %w", database.ErrDuplicate)
		}
	}
	if semester.ID == "" {
		semester.ID = uuid.NewString()
	}
	stamp(&semester.CreatedAt, &semester.UpdatedAt)
	r.s.semesters[semester.ID] = *semester
	return nil
}

func (r *SemesterRepository) Update(_ context.Context, semester *models.Semester) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.semesters[semester.ID]
	if !ok {
		return nil
	}
	for _, sem := range r.s.semesters {
		if sem.Code == semester.Code && sem.ID != semester.ID {
			return fmt.Errorf("update semester: %w", database.ErrDuplicate)
		}
	}
	stamp(nil, &semester.UpdatedAt)
	semester.CreatedAt = existing.CreatedAt
	r.s.semesters[semester.ID] = *semester
	return nil
}

func (r *SemesterRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.semesters, id)
	return nil
}

func (r *SemesterRepository) CountGroups(_ context.Context, id string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var count int
	for _, g := range r.s.groups {
		if g.SemesterID == id {
			count++
		}
	}
	return count, nil
}

// GroupRepository implements group persistence on the store.
type GroupRepository struct{ s *Store }

// Groups returns the group repository view.
func (s *Store) Groups() *GroupRepository { return &GroupRepository{s: s} }

func (r *GroupRepository) List(_ context.Context, filter models.GroupFilter) ([]models.Group, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Group
	for _, g := range r.s.groups {
		if filter.SemesterID != "" && g.SemesterID != filter.SemesterID {
			continue
		}
		if filter.CourseID != "" && g.CourseID != filter.CourseID {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, filter.Page, filter.PageSize), len(out), nil
}

func (r *GroupRepository) FindByID(_ context.Context, id string) (*models.Group, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	g, ok := r.s.groups[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &g, nil
}

func (r *GroupRepository) FindByName(_ context.Context, name string) (*models.Group, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, g := range r.s.groups {
		if g.Name == name {
			return &g, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *GroupRepository) ExistsByName(_ context.Context, name, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, g := range r.s.groups {
		if g.Name == name && g.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *GroupRepository) Create(_ context.Context, group *models.Group) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.groups {
		if g.Name == group.Name {
			return fmt.Errorf("create group: %w", database.ErrDuplicate)
		}
	}
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	stamp(&group.CreatedAt, &group.UpdatedAt)
	r.s.groups[group.ID] = *group
	return nil
}

func (r *GroupRepository) Update(_ context.Context, group *models.Group) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.groups[group.ID]
	if !ok {
		return nil
	}
	for _, g := range r.s.groups {
		if g.Name == group.Name && g.ID != group.ID {
			return fmt.Errorf("update group: %w", database.ErrDuplicate)
		}
	}
	stamp(nil, &group.UpdatedAt)
	group.CreatedAt = existing.CreatedAt
	r.s.groups[group.ID] = *group
	return nil
}

func (r *GroupRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.groups, id)
	return nil
}

func (r *GroupRepository) CountActivities(_ context.Context, id string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var count int
	for _, a := range r.s.activities {
		if a.GroupID == id {
			count++
		}
	}
	return count, nil
}

// ProfessorRepository implements professor profiles on the store.
type ProfessorRepository struct{ s *Store }

// Professors returns the professor repository view.
func (s *Store) Professors() *ProfessorRepository { return &ProfessorRepository{s: s} }

func (r *ProfessorRepository) professorLocked(id string) (models.Professor, bool) {
	created, ok := r.s.professors[id]
	if !ok {
		return models.Professor{}, false
	}
	rec, ok := r.s.users[id]
	if !ok {
		return models.Professor{}, false
	}
	return models.Professor{ID: id, Name: rec.user.Name, Email: rec.user.Email, CreatedAt: created}, true
}

func (r *ProfessorRepository) List(_ context.Context, filter models.ProfileFilter) ([]models.Professor, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Professor
	for id := range r.s.professors {
		p, ok := r.professorLocked(id)
		if !ok {
			continue
		}
		if filter.Search != "" && !containsFold(p.Name, filter.Search) && !containsFold(p.Email, filter.Search) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, filter.Page, filter.PageSize), len(out), nil
}

func (r *ProfessorRepository) FindByID(_ context.Context, id string) (*models.Professor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.professorLocked(id)
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (r *ProfessorRepository) Create(_ context.Context, professor *models.Professor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[professor.ID]; !ok {
		return fmt.Errorf("create professor: user %s: %w", professor.ID, sql.ErrNoRows)
	}
	if _, exists := r.s.professors[professor.ID]; exists {
		return fmt.Errorf("create professor: %w", database.ErrDuplicate)
	}
	if professor.CreatedAt.IsZero() {
		professor.CreatedAt = time.Now().UTC()
	}
	r.s.professors[professor.ID] = professor.CreatedAt
	return nil
}

func (r *ProfessorRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.professors, id)
	return nil
}

// StudentRepository implements student profiles on the store.
type StudentRepository struct{ s *Store }

// Students returns the student repository view.
func (s *Store) Students() *StudentRepository { return &StudentRepository{s: s} }

func (r *StudentRepository) studentLocked(id string) (models.Student, bool) {
	st, ok := r.s.students[id]
	if !ok {
		return models.Student{}, false
	}
	if rec, ok := r.s.users[id]; ok {
		st.Name = rec.user.Name
		st.Email = rec.user.Email
	}
	return st, true
}

func (r *StudentRepository) List(_ context.Context, filter models.ProfileFilter) ([]models.Student, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Student
	for id := range r.s.students {
		st, _ := r.studentLocked(id)
		if filter.Search != "" && !containsFold(st.Name, filter.Search) && !containsFold(st.Email, filter.Search) {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, filter.Page, filter.PageSize), len(out), nil
}

func (r *StudentRepository) FindByID(_ context.Context, id string) (*models.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.studentLocked(id)
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

func (r *StudentRepository) Create(_ context.Context, student *models.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[student.ID]; !ok {
		return fmt.Errorf("create student: user %s: %w", student.ID, sql.ErrNoRows)
	}
	if _, exists := r.s.students[student.ID]; exists {
		return fmt.Errorf("create student: %w", database.ErrDuplicate)
	}
	stamp(&student.CreatedAt, &student.UpdatedAt)
	r.s.students[student.ID] = models.Student{
		ID:             student.ID,
		InitialProfile: student.InitialProfile,
		CreatedAt:      student.CreatedAt,
		UpdatedAt:      student.UpdatedAt,
	}
	return nil
}

func (r *StudentRepository) Update(_ context.Context, student *models.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.students[student.ID]
	if !ok {
		return nil
	}
	stamp(nil, &student.UpdatedAt)
	existing.InitialProfile = student.InitialProfile
	existing.UpdatedAt = student.UpdatedAt
	r.s.students[student.ID] = existing
	return nil
}

func (r *StudentRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deleteStudentLocked(id)
	return nil
}

// deleteStudentLocked removes the profile and cascades to its resolutions.
func (s *Store) deleteStudentLocked(id string) {
	delete(s.students, id)
	for rid, res := range s.resolutions {
		if res.StudentID == id {
			s.deleteResolutionLocked(rid)
		}
	}
}

// ActivityRepository implements activity persistence on the store.
type ActivityRepository struct{ s *Store }

// Activities returns the activity repository view.
func (s *Store) Activities() *ActivityRepository { return &ActivityRepository{s: s} }

func (r *ActivityRepository) List(_ context.Context, filter models.ActivityFilter) ([]models.Activity, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Activity
	for _, a := range r.s.activities {
		if filter.GroupID != "" && a.GroupID != filter.GroupID {
			continue
		}
		if filter.ProfessorID != "" && a.ProfessorID != filter.ProfessorID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return paginate(out, filter.Page, filter.PageSize), len(out), nil
}

func (r *ActivityRepository) FindByID(_ context.Context, id string) (*models.Activity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.activities[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (r *ActivityRepository) Create(_ context.Context, activity *models.Activity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	stamp(&activity.CreatedAt, &activity.UpdatedAt)
	r.s.activities[activity.ID] = *activity
	return nil
}

func (r *ActivityRepository) Update(_ context.Context, activity *models.Activity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.activities[activity.ID]
	if !ok {
		return nil
	}
	stamp(nil, &activity.UpdatedAt)
	activity.CreatedAt = existing.CreatedAt
	r.s.activities[activity.ID] = *activity
	return nil
}

func (r *ActivityRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.activities, id)
	for eid, e := range r.s.exercises {
		if e.ActivityID != nil && *e.ActivityID == id {
			r.s.deleteExerciseLocked(eid)
		}
	}
	return nil
}

// ExerciseRepository implements exercise persistence on the store.
type ExerciseRepository struct{ s *Store }

// Exercises returns the exercise repository view.
func (s *Store) Exercises() *ExerciseRepository { return &ExerciseRepository{s: s} }

func (r *ExerciseRepository) List(_ context.Context, filter models.ExerciseFilter) ([]models.Exercise, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Exercise
	for _, e := range r.s.exercises {
		if filter.ActivityID != "" && (e.ActivityID == nil || *e.ActivityID != filter.ActivityID) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, filter.Page, filter.PageSize), len(out), nil
}

func (r *ExerciseRepository) FindByID(_ context.Context, id string) (*models.Exercise, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.exercises[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (r *ExerciseRepository) Create(_ context.Context, exercise *models.Exercise) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if exercise.ID == "" {
		exercise.ID = uuid.NewString()
	}
	stamp(&exercise.CreatedAt, &exercise.UpdatedAt)
	r.s.exercises[exercise.ID] = *exercise
	return nil
}

func (r *ExerciseRepository) Update(_ context.Context, exercise *models.Exercise) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.exercises[exercise.ID]
	if !ok {
		return nil
	}
	stamp(nil, &exercise.UpdatedAt)
	exercise.CreatedAt = existing.CreatedAt
	r.s.exercises[exercise.ID] = *exercise
	return nil
}

func (r *ExerciseRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deleteExerciseLocked(id)
	return nil
}

func (s *Store) deleteExerciseLocked(id string) {
	delete(s.exercises, id)
	for rid, res := range s.resolutions {
		if res.ExerciseID == id {
			s.deleteResolutionLocked(rid)
		}
	}
}
