package memstore

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/ctp-api/internal/models"
)

// ResolutionRepository implements submissions and score aggregation on the store.
type ResolutionRepository struct{ s *Store }

// Resolutions returns the resolution repository view.
func (s *Store) Resolutions() *ResolutionRepository { return &ResolutionRepository{s: s} }

func (r *ResolutionRepository) List(_ context.Context, filter models.ResolutionFilter) ([]models.Resolution, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Resolution
	for _, res := range r.s.resolutions {
		if filter.StudentID != "" && res.StudentID != filter.StudentID {
			continue
		}
		if filter.ExerciseID != "" && res.ExerciseID != filter.ExerciseID {
			continue
		}
		if filter.Status != "" && res.Status != filter.Status {
			continue
		}
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return paginate(out, filter.Page, filter.PageSize), len(out), nil
}

func (r *ResolutionRepository) FindByID(_ context.Context, id string) (*models.Resolution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res, ok := r.s.resolutions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &res, nil
}

// CreateNextAttempt numbers the attempt under the store lock, so attempts never collide.
func (r *ResolutionRepository) CreateNextAttempt(_ context.Context, resolution *models.Resolution) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if resolution.ID == "" {
		resolution.ID = uuid.NewString()
	}
	if resolution.SubmittedAt.IsZero() {
		resolution.SubmittedAt = time.Now().UTC()
	}
	resolution.Status = models.ResolutionStatusPending
	resolution.PointsAwarded = nil
	resolution.AwardedBy = nil
	resolution.GradedAt = nil

	highest := 0
	for _, res := range r.s.resolutions {
		if res.StudentID == resolution.StudentID && res.ExerciseID == resolution.ExerciseID && res.AttemptNo > highest {
			highest = res.AttemptNo
		}
	}
	resolution.AttemptNo = highest + 1
	r.s.resolutions[resolution.ID] = *resolution
	r.s.resolutionOrder = append(r.s.resolutionOrder, resolution.ID)
	return nil
}

func (r *ResolutionRepository) AssignPoints(_ context.Context, id string, points int, awardedBy string, gradedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.resolutions[id]
	if !ok {
		return nil
	}
	res.PointsAwarded = &points
	res.AwardedBy = &awardedBy
	res.Status = models.ResolutionStatusCompleted
	res.GradedAt = &gradedAt
	r.s.resolutions[id] = res
	return nil
}

func (r *ResolutionRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deleteResolutionLocked(id)
	return nil
}

func (s *Store) deleteResolutionLocked(id string) {
	delete(s.resolutions, id)
	for i, rid := range s.resolutionOrder {
		if rid == id {
			s.resolutionOrder = append(s.resolutionOrder[:i], s.resolutionOrder[i+1:]...)
			break
		}
	}
}

// GroupScores sums COMPLETED points per student across the group's activities, in order of
// each student's first submission.
func (r *ResolutionRepository) GroupScores(_ context.Context, groupID string) ([]models.StudentScore, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.scoresLocked(func(a models.Activity) bool { return a.GroupID == groupID }), nil
}

// ActivityScores sums COMPLETED points per student within one activity.
func (r *ResolutionRepository) ActivityScores(_ context.Context, activityID string) ([]models.StudentScore, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.scoresLocked(func(a models.Activity) bool { return a.ID == activityID }), nil
}

func (r *ResolutionRepository) scoresLocked(match func(models.Activity) bool) []models.StudentScore {
	index := make(map[string]int)
	scores := []models.StudentScore{}
	for _, rid := range r.s.resolutionOrder {
		res := r.s.resolutions[rid]
		if res.Status != models.ResolutionStatusCompleted || res.PointsAwarded == nil {
			continue
		}
		exercise, ok := r.s.exercises[res.ExerciseID]
		if !ok || exercise.ActivityID == nil {
			continue
		}
		activity, ok := r.s.activities[*exercise.ActivityID]
		if !ok || !match(activity) {
			continue
		}
		i, seen := index[res.StudentID]
		if !seen {
			name := ""
			if rec, ok := r.s.users[res.StudentID]; ok {
				name = rec.user.Name
			}
			scores = append(scores, models.StudentScore{StudentID: res.StudentID, StudentName: name})
			i = len(scores) - 1
			index[res.StudentID] = i
		}
		scores[i].TotalPoints += *res.PointsAwarded
	}
	return scores
}
