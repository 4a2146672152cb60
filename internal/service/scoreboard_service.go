package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/jobs"
)

const scoreboardJobType = "scoreboard.broadcast"

type activityScorer interface {
	ActivityScores(ctx context.Context, activityID string) ([]models.StudentScore, error)
}

// ScoreboardBroadcaster fans scoreboard updates out to subscribers.
type ScoreboardBroadcaster interface {
	Publish(ctx context.Context, update models.ScoreboardUpdate) error
	Subscribe(ctx context.Context, activityID string) (<-chan models.ScoreboardUpdate, func(), error)
}

// ScoreboardConfig sizes the broadcast worker pool.
type ScoreboardConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// ScoreboardService recomputes an activity's scoreboard in the background and publishes it.
type ScoreboardService struct {
	scores      activityScorer
	activities  activityFinder
	broadcaster ScoreboardBroadcaster
	queue       *jobs.Queue
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewScoreboardService wires the broadcast queue. Call Start before Notify.
func NewScoreboardService(scores activityScorer, activities activityFinder, broadcaster ScoreboardBroadcaster, cfg ScoreboardConfig, metrics *MetricsService, logger *zap.Logger) *ScoreboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ScoreboardService{
		scores:      scores,
		activities:  activities,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger,
	}
	s.queue = jobs.NewQueue("scoreboard", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the broadcast workers.
func (s *ScoreboardService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for the workers to exit; queued broadcasts are dropped.
func (s *ScoreboardService) Stop() {
	s.queue.Stop()
}

// Notify schedules a scoreboard broadcast for the activity. Bursts for the same activity
// collapse into one pending job.
func (s *ScoreboardService) Notify(_ context.Context, activityID string) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Key:     "activity:" + activityID,
		Type:    scoreboardJobType,
		Payload: activityID,
	})
	if err != nil {
		s.logger.Warn("failed to schedule scoreboard broadcast", zap.String("activity_id", activityID), zap.Error(err))
	}
}

// Current computes the activity scoreboard synchronously.
func (s *ScoreboardService) Current(ctx context.Context, activityID string) (*models.ScoreboardUpdate, error) {
	if _, err := s.activities.FindByID(ctx, activityID); err != nil {
		return nil, lookupError(err, "Activity", activityID)
	}
	update, err := s.compute(ctx, activityID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to compute scoreboard")
	}
	return update, nil
}

// Subscribe opens a live feed for the activity. The returned func releases it.
func (s *ScoreboardService) Subscribe(ctx context.Context, activityID string) (<-chan models.ScoreboardUpdate, func(), error) {
	if _, err := s.activities.FindByID(ctx, activityID); err != nil {
		return nil, nil, lookupError(err, "Activity", activityID)
	}
	ch, cancel, err := s.broadcaster.Subscribe(ctx, activityID)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to subscribe to scoreboard")
	}
	return ch, cancel, nil
}

func (s *ScoreboardService) handle(ctx context.Context, job jobs.Job) error {
	activityID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	update, err := s.compute(ctx, activityID)
	if err == nil {
		err = s.broadcaster.Publish(ctx, *update)
	}
	s.metrics.RecordBroadcast(err)
	if err != nil {
		return fmt.Errorf("broadcast scoreboard %s: %w", activityID, err)
	}
	s.logger.Debug("scoreboard broadcast", zap.String("activity_id", activityID), zap.Int("entries", len(update.Entries)))
	return nil
}

func (s *ScoreboardService) compute(ctx context.Context, activityID string) (*models.ScoreboardUpdate, error) {
	scores, err := s.scores.ActivityScores(ctx, activityID)
	if err != nil {
		return nil, err
	}
	return &models.ScoreboardUpdate{
		ActivityID:  activityID,
		Entries:     RankScores(scores, 0),
		GeneratedAt: time.Now().UTC(),
	}, nil
}
