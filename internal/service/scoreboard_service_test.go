package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/repository"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

type failingBroadcaster struct{ *repository.LocalBroadcaster }

func (failingBroadcaster) Publish(context.Context, models.ScoreboardUpdate) error {
	return errors.New("redis down")
}

func TestScoreboardServiceBroadcastsAfterGrading(t *testing.T) {
	c := newClassroom(t)
	broadcaster := repository.NewLocalBroadcaster()
	metrics := NewMetricsService()
	scoreboard := NewScoreboardService(c.store.Resolutions(), c.store.Activities(), broadcaster, ScoreboardConfig{Workers: 1}, metrics, nil)
	scoreboard.Start(context.Background())
	t.Cleanup(scoreboard.Stop)
	c.resolutions.deps.Scoreboard = scoreboard

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, release, err := scoreboard.Subscribe(ctx, c.activity.ID)
	require.NoError(t, err)
	defer release()

	c.grade(t, c.submit(t, c.stuUser).ID, 6)

	select {
	case update := <-updates:
		assert.Equal(t, c.activity.ID, update.ActivityID)
		require.Len(t, update.Entries, 1)
		assert.Equal(t, 6, update.Entries[0].TotalPoints)
	case <-time.After(2 * time.Second):
		t.Fatal("no scoreboard update received")
	}
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.broadcasts.WithLabelValues("ok")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestScoreboardServiceCurrent(t *testing.T) {
	c := newClassroom(t)
	scoreboard := NewScoreboardService(c.store.Resolutions(), c.store.Activities(), repository.NewLocalBroadcaster(), ScoreboardConfig{}, nil, nil)
	c.grade(t, c.submit(t, c.stuUser).ID, 3)

	update, err := scoreboard.Current(context.Background(), c.activity.ID)
	require.NoError(t, err)
	require.Len(t, update.Entries, 1)
	assert.Equal(t, c.stuUser.ID, update.Entries[0].StudentID)

	_, err = scoreboard.Current(context.Background(), "act-missing")
	requireCode(t, err, appErrors.ErrNotFound)
	_, _, err = scoreboard.Subscribe(context.Background(), "act-missing")
	requireCode(t, err, appErrors.ErrNotFound)
}

func TestScoreboardServiceRecordsFailedBroadcasts(t *testing.T) {
	c := newClassroom(t)
	metrics := NewMetricsService()
	scoreboard := NewScoreboardService(c.store.Resolutions(), c.store.Activities(),
		failingBroadcaster{repository.NewLocalBroadcaster()},
		ScoreboardConfig{Workers: 1, Retries: 1, RetryDelay: time.Millisecond}, metrics, nil)
	scoreboard.Start(context.Background())
	t.Cleanup(scoreboard.Stop)

	scoreboard.Notify(context.Background(), c.activity.ID)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.broadcasts.WithLabelValues("error")) == 2
	}, 2*time.Second, 10*time.Millisecond)
}
