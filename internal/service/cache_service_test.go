package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/repository"
)

func TestCacheServiceHitMissAndMetrics(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	metrics := NewMetricsService()
	cache := NewCacheService(repository.NewCacheRepository(client, nil), metrics, time.Minute, nil, true)
	ctx := context.Background()

	var board models.Leaderboard
	assert.False(t, cache.Get(ctx, "leaderboard:group:G1", &board))

	cache.Set(ctx, "leaderboard:group:G1", models.Leaderboard{GroupName: "G1"}, 0)
	require.True(t, cache.Get(ctx, "leaderboard:group:G1", &board))
	assert.Equal(t, "G1", board.GroupName)
	assert.Equal(t, time.Minute, mr.TTL("leaderboard:group:G1"))

	cache.Invalidate(ctx, "leaderboard:group:*")
	assert.False(t, mr.Exists("leaderboard:group:G1"))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("miss")))
}

func TestCacheServiceSoftFailsWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCacheService(repository.NewCacheRepository(client, nil), nil, time.Minute, nil, true)
	mr.Close()

	var board models.Leaderboard
	assert.False(t, cache.Get(context.Background(), "k", &board))
	cache.Set(context.Background(), "k", board, 0)
	cache.Invalidate(context.Background(), "k*")
}

func TestCacheServiceDisabledAndNil(t *testing.T) {
	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	assert.False(t, nilCache.Get(context.Background(), "k", &struct{}{}))
	nilCache.Set(context.Background(), "k", 1, 0)
	nilCache.Invalidate(context.Background(), "k")

	disabled := NewCacheService(stubCacheRepo{}, nil, 0, nil, false)
	assert.False(t, disabled.Enabled())
	assert.False(t, disabled.Get(context.Background(), "k", &struct{}{}))
}

type stubCacheRepo struct{}

func (stubCacheRepo) Get(context.Context, string, interface{}) error { return errors.New("unused") }
func (stubCacheRepo) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("unused")
}
func (stubCacheRepo) DeleteByPattern(context.Context, string) error { return errors.New("unused") }

func TestMetricsServiceExposesCollectors(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest("GET", "/api/groups", 200, 15*time.Millisecond)
	metrics.IncSubmission()
	metrics.IncGrade()
	metrics.RecordImageUpload(nil)
	metrics.ObserveDBQuery("group_scores", time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requestTotal.WithLabelValues("GET", "/api/groups", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.submissions))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.imageUploads.WithLabelValues("ok")))

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "resolution_grades_total")
	assert.Contains(t, names, "goroutines_total")

	var nilMetrics *MetricsService
	nilMetrics.IncGrade()
	assert.Nil(t, nilMetrics.Registry())
}
