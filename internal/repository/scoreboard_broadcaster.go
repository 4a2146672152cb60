package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
)

// ScoreboardChannel names the pub/sub channel of an activity.
func ScoreboardChannel(activityID string) string {
	return "scoreboard:activity:" + activityID
}

// RedisBroadcaster fans scoreboard updates out through Redis pub/sub so every API replica
// reaches its own subscribers.
type RedisBroadcaster struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBroadcaster constructs a Redis backed broadcaster.
func NewRedisBroadcaster(client *redis.Client, logger *zap.Logger) *RedisBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroadcaster{client: client, logger: logger}
}

// Publish sends an update to the activity channel.
func (b *RedisBroadcaster) Publish(ctx context.Context, update models.ScoreboardUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal scoreboard update: %w", err)
	}
	if err := b.client.Publish(ctx, ScoreboardChannel(update.ActivityID), payload).Err(); err != nil {
		return fmt.Errorf("publish scoreboard update: %w", err)
	}
	return nil
}

// Subscribe streams updates for an activity until ctx is cancelled or the returned cancel
// func is called.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, activityID string) (<-chan models.ScoreboardUpdate, func(), error) {
	sub := b.client.Subscribe(ctx, ScoreboardChannel(activityID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe scoreboard: %w", err)
	}

	out := make(chan models.ScoreboardUpdate, 8)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				stop()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var update models.ScoreboardUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					b.logger.Warn("discarding malformed scoreboard message", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- update:
				default:
					b.logger.Warn("scoreboard subscriber lagging, dropping update", zap.String("activity_id", activityID))
				}
			}
		}
	}()

	return out, stop, nil
}

// LocalBroadcaster fans updates out to subscribers of this process only. It is used when
// Redis is disabled.
type LocalBroadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan models.ScoreboardUpdate
}

// NewLocalBroadcaster constructs an in-process broadcaster.
func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{subs: make(map[string]map[int]chan models.ScoreboardUpdate)}
}

// Publish delivers update to every current subscriber of the activity, dropping it for
// subscribers whose buffer is full.
func (b *LocalBroadcaster) Publish(_ context.Context, update models.ScoreboardUpdate) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[update.ActivityID] {
		select {
		case ch <- update:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber for the activity.
func (b *LocalBroadcaster) Subscribe(ctx context.Context, activityID string) (<-chan models.ScoreboardUpdate, func(), error) {
	ch := make(chan models.ScoreboardUpdate, 8)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[activityID] == nil {
		b.subs[activityID] = make(map[int]chan models.ScoreboardUpdate)
	}
	b.subs[activityID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[activityID], id)
			if len(b.subs[activityID]) == 0 {
				delete(b.subs, activityID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ch, stop, nil
}

// Subscribers returns the number of live subscribers of an activity.
func (b *LocalBroadcaster) Subscribers(activityID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[activityID])
}
