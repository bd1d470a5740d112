package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-session/internal/config"
)

// AttemptRepository stores the last non-forced completion per (code, device).
type AttemptRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAttemptRepository creates a new AttemptRepository. Markers expire after
// ttl, which must be at least the retake cooldown.
func NewAttemptRepository(rdb *redis.Client, ttl time.Duration) *AttemptRepository {
	return &AttemptRepository{rdb: rdb, ttl: ttl}
}

// Mark records a completion at at.
func (r *AttemptRepository) Mark(ctx context.Context, code, deviceID string, at time.Time) error {
	key := config.CacheKey.LastAttemptKey(code, deviceID)
	if err := r.rdb.Set(ctx, key, at.UnixMilli(), r.ttl).Err(); err != nil {
		return fmt.Errorf("mark attempt: %w", err)
	}
	return nil
}

// Last returns the last completion time, if any.
func (r *AttemptRepository) Last(ctx context.Context, code, deviceID string) (time.Time, bool, error) {
	ms, err := r.rdb.Get(ctx, config.CacheKey.LastAttemptKey(code, deviceID)).Int64()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get last attempt: %w", err)
	}
	return time.UnixMilli(ms), true, nil
}

// Clear removes the cooldown marker.
func (r *AttemptRepository) Clear(ctx context.Context, code, deviceID string) error {
	return r.rdb.Del(ctx, config.CacheKey.LastAttemptKey(code, deviceID)).Err()
}
