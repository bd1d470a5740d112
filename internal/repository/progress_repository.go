package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

// ProgressTTL bounds how long an abandoned snapshot stays resumable.
const ProgressTTL = 7 * 24 * time.Hour

// ProgressRepository stores in-flight snapshots per (device, test code) in
// Redis and queues every change for the PostgreSQL mirror.
type ProgressRepository struct {
	rdb  *redis.Client
	pool *pgxpool.Pool
}

// NewProgressRepository creates a new ProgressRepository. pool may be nil.
func NewProgressRepository(rdb *redis.Client, pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{rdb: rdb, pool: pool}
}

// Save overwrites the device's snapshot for snap.TestCode.
func (r *ProgressRepository) Save(ctx context.Context, deviceID string, snap model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	item, err := json.Marshal(model.SnapshotQueueItem{
		DeviceID: deviceID,
		TestCode: snap.TestCode,
		Snapshot: data,
		SavedAt:  snap.SavedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot queue item: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.ProgressKey(deviceID, snap.TestCode), data, ProgressTTL)
	pipe.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, item)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Get returns the stored snapshot or nil when there is none.
func (r *ProgressRepository) Get(ctx context.Context, deviceID, code string) (*model.Snapshot, error) {
	raw, err := r.rdb.Get(ctx, config.CacheKey.ProgressKey(deviceID, code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// GetAudited reads the Redis snapshot and falls back to the PostgreSQL mirror.
func (r *ProgressRepository) GetAudited(ctx context.Context, deviceID, code string) (*model.Snapshot, error) {
	snap, err := r.Get(ctx, deviceID, code)
	if err != nil || snap != nil || r.pool == nil {
		return snap, err
	}

	var raw []byte
	err = r.pool.QueryRow(ctx,
		`SELECT snapshot FROM session_snapshots
		 WHERE device_id = $1 AND test_code = $2`, deviceID, code,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot mirror: %w", err)
	}
	var out model.Snapshot
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode snapshot mirror: %w", err)
	}
	return &out, nil
}

// Delete removes the device's snapshot for code.
func (r *ProgressRepository) Delete(ctx context.Context, deviceID, code string) error {
	item, err := json.Marshal(model.SnapshotQueueItem{
		DeviceID: deviceID,
		TestCode: code,
		Deleted:  true,
		SavedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot queue item: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, config.CacheKey.ProgressKey(deviceID, code))
	pipe.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, item)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// QueueOrder records the question order a session was served.
func (r *ProgressRepository) QueueOrder(ctx context.Context, item model.OrderQueueItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal order queue item: %w", err)
	}
	return r.rdb.RPush(ctx, config.WorkerKey.PersistQuestionOrderQueue, data).Err()
}
