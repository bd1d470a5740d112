package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

// CheatLogTTL is how long the Redis copy of a cheat log is kept.
const CheatLogTTL = 30 * 24 * time.Hour

// CheatLogRepository appends cheat events to a per-session Redis list and
// queues them for the audit table.
type CheatLogRepository struct {
	rdb  *redis.Client
	pool *pgxpool.Pool
}

// NewCheatLogRepository creates a new CheatLogRepository. pool may be nil.
func NewCheatLogRepository(rdb *redis.Client, pool *pgxpool.Pool) *CheatLogRepository {
	return &CheatLogRepository{rdb: rdb, pool: pool}
}

// Append adds ev to the log of the session identified by attemptKey.
func (r *CheatLogRepository) Append(ctx context.Context, attemptKey string, ev model.CheatEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal cheat event: %w", err)
	}
	item, err := json.Marshal(model.CheatQueueItem{
		SessionID: attemptKey,
		Kind:      ev.Kind,
		Count:     ev.Count,
		When:      ev.When,
	})
	if err != nil {
		return fmt.Errorf("marshal cheat queue item: %w", err)
	}

	key := config.CacheKey.CheatLogKey(attemptKey)
	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, CheatLogTTL)
	pipe.RPush(ctx, config.WorkerKey.PersistCheatsQueue, item)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append cheat event: %w", err)
	}
	return nil
}

// List returns the session's log in append order. When Redis no longer has
// it, the audit table is read instead.
func (r *CheatLogRepository) List(ctx context.Context, attemptKey string) ([]model.CheatEvent, error) {
	raws, err := r.rdb.LRange(ctx, config.CacheKey.CheatLogKey(attemptKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list cheat events: %w", err)
	}
	if len(raws) > 0 || r.pool == nil {
		events := make([]model.CheatEvent, 0, len(raws))
		for _, raw := range raws {
			var ev model.CheatEvent
			if err := json.Unmarshal([]byte(raw), &ev); err != nil {
				continue
			}
			events = append(events, ev)
		}
		return events, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT kind, event_count, recorded_at
		 FROM cheat_events
		 WHERE session_id = $1
		 ORDER BY event_count ASC, recorded_at ASC`, attemptKey,
	)
	if err != nil {
		return nil, fmt.Errorf("query cheat events: %w", err)
	}
	defer rows.Close()

	var events []model.CheatEvent
	for rows.Next() {
		var ev model.CheatEvent
		if err := rows.Scan(&ev.Kind, &ev.Count, &ev.When); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
