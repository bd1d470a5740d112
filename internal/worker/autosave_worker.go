package worker

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

// AutosaveWorker mirrors progress snapshots into session_snapshots. Saves
// are upserted and deletions remove the row. Items are applied one at a
// time in queue order; a delete must never be batched ahead of a save.
type AutosaveWorker struct {
	pool  *pgxpool.Pool
	log   zerolog.Logger
	batch *batcher[model.SnapshotQueueItem]
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	w := &AutosaveWorker{
		pool: pool,
		log:  log.With().Str("component", "autosave_worker").Logger(),
	}
	w.batch = newBatcher(redisQueue{rdb: rdb, key: config.WorkerKey.PersistSnapshotsQueue}, w.log, nil, w.apply)
	return w
}

// Start blocks until ctx is cancelled. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AutosaveWorker started")
	w.batch.run(ctx)
	w.log.Info().Msg("AutosaveWorker stopped")
}

func (w *AutosaveWorker) apply(ctx context.Context, p *model.SnapshotQueueItem) error {
	if p.Deleted {
		_, err := w.pool.Exec(ctx,
			`DELETE FROM session_snapshots
			 WHERE device_id = $1 AND test_code = $2 AND saved_at <= $3`,
			p.DeviceID, p.TestCode, p.SavedAt,
		)
		return err
	}

	// Out-of-order deliveries never overwrite a newer snapshot.
	_, err := w.pool.Exec(ctx,
		`INSERT INTO session_snapshots (device_id, test_code, snapshot, saved_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (device_id, test_code) DO UPDATE
		 SET snapshot = EXCLUDED.snapshot, saved_at = EXCLUDED.saved_at
		 WHERE session_snapshots.saved_at <= EXCLUDED.saved_at`,
		p.DeviceID, p.TestCode, []byte(p.Snapshot), p.SavedAt,
	)
	if err != nil {
		w.log.Error().Err(err).Str("device_id", p.DeviceID).Str("test_code", p.TestCode).Msg("Snapshot mirror failed")
	}
	return err
}
