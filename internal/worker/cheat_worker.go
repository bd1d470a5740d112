package worker

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

// CheatWorker drains the cheat event queue into the cheat_events table. The
// (session_id, event_count) pair is unique, so a requeued event that did
// land is skipped on the row-by-row path.
type CheatWorker struct {
	pool  *pgxpool.Pool
	log   zerolog.Logger
	batch *batcher[model.CheatQueueItem]
}

func NewCheatWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *CheatWorker {
	w := &CheatWorker{
		pool: pool,
		log:  log.With().Str("component", "cheat_worker").Logger(),
	}
	w.batch = newBatcher(redisQueue{rdb: rdb, key: config.WorkerKey.PersistCheatsQueue}, w.log, w.copyEvents, w.insertEvent)
	return w
}

// Start blocks until ctx is cancelled. Call in a goroutine.
func (w *CheatWorker) Start(ctx context.Context) {
	w.log.Info().Msg("CheatWorker started")
	w.batch.run(ctx)
	w.log.Info().Msg("CheatWorker stopped")
}

// copyEvents uses COPY; one duplicate fails the whole batch, which then
// goes row by row.
func (w *CheatWorker) copyEvents(ctx context.Context, batch []*model.CheatQueueItem) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, e := range batch {
		rows = append(rows, []interface{}{e.SessionID, string(e.Kind), e.Count, e.When})
	}
	_, err := w.pool.CopyFrom(ctx,
		pgx.Identifier{"cheat_events"},
		[]string{"session_id", "kind", "event_count", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *CheatWorker) insertEvent(ctx context.Context, e *model.CheatQueueItem) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO cheat_events (session_id, kind, event_count, recorded_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, event_count) DO NOTHING`,
		e.SessionID, string(e.Kind), e.Count, e.When,
	)
	return err
}
