package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

// QuestionOrderWorker records which shuffled order each session was served,
// so a disputed result can be replayed against the catalog.
type QuestionOrderWorker struct {
	pool  *pgxpool.Pool
	log   zerolog.Logger
	batch *batcher[model.OrderQueueItem]
}

func NewQuestionOrderWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *QuestionOrderWorker {
	w := &QuestionOrderWorker{
		pool: pool,
		log:  log.With().Str("component", "question_order_worker").Logger(),
	}
	w.batch = newBatcher(redisQueue{rdb: rdb, key: config.WorkerKey.PersistQuestionOrderQueue}, w.log, w.upsertOrders, w.upsertOrder)
	return w
}

// Start blocks until ctx is cancelled. Call in a goroutine.
func (w *QuestionOrderWorker) Start(ctx context.Context) {
	w.log.Info().Msg("QuestionOrderWorker started")
	w.batch.run(ctx)
	w.log.Info().Msg("QuestionOrderWorker stopped")
}

const upsertOrdersSQL = `
	INSERT INTO session_orders (session_id, device_id, test_code, question_order, started_at)
	SELECT * FROM UNNEST($1::text[], $2::text[], $3::text[], $4::jsonb[], $5::timestamptz[])
	ON CONFLICT (session_id) DO UPDATE
	SET question_order = EXCLUDED.question_order`

func (w *QuestionOrderWorker) upsertOrders(ctx context.Context, batch []*model.OrderQueueItem) error {
	n := len(batch)
	sessions := make([]string, n)
	devices := make([]string, n)
	tests := make([]string, n)
	orders := make([][]byte, n)
	started := make([]time.Time, n)
	for i, o := range batch {
		raw, err := json.Marshal(o.Order)
		if err != nil {
			return fmt.Errorf("encode order of %s: %w", o.SessionID, err)
		}
		sessions[i], devices[i], tests[i], orders[i], started[i] = o.SessionID, o.DeviceID, o.TestCode, raw, o.StartedAt
	}
	_, err := w.pool.Exec(ctx, upsertOrdersSQL, sessions, devices, tests, orders, started)
	return err
}

func (w *QuestionOrderWorker) upsertOrder(ctx context.Context, o *model.OrderQueueItem) error {
	return w.upsertOrders(ctx, []*model.OrderQueueItem{o})
}
