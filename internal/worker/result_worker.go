package worker

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

// ResultWorker archives finished session records into session_results.
// Result codes are unique, so replays are no-ops.
type ResultWorker struct {
	pool  *pgxpool.Pool
	log   zerolog.Logger
	batch *batcher[model.ResultQueueItem]
}

func NewResultWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	w := &ResultWorker{
		pool: pool,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
	w.batch = newBatcher(redisQueue{rdb: rdb, key: config.WorkerKey.PersistResultsQueue}, w.log, w.insertResults, w.insertResult)
	return w
}

// Start blocks until ctx is cancelled. Call in a goroutine.
func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")
	w.batch.run(ctx)
	w.log.Info().Msg("ResultWorker stopped")
}

const insertResultsSQL = `
	INSERT INTO session_results
		(result_code, session_id, device_id, test_code, student, score, forced, record, finished_at)
	SELECT * FROM UNNEST(
		$1::text[], $2::text[], $3::text[], $4::text[], $5::text[],
		$6::float8[], $7::bool[], $8::jsonb[], $9::timestamptz[]
	)
	ON CONFLICT (result_code) DO NOTHING`

// insertResults writes the batch in one statement, one array per column.
func (w *ResultWorker) insertResults(ctx context.Context, batch []*model.ResultQueueItem) error {
	n := len(batch)
	var (
		codes    = make([]string, n)
		sessions = make([]string, n)
		devices  = make([]string, n)
		tests    = make([]string, n)
		students = make([]string, n)
		scores   = make([]float64, n)
		forced   = make([]bool, n)
		records  = make([][]byte, n)
		finished = make([]time.Time, n)
	)
	for i, r := range batch {
		codes[i] = r.ResultCode
		sessions[i] = r.SessionID
		devices[i] = r.DeviceID
		tests[i] = r.TestCode
		students[i] = r.Student
		scores[i] = r.Score
		forced[i] = r.Forced
		records[i] = []byte(r.Record)
		finished[i] = r.FinishedAt
	}
	_, err := w.pool.Exec(ctx, insertResultsSQL,
		codes, sessions, devices, tests, students, scores, forced, records, finished)
	return err
}

func (w *ResultWorker) insertResult(ctx context.Context, r *model.ResultQueueItem) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO session_results
			(result_code, session_id, device_id, test_code, student, score, forced, record, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (result_code) DO NOTHING`,
		r.ResultCode, r.SessionID, r.DeviceID, r.TestCode, r.Student, r.Score, r.Forced, []byte(r.Record), r.FinishedAt,
	)
	if err != nil {
		w.log.Error().Err(err).Str("result_code", r.ResultCode).Msg("Result insert failed")
	}
	return err
}
