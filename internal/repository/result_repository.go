package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/session"
)

// ErrResultNotFound is returned when no record matches a result code.
var ErrResultNotFound = errors.New("result not found")

// ResultRepository stores result records in Redis by result code and reads
// PostgreSQL when Redis misses.
type ResultRepository struct {
	rdb  *redis.Client
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewResultRepository creates a new ResultRepository. pool may be nil.
func NewResultRepository(rdb *redis.Client, pool *pgxpool.Pool, log zerolog.Logger) *ResultRepository {
	return &ResultRepository{
		rdb:  rdb,
		pool: pool,
		log:  log.With().Str("component", "result_repository").Logger(),
	}
}

// Save stores rec and queues its audit copy. A record is written once: when
// the code is already used in Redis or PostgreSQL, Save returns
// session.ErrResultCodeTaken and writes nothing.
func (r *ResultRepository) Save(ctx context.Context, rec *model.ResultRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	item, err := json.Marshal(model.ResultQueueItem{
		ResultCode: rec.ResultCode,
		SessionID:  rec.SessionID,
		DeviceID:   rec.DeviceID,
		TestCode:   rec.TestCode,
		Student:    rec.Student,
		Score:      rec.Score,
		Forced:     rec.Forced,
		FinishedAt: rec.Timestamp,
		Record:     data,
	})
	if err != nil {
		return fmt.Errorf("marshal result queue item: %w", err)
	}

	archived, err := r.archived(ctx, rec.ResultCode)
	if err != nil {
		r.log.Warn().Err(err).Msg("PostgreSQL result code check failed, relying on Redis")
	}
	if archived {
		return session.ErrResultCodeTaken
	}

	fresh, err := r.rdb.SetNX(ctx, config.CacheKey.ResultKey(rec.ResultCode), data, 0).Result()
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	if !fresh {
		return session.ErrResultCodeTaken
	}
	if err := r.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, item).Err(); err != nil {
		return fmt.Errorf("queue result: %w", err)
	}
	return nil
}

// archived reports whether PostgreSQL already holds a record under code.
func (r *ResultRepository) archived(ctx context.Context, code string) (bool, error) {
	if r.pool == nil {
		return false, nil
	}
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM session_results WHERE result_code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check result code: %w", err)
	}
	return exists, nil
}

// Get looks a record up by its exact code.
func (r *ResultRepository) Get(ctx context.Context, code string) (*model.ResultRecord, error) {
	raw, err := r.rdb.Get(ctx, config.CacheKey.ResultKey(code)).Bytes()
	switch {
	case err == nil:
		var rec model.ResultRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		return &rec, nil
	case !errors.Is(err, redis.Nil):
		r.log.Warn().Err(err).Msg("Redis result lookup failed, trying PostgreSQL")
	}

	if r.pool == nil {
		return nil, ErrResultNotFound
	}

	var record []byte
	err = r.pool.QueryRow(ctx,
		`SELECT record FROM session_results WHERE result_code = $1`, code,
	).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query result: %w", err)
	}

	var rec model.ResultRecord
	if err := json.Unmarshal(record, &rec); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	// Self-heal the Redis copy.
	if err := r.rdb.Set(ctx, config.CacheKey.ResultKey(code), record, 0).Err(); err != nil {
		r.log.Warn().Err(err).Str("result_code", code).Msg("Failed to restore result in Redis")
	}
	return &rec, nil
}
