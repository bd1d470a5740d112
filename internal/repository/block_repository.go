package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

// blockStore is one copy of the block list.
type blockStore interface {
	add(ctx context.Context, entry model.BlockEntry) error
	// get returns nil when the pair is not blocked.
	get(ctx context.Context, code, deviceID string) (*model.BlockEntry, error)
	list(ctx context.Context) ([]model.BlockEntry, error)
	remove(ctx context.Context, code, deviceID string) (bool, error)
}

// BlockRepository keeps the (code, device) block list in a Redis hash and
// writes every entry through to the device_blocks table. Reads fall back to
// PostgreSQL, so a lost Redis never lifts a block.
type BlockRepository struct {
	cache   blockStore
	archive blockStore
	log     zerolog.Logger
}

// NewBlockRepository creates a new BlockRepository. pool may be nil, in
// which case only Redis holds the list.
func NewBlockRepository(rdb *redis.Client, pool *pgxpool.Pool, log zerolog.Logger) *BlockRepository {
	var archive blockStore
	if pool != nil {
		archive = pgBlocks{pool: pool}
	}
	return newBlockRepository(redisBlocks{rdb: rdb}, archive, log)
}

func newBlockRepository(cache, archive blockStore, log zerolog.Logger) *BlockRepository {
	return &BlockRepository{
		cache:   cache,
		archive: archive,
		log:     log.With().Str("component", "block_repository").Logger(),
	}
}

// Add blocks the pair in both stores. An existing entry is kept as is, so
// the list never holds duplicates. It fails only when no store took it.
func (r *BlockRepository) Add(ctx context.Context, entry model.BlockEntry) error {
	cacheErr := r.cache.add(ctx, entry)
	if r.archive == nil {
		return cacheErr
	}
	archiveErr := r.archive.add(ctx, entry)
	switch {
	case cacheErr != nil && archiveErr != nil:
		return errors.Join(cacheErr, archiveErr)
	case cacheErr != nil:
		r.log.Warn().Err(cacheErr).Str("test_code", entry.Code).Msg("Block stored in PostgreSQL only")
	case archiveErr != nil:
		r.log.Warn().Err(archiveErr).Str("test_code", entry.Code).Msg("Block stored in Redis only")
	}
	return nil
}

// IsBlocked reports whether the device may not start code. A block found
// only in PostgreSQL is copied back into Redis.
func (r *BlockRepository) IsBlocked(ctx context.Context, code, deviceID string) (bool, error) {
	hit, cacheErr := r.cache.get(ctx, code, deviceID)
	if cacheErr == nil && hit != nil {
		return true, nil
	}
	if r.archive == nil {
		return false, cacheErr
	}
	if cacheErr != nil {
		r.log.Warn().Err(cacheErr).Msg("Redis block lookup failed, trying PostgreSQL")
	}

	entry, err := r.archive.get(ctx, code, deviceID)
	if err != nil {
		if cacheErr != nil {
			return false, errors.Join(cacheErr, err)
		}
		r.log.Warn().Err(err).Msg("PostgreSQL block lookup failed, trusting Redis")
		return false, nil
	}
	if entry == nil {
		return false, nil
	}

	if cacheErr == nil {
		if err := r.cache.add(ctx, *entry); err != nil {
			r.log.Warn().Err(err).Str("test_code", code).Msg("Failed to restore block in Redis")
		}
	}
	return true, nil
}

// List returns every block entry from both stores, newest first.
func (r *BlockRepository) List(ctx context.Context) ([]model.BlockEntry, error) {
	cached, cacheErr := r.cache.list(ctx)
	if r.archive == nil {
		return sortBlocks(cached), cacheErr
	}
	archived, archiveErr := r.archive.list(ctx)
	switch {
	case cacheErr != nil && archiveErr != nil:
		return nil, errors.Join(cacheErr, archiveErr)
	case cacheErr != nil:
		r.log.Warn().Err(cacheErr).Msg("Redis block list failed, using PostgreSQL")
	case archiveErr != nil:
		r.log.Warn().Err(archiveErr).Msg("PostgreSQL block list failed, using Redis")
	}

	seen := make(map[string]bool, len(cached))
	out := make([]model.BlockEntry, 0, len(cached)+len(archived))
	for _, e := range append(cached, archived...) {
		key := config.CacheKey.BlockField(e.Code, e.DeviceID)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return sortBlocks(out), nil
}

// Remove lifts the block from both stores and reports whether either held
// it. Any failure is returned, since a leftover copy would keep the block.
func (r *BlockRepository) Remove(ctx context.Context, code, deviceID string) (bool, error) {
	cached, cacheErr := r.cache.remove(ctx, code, deviceID)
	if r.archive == nil {
		return cached, cacheErr
	}
	archived, archiveErr := r.archive.remove(ctx, code, deviceID)
	return cached || archived, errors.Join(cacheErr, archiveErr)
}

func sortBlocks(entries []model.BlockEntry) []model.BlockEntry {
	sort.Slice(entries, func(i, j int) bool { return entries[i].When.After(entries[j].When) })
	return entries
}

// ─── Redis ───────────────────────────────────────────────────────────

type redisBlocks struct {
	rdb *redis.Client
}

func (s redisBlocks) add(ctx context.Context, entry model.BlockEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal block entry: %w", err)
	}
	field := config.CacheKey.BlockField(entry.Code, entry.DeviceID)
	if err := s.rdb.HSetNX(ctx, config.CacheKey.BlockListKey(), field, data).Err(); err != nil {
		return fmt.Errorf("add block: %w", err)
	}
	return nil
}

func (s redisBlocks) get(ctx context.Context, code, deviceID string) (*model.BlockEntry, error) {
	raw, err := s.rdb.HGet(ctx, config.CacheKey.BlockListKey(), config.CacheKey.BlockField(code, deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check block: %w", err)
	}
	e := model.BlockEntry{Code: code, DeviceID: deviceID}
	// A damaged value still blocks.
	_ = json.Unmarshal(raw, &e)
	return &e, nil
}

func (s redisBlocks) list(ctx context.Context) ([]model.BlockEntry, error) {
	all, err := s.rdb.HGetAll(ctx, config.CacheKey.BlockListKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	entries := make([]model.BlockEntry, 0, len(all))
	for _, raw := range all {
		var e model.BlockEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s redisBlocks) remove(ctx context.Context, code, deviceID string) (bool, error) {
	n, err := s.rdb.HDel(ctx, config.CacheKey.BlockListKey(), config.CacheKey.BlockField(code, deviceID)).Result()
	if err != nil {
		return false, fmt.Errorf("remove block: %w", err)
	}
	return n > 0, nil
}

// ─── PostgreSQL ──────────────────────────────────────────────────────

type pgBlocks struct {
	pool *pgxpool.Pool
}

func (s pgBlocks) add(ctx context.Context, e model.BlockEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO device_blocks (test_code, device_id, reason, blocked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (test_code, device_id) DO NOTHING`,
		e.Code, e.DeviceID, string(e.Reason), e.When,
	)
	if err != nil {
		return fmt.Errorf("archive block: %w", err)
	}
	return nil
}

func (s pgBlocks) get(ctx context.Context, code, deviceID string) (*model.BlockEntry, error) {
	e := model.BlockEntry{Code: code, DeviceID: deviceID}
	var reason string
	err := s.pool.QueryRow(ctx,
		`SELECT reason, blocked_at FROM device_blocks WHERE test_code = $1 AND device_id = $2`,
		code, deviceID,
	).Scan(&reason, &e.When)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query block: %w", err)
	}
	e.Reason = model.CheatKind(reason)
	return &e, nil
}

func (s pgBlocks) list(ctx context.Context) ([]model.BlockEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT test_code, device_id, reason, blocked_at FROM device_blocks`)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var entries []model.BlockEntry
	for rows.Next() {
		var (
			e      model.BlockEntry
			reason string
		)
		if err := rows.Scan(&e.Code, &e.DeviceID, &reason, &e.When); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		e.Reason = model.CheatKind(reason)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s pgBlocks) remove(ctx context.Context, code, deviceID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM device_blocks WHERE test_code = $1 AND device_id = $2`, code, deviceID,
	)
	if err != nil {
		return false, fmt.Errorf("delete archived block: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
