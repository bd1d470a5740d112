package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
	ShutdownWait = 5 * time.Second
)

// errEmpty is returned by queue.Pop when nothing arrived within the timeout.
var errEmpty = errors.New("queue empty")

// queue is the list a worker drains. The Redis implementation is the only
// one in production; tests use an in-memory one.
type queue interface {
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	Push(ctx context.Context, payloads ...string) error
}

type redisQueue struct {
	rdb *redis.Client
	key string
}

func (q redisQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errEmpty
	}
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", errEmpty
	}
	return res[1], nil
}

func (q redisQueue) Push(ctx context.Context, payloads ...string) error {
	if len(payloads) == 0 {
		return nil
	}
	args := make([]interface{}, len(payloads))
	for i, p := range payloads {
		args[i] = p
	}
	return q.rdb.RPush(ctx, q.key, args...).Err()
}

// batcher drains a queue of JSON payloads of type T into PostgreSQL. Items
// are flushed when BatchSize accumulate or BatchTimeout passes. A flush tries
// bulk first, then single row by row; rows that still fail go back to the
// queue. bulk may be nil for sinks that must apply items one at a time.
type batcher[T any] struct {
	q       queue
	log     zerolog.Logger
	bulk    func(ctx context.Context, batch []*T) error
	single  func(ctx context.Context, item *T) error
	size    int
	maxAge  time.Duration
	backoff time.Duration
}

func newBatcher[T any](q queue, log zerolog.Logger, bulk func(context.Context, []*T) error, single func(context.Context, *T) error) *batcher[T] {
	return &batcher[T]{
		q:       q,
		log:     log,
		bulk:    bulk,
		single:  single,
		size:    BatchSize,
		maxAge:  BatchTimeout,
		backoff: 2 * time.Second,
	}
}

// run blocks until ctx is cancelled, then flushes what it holds with a
// fresh ShutdownWait context.
func (b *batcher[T]) run(ctx context.Context) {
	buffer := make([]*T, 0, b.size)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= b.size || time.Since(lastFlush) >= b.maxAge) {
			b.flush(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		if ctx.Err() != nil {
			b.shutdown(buffer)
			return
		}

		raw, err := b.q.Pop(ctx, PollTimeout)
		switch {
		case errors.Is(err, errEmpty):
			continue
		case err != nil:
			if ctx.Err() != nil {
				b.shutdown(buffer)
				return
			}
			b.log.Error().Err(err).Msg("Queue read failed, sleeping 3s")
			sleepCtx(ctx, 3*time.Second)
			continue
		}

		item := new(T)
		if err := json.Unmarshal([]byte(raw), item); err != nil {
			// Malformed payloads can never succeed.
			b.log.Error().Err(err).Str("data", raw).Msg("Discarding malformed payload")
			continue
		}
		buffer = append(buffer, item)
	}
}

func (b *batcher[T]) flush(ctx context.Context, batch []*T) {
	if len(batch) == 0 {
		return
	}
	if b.bulk != nil {
		err := b.bulk(ctx, batch)
		if err == nil {
			return
		}
		b.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk write failed, retrying row by row")
	}

	var failed []*T
	for _, item := range batch {
		if err := b.single(ctx, item); err != nil {
			b.log.Error().Err(err).Msg("Row write failed, requeueing")
			failed = append(failed, item)
		}
	}
	if len(failed) > 0 {
		b.requeue(ctx, failed)
	}
}

func (b *batcher[T]) requeue(ctx context.Context, items []*T) {
	payloads := make([]string, 0, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			continue
		}
		payloads = append(payloads, string(raw))
	}
	if err := b.q.Push(ctx, payloads...); err != nil {
		b.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: requeue failed, audit rows lost")
		return
	}
	b.log.Info().Int("count", len(items)).Msg("Requeued failed rows")
	// Back off while the database is down.
	sleepCtx(ctx, b.backoff)
}

func (b *batcher[T]) shutdown(buffer []*T) {
	if len(buffer) == 0 {
		return
	}
	b.log.Info().Int("count", len(buffer)).Msg("Worker stopping, flushing buffer")
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownWait)
	defer cancel()
	b.flush(ctx, buffer)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
