package handler

import (
	"context"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
)

const (
	metricsInterval = 7 * time.Second
	healthTimeout   = 2 * time.Second
)

// SystemHandler reports health and streams session, queue and runtime
// metrics to the admin console.
type SystemHandler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	registry  LiveCounter
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, registry LiveCounter, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		pool:      pool,
		rdb:       rdb,
		registry:  registry,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

func (h *SystemHandler) uptime() time.Duration {
	return time.Since(h.startTime).Truncate(time.Second)
}

// Health godoc
// GET /health
// Sessions keep running on in-memory state while PostgreSQL or Redis is
// down, so a failed ping reports "degraded" with a 200.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := "ok"
	checks := map[string]string{}
	for name, ping := range map[string]func(context.Context) error{
		"postgres": h.pool.Ping,
		"redis":    func(ctx context.Context) error { return h.rdb.Ping(ctx).Err() },
	} {
		checks[name] = "ok"
		if err := ping(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
		}
	}

	response.Success(c, http.StatusOK, gin.H{
		"status": status,
		"checks": checks,
		"uptime": h.uptime().String(),
	})
}

type runtimeMetrics struct {
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
}

type systemMetrics struct {
	Timestamp     int64             `json:"timestamp"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Sessions      service.Occupancy `json:"sessions"`
	// Queues holds the backlog of each persistence queue, or -1 when Redis
	// could not be read.
	Queues  map[string]int64 `json:"queues"`
	Runtime runtimeMetrics   `json:"runtime"`
}

// SystemMetricsSSE godoc
// GET /api/v1/admin/system/metrics
// Emits a "metrics" event on connect and every metricsInterval after.
func (h *SystemHandler) SystemMetricsSSE(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	h.log.Info().Msg("Admin connected to system metrics stream")
	defer h.log.Info().Msg("Admin disconnected from system metrics stream")

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.SSEvent("metrics", h.collect(ctx))
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			c.SSEvent("metrics", h.collect(ctx))
			return true
		}
	})
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return systemMetrics{
		Timestamp:     time.Now().Unix(),
		UptimeSeconds: int64(h.uptime().Seconds()),
		Sessions:      h.registry.Occupancy(),
		Queues:        h.queueBacklog(ctx),
		Runtime: runtimeMetrics{
			Goroutines: runtime.NumGoroutine(),
			HeapAlloc:  ms.HeapAlloc,
			HeapSys:    ms.HeapSys,
			NumGC:      ms.NumGC,
			GoVersion:  runtime.Version(),
		},
	}
}

// queueBacklog reads every queue length in one pipelined round trip.
func (h *SystemHandler) queueBacklog(ctx context.Context) map[string]int64 {
	queues := config.WorkerKey.Queues()
	out := make(map[string]int64, len(queues))

	pipe := h.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(queues))
	for i, q := range queues {
		cmds[i] = pipe.LLen(ctx, q.Key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Failed to read queue backlog")
	}
	for i, q := range queues {
		n, err := cmds[i].Result()
		if err != nil {
			n = -1
		}
		out[q.Name] = n
	}
	return out
}
