package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/catalog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/database"
	"github.com/stemsi/exstem-session/internal/handler"
	"github.com/stemsi/exstem-session/internal/logger"
	"github.com/stemsi/exstem-session/internal/middleware"
	"github.com/stemsi/exstem-session/internal/repository"
	"github.com/stemsi/exstem-session/internal/router"
	"github.com/stemsi/exstem-session/internal/service"
	"github.com/stemsi/exstem-session/internal/session"
	"github.com/stemsi/exstem-session/internal/validator"
	"github.com/stemsi/exstem-session/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Session")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Load Catalog ──────────────────────────────────────────────────
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("Failed to load catalog")
	}
	log.Info().
		Int("tests", len(cat.Codes())).
		Int("teachers", len(cat.Teachers())).
		Int("grades", len(cat.Grades())).
		Msg("Catalog loaded")

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	progressRepo := repository.NewProgressRepository(rdb, pool)
	blockRepo := repository.NewBlockRepository(rdb, pool, log)
	attemptRepo := repository.NewAttemptRepository(rdb, cfg.RetakeCooldown)
	cheatLogRepo := repository.NewCheatLogRepository(rdb, pool)
	resultRepo := repository.NewResultRepository(rdb, pool, log)

	store := &repository.SessionStore{
		Progress:  progressRepo,
		Blocks:    blockRepo,
		Attempts:  attemptRepo,
		CheatLogs: cheatLogRepo,
		Results:   resultRepo,
	}

	// ─── Initialize Services ──────────────────────────────────────────
	rng := service.NewLockedRand(0)
	authService := service.NewAuthService(cfg)
	gate := service.NewGate(blockRepo, attemptRepo, cat, cfg.RetakeCooldown, log)
	registry := service.NewRegistry(cfg.SessionRetention, log)
	sessionService := service.NewSessionService(gate, cat, registry, progressRepo, store, authService, rng, session.Options{
		LockWindow:         cfg.CheatLockWindow,
		SnapshotEveryTicks: cfg.SnapshotEveryTicks,
	}, log)
	resultService := service.NewResultService(resultRepo)
	adminService := service.NewAdminService(blockRepo, attemptRepo, progressRepo, cheatLogRepo, log)

	stopSweeper := registry.StartSweeper()

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, log),
		Session: handler.NewSessionHandler(sessionService, cat, log),
		Result:  handler.NewResultHandler(resultService),
		Admin:   handler.NewAdminHandler(adminService, registry, log),
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		System:  handler.NewSystemHandler(pool, rdb, registry, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	for _, w := range []interface{ Start(context.Context) }{
		worker.NewCheatWorker(pool, rdb, log),
		worker.NewAutosaveWorker(pool, rdb, log),
		worker.NewResultWorker(pool, rdb, log),
		worker.NewQuestionOrderWorker(pool, rdb, log),
	} {
		workers.Add(1)
		go func(w interface{ Start(context.Context) }) {
			defer workers.Done()
			w.Start(workerCtx)
		}(w)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	publicLimiter := middleware.NewRateLimiter(cfg.ResultLookupRate, time.Minute)
	defer publicLimiter.Close()
	r := router.SetupRouter(authService, handlers, publicLimiter, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Park running sessions; their snapshots let students resume after restart.
	stopSweeper()
	registry.AbandonAll()

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
