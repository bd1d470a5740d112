package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/handler"
	"github.com/stemsi/exstem-session/internal/middleware"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Session *handler.SessionHandler
	Result  *handler.ResultHandler
	Admin   *handler.AdminHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	publicLimiter *middleware.RateLimiter,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID, middleware.HeaderDeviceID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))

	// Health check.
	router.GET("/health", handlers.System.Health)

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	publicAPI := router.Group("/api/v1")
	{
		publicAPI.POST("/devices", handlers.Session.IssueDevice)
		publicAPI.GET("/grades", handlers.Session.ListGrades)
		publicAPI.GET("/results/:code", publicLimiter.Middleware("results"), handlers.Result.Lookup)
	}

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/admin/login", publicLimiter.Middleware("admin_login"), handlers.Auth.AdminLogin)
		auth.GET("/session/me", middleware.RequireSessionJWT(authService), handlers.Auth.SessionMe)
	}

	// ─── 2. Session Group (Device ID for start, JWT afterwards) ────────
	router.POST("/api/v1/sessions", middleware.RequireDeviceID(), handlers.Session.Start)

	sessionAPI := router.Group("/api/v1/sessions/:id")
	sessionAPI.Use(middleware.RequireSessionJWT(authService))
	{
		sessionAPI.GET("", handlers.Session.GetState)
		sessionAPI.GET("/test", handlers.Session.GetTest)
		sessionAPI.PUT("/answers/:position", handlers.Session.SetAnswer)
		sessionAPI.DELETE("/answers/:position", handlers.Session.ClearAnswer)
		sessionAPI.POST("/navigate", handlers.Session.Navigate)
		sessionAPI.POST("/signals", handlers.Session.Signal)
		sessionAPI.POST("/finish", handlers.Session.Finish)
		sessionAPI.GET("/result", handlers.Session.GetResult)
	}

	// ─── 3. WebSocket Group (Session WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireSessionWSAuth(authService))
	{
		ws.GET("/sessions/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Admin Group (Admin JWT) ────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/blocks", handlers.Admin.ListBlocks)
		adminAPI.DELETE("/blocks", handlers.Admin.Unblock)
		adminAPI.GET("/cheat-logs", handlers.Admin.CheatLog)
		adminAPI.GET("/snapshots/:device_id/:code", handlers.Admin.Snapshot)
		adminAPI.GET("/stats", handlers.Admin.Stats)
		adminAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
