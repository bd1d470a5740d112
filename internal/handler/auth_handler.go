package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/middleware"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
	"github.com/stemsi/exstem-session/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log.With().Str("component", "auth_handler").Logger(),
	}
}

// AdminLogin godoc
// POST /api/v1/auth/admin/login
// Exchanges the admin password for an admin token.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req model.AdminLoginRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	token, err := h.authService.AdminLogin(req.Password)
	if err != nil {
		h.log.Warn().Err(err).Str("ip", c.ClientIP()).Msg("Admin login refused")
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"token": token})
}

// SessionMe godoc
// GET /api/v1/auth/session/me
// Returns the claims bound to the session token.
func (h *AuthHandler) SessionMe(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session_id": claims.SessionID,
		"device_id":  claims.DeviceID,
		"test_code":  claims.TestCode,
		"expires_at": claims.ExpiresAt.Time,
	})
}
