package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
	"github.com/stemsi/exstem-session/internal/validator"
)

// LiveCounter reports the sessions held in memory.
type LiveCounter interface {
	Len() int
	Occupancy() service.Occupancy
}

// AdminHandler exposes block list management and audit reads.
type AdminHandler struct {
	adminService *service.AdminService
	registry     LiveCounter
	log          zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminService *service.AdminService, registry LiveCounter, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		registry:     registry,
		log:          log.With().Str("component", "admin_handler").Logger(),
	}
}

// ListBlocks godoc
// GET /api/v1/admin/blocks?page=1&per_page=50
// Lists blocked (code, device) pairs, newest first.
func (h *AdminHandler) ListBlocks(c *gin.Context) {
	blocks, err := h.adminService.ListBlocks(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list blocks")
		fail(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(response.DefaultPerPage)))
	p := response.NewPagination(page, perPage, len(blocks))
	start, end := p.Bounds()

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"blocks": blocks[start:end]}, p)
}

// Unblock godoc
// DELETE /api/v1/admin/blocks
// Re-enables a device for a test and clears its cooldown and snapshot.
func (h *AdminHandler) Unblock(c *gin.Context) {
	var req model.UnblockRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	existed, err := h.adminService.Unblock(c.Request.Context(), req.Code, req.DeviceID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to unblock")
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"was_blocked": existed})
}

// CheatLog godoc
// GET /api/v1/admin/cheat-logs?session=<attempt key>
// Returns the recorded focus and visibility events of one attempt.
func (h *AdminHandler) CheatLog(c *gin.Context) {
	key := c.Query("session")
	if key == "" {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"session": "session es un campo requerido"})
		return
	}

	events, err := h.adminService.CheatLog(c.Request.Context(), key)
	if err != nil {
		fail(c, err)
		return
	}
	if events == nil {
		events = []model.CheatEvent{}
	}
	response.Success(c, http.StatusOK, gin.H{"events": events})
}

// Snapshot godoc
// GET /api/v1/admin/snapshots/:device_id/:code
// Returns the retained progress snapshot of a device for a test.
func (h *AdminHandler) Snapshot(c *gin.Context) {
	snap, err := h.adminService.Snapshot(c.Request.Context(), c.Param("device_id"), c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	if snap == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, snap)
}

// Stats godoc
// GET /api/v1/admin/stats
// Returns the sessions held in memory, split into running and finished.
func (h *AdminHandler) Stats(c *gin.Context) {
	if h.registry == nil {
		fail(c, errors.New("registry not configured"))
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"live_sessions": h.registry.Len(),
		"occupancy":     h.registry.Occupancy(),
	})
}
