package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
)

// ResultHandler serves the public result lookup.
type ResultHandler struct {
	resultService *service.ResultService
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService) *ResultHandler {
	return &ResultHandler{resultService: resultService}
}

// Lookup godoc
// GET /api/v1/results/:code
// Returns a result by its 11-digit code, redacted per the test's flags.
func (h *ResultHandler) Lookup(c *gin.Context) {
	code := c.Param("code")
	if len(code) != 11 {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	view, err := h.resultService.Lookup(c.Request.Context(), code)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}
