package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
)

const (
	// HeaderDeviceID carries the client's persistent device identifier.
	HeaderDeviceID = "X-Device-ID"
	// ContextKeyDeviceID is the Gin context key for the validated device id.
	ContextKeyDeviceID = "device_id"
)

// RequireDeviceID rejects requests without a well-formed device identifier.
// Clients obtain one from the device endpoint and keep it in local storage.
func RequireDeviceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderDeviceID)
		if !service.ValidDeviceID(id) {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidDevice)
			return
		}
		c.Set(ContextKeyDeviceID, id)
		c.Next()
	}
}

// GetDeviceID returns the device id set by RequireDeviceID.
func GetDeviceID(c *gin.Context) string {
	return c.GetString(ContextKeyDeviceID)
}
