package validator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type startBody struct {
	Name     string `json:"name" binding:"required"`
	DeviceID string `json:"device_id" binding:"required,device_id"`
}

func bindBody(t *testing.T, body string) map[string]string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var dst startBody
	return Bind(c, &dst)
}

func TestBind(t *testing.T) {
	Setup()

	assert.Nil(t, bindBody(t, `{"name": "Ana", "device_id": "dev-abc123xyz"}`))

	fields := bindBody(t, `{"device_id": "phone"}`)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "device_id")
	assert.Contains(t, fields["device_id"], "dispositivo")

	fields = bindBody(t, `{"name": `)
	assert.Contains(t, fields, "detail")
}
