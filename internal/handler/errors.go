package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-session/internal/repository"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
	"github.com/stemsi/exstem-session/internal/session"
)

// refusalStatus maps each gate refusal to its HTTP status and error code.
var refusalStatus = map[service.RefusalCode]struct {
	status int
	code   response.ErrCode
}{
	service.RefusalInvalidInput:   {http.StatusUnprocessableEntity, response.ErrInvalidInput},
	service.RefusalDeviceBlocked:  {http.StatusForbidden, response.ErrDeviceBlocked},
	service.RefusalRetakeCooldown: {http.StatusTooManyRequests, response.ErrRetakeCooldown},
	service.RefusalTestNotFound:   {http.StatusNotFound, response.ErrTestNotFound},
	service.RefusalWrongGroup:     {http.StatusForbidden, response.ErrWrongGroup},
	service.RefusalTestClosed:     {http.StatusForbidden, response.ErrTestClosed},
}

// errorCode resolves a domain error to its HTTP status, error code and
// message. Unknown errors become INTERNAL_ERROR.
func errorCode(err error) (int, response.ErrCode, string) {
	var refusal *service.Refusal
	if errors.As(err, &refusal) {
		m, ok := refusalStatus[refusal.Code]
		if !ok {
			return http.StatusInternalServerError, response.ErrInternal, response.GetMessage(response.ErrInternal)
		}
		msg := response.GetMessage(m.code)
		if refusal.Code == service.RefusalRetakeCooldown {
			msg = fmt.Sprintf("Ya completaste esta prueba. Podrás repetirla en %d minutos.", refusal.WaitMinutes)
		}
		return m.status, m.code, msg
	}

	var code response.ErrCode
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, session.ErrSessionAbandoned):
		status, code = http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, session.ErrSessionFinished):
		status, code = http.StatusConflict, response.ErrSessionFinished
	case errors.Is(err, session.ErrNotAllAnswered):
		status, code = http.StatusConflict, response.ErrNotAllAnswered
	case errors.Is(err, session.ErrQuestionOutOfRange):
		status, code = http.StatusBadRequest, response.ErrQuestionOutOfRange
	case errors.Is(err, session.ErrWrongAnswerKind):
		return http.StatusBadRequest, response.ErrValidation, "La respuesta no corresponde al tipo de pregunta."
	case errors.Is(err, repository.ErrResultNotFound):
		status, code = http.StatusNotFound, response.ErrResultNotFound
	case errors.Is(err, service.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, response.ErrInvalidCredentials
	case errors.Is(err, service.ErrAdminDisabled):
		status, code = http.StatusForbidden, response.ErrAdminDisabled
	default:
		code = response.ErrInternal
	}
	return status, code, response.GetMessage(code)
}

// fail writes err as an API error envelope.
func fail(c *gin.Context, err error) {
	status, code, msg := errorCode(err)
	response.FailWithMessage(c, status, code, msg)
}
