package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/catalog"
	"github.com/stemsi/exstem-session/internal/middleware"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
	"github.com/stemsi/exstem-session/internal/session"
	"github.com/stemsi/exstem-session/internal/validator"
)

// GradeLister lists the selectable groups.
type GradeLister interface {
	Grades() []catalog.Grade
}

// SessionHandler exposes the exam session over REST.
type SessionHandler struct {
	sessionService *service.SessionService
	grades         GradeLister
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService, grades GradeLister, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		grades:         grades,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// IssueDevice godoc
// POST /api/v1/devices
// Issues a device identifier for a client that has none yet.
func (h *SessionHandler) IssueDevice(c *gin.Context) {
	response.Success(c, http.StatusCreated, gin.H{"device_id": h.sessionService.NewDeviceID()})
}

// ListGrades godoc
// GET /api/v1/grades
// Lists the groups a student can pick on the start form.
func (h *SessionHandler) ListGrades(c *gin.Context) {
	grades := h.grades.Grades()
	if grades == nil {
		grades = []catalog.Grade{}
	}
	response.Success(c, http.StatusOK, gin.H{"grades": grades})
}

// Start godoc
// POST /api/v1/sessions
// Runs the start gate and opens (or resumes) a session for the device.
func (h *SessionHandler) Start(c *gin.Context) {
	var req model.StartSessionRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	res, err := h.sessionService.Start(c.Request.Context(), service.StartInput{
		Name:     req.Name,
		Grade:    req.Grade,
		Code:     req.Code,
		DeviceID: middleware.GetDeviceID(c),
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, res)
}

// GetState godoc
// GET /api/v1/sessions/:id
// Returns the current question, progress and remaining time.
func (h *SessionHandler) GetState(c *gin.Context) {
	sess, ok := h.resolve(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, sess.State())
}

// GetTest godoc
// GET /api/v1/sessions/:id/test
// Returns the test header and media without answer keys.
func (h *SessionHandler) GetTest(c *gin.Context) {
	sess, ok := h.resolve(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, sess.Payload())
}

// SetAnswer godoc
// PUT /api/v1/sessions/:id/answers/:position
// Records the answer to one question.
func (h *SessionHandler) SetAnswer(c *gin.Context) {
	sess, ok := h.resolve(c)
	if !ok {
		return
	}
	pos, ok := positionParam(c)
	if !ok {
		return
	}

	var req model.SetAnswerRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}
	if req.Answer.Value == nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"answer": "answer es un campo requerido"})
		return
	}

	st, err := sess.SetAnswer(pos, req.Answer.Value)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, st)
}

// ClearAnswer godoc
// DELETE /api/v1/sessions/:id/answers/:position
// Removes the answer to one question.
func (h *SessionHandler) ClearAnswer(c *gin.Context) {
	sess, ok := h.resolve(c)
	if !ok {
		return
	}
	pos, ok := positionParam(c)
	if !ok {
		return
	}

	st, err := sess.ClearAnswer(pos)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, st)
}

// Navigate godoc
// POST /api/v1/sessions/:id/navigate
// Moves to the next or previous question, or jumps to a position.
func (h *SessionHandler) Navigate(c *gin.Context) {
	sess, ok := h.resolve(c)
	if !ok {
		return
	}

	var req model.NavigateRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	var (
		st  session.State
		err error
	)
	switch {
	case req.Position != nil:
		st, err = sess.GoTo(*req.Position)
	case req.Direction == "next":
		st, err = sess.Next()
	case req.Direction == "prev":
		st, err = sess.Prev()
	default:
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"direction": "se requiere direction o position"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, st)
}

// Signal godoc
// POST /api/v1/sessions/:id/signals
// Reports a visibility change or a window blur to the anti-cheat monitor.
func (h *SessionHandler) Signal(c *gin.Context) {
	sess, ok := h.resolve(c)
	if !ok {
		return
	}

	var req model.SignalRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	var (
		out session.SignalOutcome
		err error
	)
	if req.Signal == "visibility" {
		out, err = sess.Visibility(req.Hidden)
	} else {
		out, err = sess.Blur()
	}
	if err != nil {
		fail(c, err)
		return
	}
	if out.Terminated {
		rec, _ := sess.Result()
		response.Success(c, http.StatusOK, gin.H{"outcome": out, "result": rec.View()})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"outcome": out})
}

// Finish godoc
// POST /api/v1/sessions/:id/finish
// Ends the attempt. Every question must be answered.
func (h *SessionHandler) Finish(c *gin.Context) {
	sess, ok := h.resolve(c)
	if !ok {
		return
	}

	rec, err := sess.Finish()
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, rec.View())
}

// GetResult godoc
// GET /api/v1/sessions/:id/result
// Returns the result of a finished session.
func (h *SessionHandler) GetResult(c *gin.Context) {
	sess, ok := h.resolve(c)
	if !ok {
		return
	}

	rec, done := sess.Result()
	if !done {
		response.Fail(c, http.StatusNotFound, response.ErrResultNotFound)
		return
	}
	response.Success(c, http.StatusOK, rec.View())
}

// resolve loads the session named by the token. The JWT middleware already
// checked that it matches the :id param.
func (h *SessionHandler) resolve(c *gin.Context) (*session.Session, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}
	sess, err := h.sessionService.Get(claims.SessionID)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return sess, true
}

func positionParam(c *gin.Context) (int, bool) {
	pos, err := strconv.Atoi(c.Param("position"))
	if err != nil || pos < 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrQuestionOutOfRange)
		return 0, false
	}
	return pos, true
}
