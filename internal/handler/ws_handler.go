package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/middleware"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
	"github.com/stemsi/exstem-session/internal/session"
	ws "github.com/stemsi/exstem-session/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a running session: clock ticks, warnings and the end
// of the attempt go out, student actions come in.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/stream?token=...
// Upgrades to WebSocket for the live exam loop.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sess, err := h.sessionService.Get(claims.SessionID)
	if err != nil {
		fail(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	ws.Prepare(conn)

	wsLog := h.log.With().
		Str("session_id", sess.ID()).
		Str("test_code", sess.TestCode()).
		Logger()
	wsLog.Info().Msg("Student connected")

	// One writer owns the connection; the reader and the event pump feed it.
	out := make(chan interface{}, 16)
	quit := make(chan struct{})
	writerDone := make(chan struct{})
	go h.writeLoop(conn, sess, out, quit, writerDone, wsLog)

	out <- ws.StateResponse{Event: ws.EventState, State: sess.State()}

	for {
		data, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		reply := h.dispatch(sess, data, wsLog)
		if reply == nil {
			continue
		}
		select {
		case out <- reply:
		case <-writerDone:
		}
	}

	close(quit)
	<-writerDone
}

// writeLoop serialises every write to conn.
func (h *WSHandler) writeLoop(conn *websocket.Conn, sess *session.Session, out <-chan interface{}, quit <-chan struct{}, done chan<- struct{}, log zerolog.Logger) {
	defer close(done)
	ping := time.NewTicker(ws.PingInterval)
	defer ping.Stop()
	events := sess.Events()
	for {
		var msg interface{}
		select {
		case <-quit:
			return
		case <-ping.C:
			if err := ws.WritePing(conn); err != nil {
				log.Debug().Err(err).Msg("Ping failed, closing stream")
				conn.Close()
				return
			}
			continue
		case msg = <-out:
		case ev := <-events:
			msg = ws.FromSessionEvent(ev)
		}
		if msg == nil {
			continue
		}
		if err := ws.WriteTyped(conn, msg); err != nil {
			log.Debug().Err(err).Msg("Write failed, closing stream")
			conn.Close()
			return
		}
	}
}

// dispatch runs one client action and returns the reply, if any.
func (h *WSHandler) dispatch(sess *session.Session, data []byte, log zerolog.Logger) interface{} {
	var env ws.RequestEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errorReply(response.ErrInvalidPayload, response.GetMessage(response.ErrInvalidPayload))
	}

	switch env.Action {
	case ws.ActionPing:
		return ws.PongResponse{Event: ws.EventPong}

	case ws.ActionState:
		return stateReply(sess.State(), nil)

	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Answer.Value == nil {
			return errorReply(response.ErrInvalidPayload, response.GetMessage(response.ErrInvalidPayload))
		}
		return stateReply(sess.SetAnswer(req.Position, req.Answer.Value))

	case ws.ActionClear:
		var req ws.ClearRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return errorReply(response.ErrInvalidPayload, response.GetMessage(response.ErrInvalidPayload))
		}
		return stateReply(sess.ClearAnswer(req.Position))

	case ws.ActionNavigate:
		var req ws.NavigateRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return errorReply(response.ErrInvalidPayload, response.GetMessage(response.ErrInvalidPayload))
		}
		switch req.Direction {
		case ws.DirectionNext:
			return stateReply(sess.Next())
		case ws.DirectionPrev:
			return stateReply(sess.Prev())
		case ws.DirectionGoTo:
			return stateReply(sess.GoTo(req.Position))
		default:
			return errorReply(response.ErrValidation, "direction debe ser next, prev o goto")
		}

	case ws.ActionVisibility:
		var req ws.VisibilityRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return errorReply(response.ErrInvalidPayload, response.GetMessage(response.ErrInvalidPayload))
		}
		// Warnings and the end of the attempt arrive as session events.
		if _, err := sess.Visibility(req.Hidden); err != nil {
			return errReply(err)
		}
		return nil

	case ws.ActionBlur:
		if _, err := sess.Blur(); err != nil {
			return errReply(err)
		}
		return nil

	case ws.ActionFinish:
		if _, err := sess.Finish(); err != nil {
			return errReply(err)
		}
		return nil

	default:
		log.Warn().Str("action", string(env.Action)).Msg("Unknown action")
		return errorReply(response.ErrInvalidPayload, "acción desconocida: "+string(env.Action))
	}
}

func stateReply(st session.State, err error) interface{} {
	if err != nil {
		return errReply(err)
	}
	return ws.StateResponse{Event: ws.EventState, State: st}
}

func errReply(err error) interface{} {
	_, code, msg := errorCode(err)
	return errorReply(code, msg)
}

func errorReply(code response.ErrCode, msg string) interface{} {
	return ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: msg}
}
