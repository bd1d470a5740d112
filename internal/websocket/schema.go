package websocket

import (
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer     Action = "answer"
	ActionClear      Action = "clear"
	ActionNavigate   Action = "navigate"
	ActionVisibility Action = "visibility"
	ActionBlur       Action = "blur"
	ActionFinish     Action = "finish"
	ActionState      Action = "state"
	ActionPing       Action = "ping"
)

// Navigation directions.
const (
	DirectionNext = "next"
	DirectionPrev = "prev"
	DirectionGoTo = "goto"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest records the answer to the question at Position.
type AnswerRequest struct {
	Action   Action               `json:"action"`
	Position int                  `json:"position"`
	Answer   model.AnswerEnvelope `json:"answer"`
}

// ClearRequest removes the answer at Position.
type ClearRequest struct {
	Action   Action `json:"action"`
	Position int    `json:"position"`
}

// NavigateRequest moves the cursor. Position is only read for "goto".
type NavigateRequest struct {
	Action    Action `json:"action"`
	Direction string `json:"direction"`
	Position  int    `json:"position"`
}

// VisibilityRequest reports a page visibility change.
type VisibilityRequest struct {
	Action Action `json:"action"`
	Hidden bool   `json:"hidden"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState      Event = "state"
	EventTick       Event = "tick"
	EventWarning    Event = "warning"
	EventTerminated Event = "terminated"
	EventFinished   Event = "finished"
	EventError      Event = "error"
	EventPong       Event = "pong"
)

type StateResponse struct {
	Event Event         `json:"event"`
	State session.State `json:"state"`
}

type TickResponse struct {
	Event     Event  `json:"event"`
	Remaining string `json:"remaining"`
}

type WarningResponse struct {
	Event   Event  `json:"event"`
	Message string `json:"message"`
}

// EndResponse announces the end of the attempt. Message is set only when
// the anti-cheat monitor ended it.
type EndResponse struct {
	Event      Event  `json:"event"`
	ResultCode string `json:"result_code"`
	Message    string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// FromSessionEvent converts a session event to its wire form.
func FromSessionEvent(ev session.Event) interface{} {
	switch ev.Type {
	case session.EventTick:
		return TickResponse{Event: EventTick, Remaining: ev.Remaining}
	case session.EventWarning:
		return WarningResponse{Event: EventWarning, Message: ev.Message}
	case session.EventTerminated:
		return EndResponse{Event: EventTerminated, ResultCode: ev.ResultCode, Message: ev.Message}
	case session.EventFinished:
		return EndResponse{Event: EventFinished, ResultCode: ev.ResultCode}
	default:
		return nil
	}
}
