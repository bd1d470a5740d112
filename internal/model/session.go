package model

import (
	"time"
)

// CheatKind enumerates recorded focus/visibility signals.
type CheatKind string

const (
	CheatVisibilityChange    CheatKind = "visibility-change"
	CheatVisibilityViolation CheatKind = "visibility-violation"
	CheatWindowBlur          CheatKind = "window-blur"
	CheatBlurViolation       CheatKind = "blur-violation"
)

// CheatEvent is one append-only cheat log entry. Count is the running number
// of events recorded in the session across both tracks.
type CheatEvent struct {
	When  time.Time `json:"when"`
	Kind  CheatKind `json:"kind"`
	Count int       `json:"count"`
}

// BlockEntry prevents a device from starting a test code again.
type BlockEntry struct {
	Code     string    `json:"code"`
	DeviceID string    `json:"device_id"`
	Reason   CheatKind `json:"reason"`
	When     time.Time `json:"when"`
}

// Snapshot is the persisted progress of an in-flight session. Answers are
// keyed by the question's original (catalog) index, and option references
// inside them by the option's original index. The anti-cheat counters carry
// across reloads.
type Snapshot struct {
	TestCode        string                 `json:"test_code"`
	QuestionIndex   int                    `json:"question_index"`
	Answers         map[int]AnswerEnvelope `json:"answers"`
	RemainingTime   string                 `json:"remaining_time"`
	VisibilityCount int                    `json:"visibility_count,omitempty"`
	BlurCount       int                    `json:"blur_count,omitempty"`
	SavedAt         time.Time              `json:"saved_at"`
}

// StartSessionRequest is the payload for starting an exam.
type StartSessionRequest struct {
	Name  string `json:"name" binding:"required,max=120"`
	Grade string `json:"grade" binding:"required,max=60"`
	Code  string `json:"code" binding:"required,max=64"`
}

// SetAnswerRequest carries one answer as a tagged envelope.
type SetAnswerRequest struct {
	Answer AnswerEnvelope `json:"answer" binding:"required"`
}

// NavigateRequest moves the question pointer. Exactly one of Direction or
// Position is expected.
type NavigateRequest struct {
	Direction string `json:"direction" binding:"omitempty,oneof=next prev"`
	Position  *int   `json:"position" binding:"omitempty,min=0"`
}

// SignalRequest reports a host focus/visibility signal.
type SignalRequest struct {
	Signal string `json:"signal" binding:"required,oneof=visibility blur"`
	Hidden bool   `json:"hidden"`
}

// UnblockRequest re-enables a device for a test code.
type UnblockRequest struct {
	Code     string `json:"code" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
}

// AdminLoginRequest is the payload for the admin login.
type AdminLoginRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}
