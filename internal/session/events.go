package session

import (
	"math/rand"
	"sync"
	"time"

	"github.com/stemsi/exstem-session/internal/model"
)

// EventType names what a session pushes to its listener.
type EventType string

const (
	EventTick       EventType = "tick"
	EventWarning    EventType = "warning"
	EventTerminated EventType = "terminated"
	EventFinished   EventType = "finished"
)

// Event is delivered on Session.Events.
type Event struct {
	Type       EventType `json:"type"`
	Remaining  string    `json:"remaining,omitempty"`
	Message    string    `json:"message,omitempty"`
	ResultCode string    `json:"result_code,omitempty"`
}

// State is the student-facing view of a running session.
type State struct {
	SessionID       string                   `json:"session_id"`
	TestCode        string                   `json:"test_code"`
	Position        int                      `json:"position"`
	Total           int                      `json:"total"`
	Answered        int                      `json:"answered"`
	CanFinish       bool                     `json:"can_finish"`
	Remaining       string                   `json:"remaining"`
	Question        model.QuestionForStudent `json:"question"`
	Answer          *model.AnswerEnvelope    `json:"answer,omitempty"`
	Finished        bool                     `json:"finished"`
	Terminated      bool                     `json:"terminated"`
	ResultCode      string                   `json:"result_code,omitempty"`
	VisibilityCount int                      `json:"visibility_count"`
	BlurCount       int                      `json:"blur_count"`
}

// SignalOutcome tells the caller what a focus signal did.
type SignalOutcome struct {
	Counted    bool   `json:"counted"`
	Warning    string `json:"warning,omitempty"`
	Terminated bool   `json:"terminated"`
	Message    string `json:"message,omitempty"`
}

// lockedSource makes a *rand.Rand safe to share between sessions.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedSource) Int63n(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int63n(n)
}

var (
	sharedCodes     *lockedSource
	sharedCodesOnce sync.Once
)

func defaultCodes() CodeSource {
	sharedCodesOnce.Do(func() {
		sharedCodes = &lockedSource{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
	})
	return sharedCodes
}

// NewCodeSource returns a goroutine-safe source seeded from the clock.
func NewCodeSource() CodeSource {
	return &lockedSource{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}
