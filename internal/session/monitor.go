package session

import (
	"time"

	"github.com/stemsi/exstem-session/internal/model"
)

// DefaultLockWindow is the debounce applied to each track after a counted event.
const DefaultLockWindow = time.Second

// End messages shown when a track terminates the session.
const (
	VisibilityEndMessage = "Se detectaron 3 cambios de pestaña: La prueba ha terminado y se ha bloqueado el acceso."
	BlurEndMessage       = "Se detectaron 3 cambios a segundo plano: La prueba ha terminado y se ha bloqueado el acceso."
)

// Warning messages shown on the first counted event of a track.
const (
	VisibilityWarning = "Cambio de pestaña detectado: Hemos detectado que te has salido de la prueba. Puede que haya sido accidental pero, ten cuidado, podrías perder acceso permanente a ella."
	BlurWarning       = "Se detectó que la pestaña quedó en segundo plano: Hemos detectado que minimizaste la ventana de la prueba. Puede que haya sido accidental pero, ten cuidado, podrías perder acceso permanente a ella."
)

// Verdict is what the monitor decided for one signal.
type Verdict struct {
	// Events are the cheat log entries to append, in order.
	Events    []model.CheatEvent
	Warning   string
	Terminate bool
	Reason    model.CheatKind
	Message   string
}

// Counted reports whether the signal passed the lock window.
func (v Verdict) Counted() bool { return len(v.Events) > 0 }

type track struct {
	count       int
	lockedUntil time.Time

	kind      model.CheatKind
	violation model.CheatKind
	warning   string
	message   string
	exceeded  func(count int) bool
}

// Monitor is the two-track anti-cheat state machine. It is not safe for
// concurrent use; the owning session serialises calls.
type Monitor struct {
	now      func() time.Time
	lock     time.Duration
	events   int
	detached bool

	visibility track
	blur       track
}

// NewMonitor returns an attached monitor. now and lock may be zero values,
// in which case time.Now and DefaultLockWindow are used.
func NewMonitor(now func() time.Time, lock time.Duration) *Monitor {
	if now == nil {
		now = time.Now
	}
	if lock <= 0 {
		lock = DefaultLockWindow
	}
	return &Monitor{
		now:  now,
		lock: lock,
		visibility: track{
			kind:      model.CheatVisibilityChange,
			violation: model.CheatVisibilityViolation,
			warning:   VisibilityWarning,
			message:   VisibilityEndMessage,
			exceeded:  func(n int) bool { return n >= 3 },
		},
		blur: track{
			kind:      model.CheatWindowBlur,
			violation: model.CheatBlurViolation,
			warning:   BlurWarning,
			message:   BlurEndMessage,
			exceeded:  func(n int) bool { return n > 2 },
		},
	}
}

// Visibility handles a visibility change. Only transitions to hidden count.
func (m *Monitor) Visibility(hidden bool) Verdict {
	if !hidden {
		return Verdict{}
	}
	return m.signal(&m.visibility)
}

// Blur handles a window blur.
func (m *Monitor) Blur() Verdict {
	return m.signal(&m.blur)
}

// Detach stops all further recording.
func (m *Monitor) Detach() {
	m.detached = true
}

// Detached reports whether the monitor stopped recording.
func (m *Monitor) Detached() bool {
	return m.detached
}

// Counts returns the current visibility and blur counters.
func (m *Monitor) Counts() (visibility, blur int) {
	return m.visibility.count, m.blur.count
}

// Restore seeds the counters of a resumed attempt. A count that would
// already have terminated is lowered to the last one that does not.
func (m *Monitor) Restore(visibility, blur int) {
	m.visibility.restore(visibility)
	m.blur.restore(blur)
}

func (t *track) restore(n int) {
	for n > 0 && t.exceeded(n) {
		n--
	}
	if n < 0 {
		n = 0
	}
	t.count = n
}

func (m *Monitor) signal(t *track) Verdict {
	if m.detached {
		return Verdict{}
	}
	now := m.now()
	if now.Before(t.lockedUntil) {
		return Verdict{}
	}
	t.lockedUntil = now.Add(m.lock)
	t.count++

	v := Verdict{Events: []model.CheatEvent{m.record(now, t.kind)}}
	switch {
	case t.count == 1:
		v.Warning = t.warning
	case t.exceeded(t.count):
		v.Events = append(v.Events, m.record(now, t.violation))
		v.Terminate = true
		v.Reason = t.violation
		v.Message = t.message
		t.count = 0
		t.lockedUntil = time.Time{}
	}
	return v
}

func (m *Monitor) record(now time.Time, kind model.CheatKind) model.CheatEvent {
	m.events++
	return model.CheatEvent{When: now.UTC(), Kind: kind, Count: m.events}
}
