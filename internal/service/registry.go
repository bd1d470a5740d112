package service

import (
	"errors"
	"sync"
	"time"

	"github.com/jasonlvhit/gocron"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/session"
)

// ErrSessionNotFound is returned for unknown or swept session handles.
var ErrSessionNotFound = errors.New("session not found")

// Registry indexes live sessions by handle and by (device, test code).
// Finished sessions stay readable for the retention period, then a gocron
// job sweeps them.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*session.Session
	active    map[string]string
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(retention time.Duration, log zerolog.Logger) *Registry {
	return &Registry{
		sessions:  make(map[string]*session.Session),
		active:    make(map[string]string),
		retention: retention,
		now:       time.Now,
		log:       log.With().Str("component", "session_registry").Logger(),
	}
}

func activeKey(deviceID, code string) string {
	return deviceID + "::" + code
}

// Add registers s as the live session of its device for its test.
func (r *Registry) Add(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
	r.active[activeKey(s.DeviceID(), s.TestCode())] = s.ID()
}

// Get returns the session with the given handle.
func (r *Registry) Get(id string) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Active returns the unfinished session of a device for a test, if any.
func (r *Registry) Active(deviceID, code string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.active[activeKey(deviceID, code)]
	if !ok {
		return nil, false
	}
	s := r.sessions[id]
	if done, _ := s.Finished(); done {
		return nil, false
	}
	return s, true
}

// Remove drops a session from both indexes.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) {
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	key := activeKey(s.DeviceID(), s.TestCode())
	if r.active[key] == id {
		delete(r.active, key)
	}
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Occupancy splits the registered sessions by state. ByTest counts only
// running sessions.
type Occupancy struct {
	Running  int            `json:"running"`
	Finished int            `json:"finished"`
	ByTest   map[string]int `json:"by_test"`
}

// Occupancy reports how many registered sessions are running or finished.
func (r *Registry) Occupancy() Occupancy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o := Occupancy{ByTest: make(map[string]int)}
	for _, s := range r.sessions {
		if done, _ := s.Finished(); done {
			o.Finished++
			continue
		}
		o.Running++
		o.ByTest[s.TestCode()]++
	}
	return o
}

// Sweep removes sessions that finished more than the retention ago and
// returns how many went.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.retention)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		done, at := s.Finished()
		if done && at.Before(cutoff) {
			r.removeLocked(id)
			removed++
		}
	}
	if removed > 0 {
		r.log.Info().Int("removed", removed).Int("remaining", len(r.sessions)).Msg("Swept finished sessions")
	}
	return removed
}

// StartSweeper runs Sweep every minute until the returned stop is called.
func (r *Registry) StartSweeper() (stop func()) {
	scheduler := gocron.NewScheduler()
	if err := scheduler.Every(1).Minutes().Do(r.Sweep); err != nil {
		r.log.Error().Err(err).Msg("Failed to schedule session sweep")
		return func() {}
	}
	stopped := scheduler.Start()
	return func() {
		stopped <- true
		scheduler.Clear()
	}
}

// AbandonAll releases every live session, keeping their snapshots.
func (r *Registry) AbandonAll() {
	r.mu.RLock()
	sessions := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		s.Abandon()
	}
}
