// Package session runs one exam attempt: it owns the prepared test, the
// answer store, the countdown and the anti-cheat monitor, and serialises every
// operation on them.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/engine"
	"github.com/stemsi/exstem-session/internal/model"
)

// Domain errors.
var (
	ErrSessionFinished    = errors.New("session already finished")
	ErrQuestionOutOfRange = errors.New("question position out of range")
	ErrNotAllAnswered     = errors.New("all questions must be answered before finishing")
	ErrSessionAbandoned   = errors.New("session replaced by a newer one")
	ErrWrongAnswerKind    = errors.New("answer kind does not fit the question type")
)

// storageTimeout bounds every best-effort persistence call.
const storageTimeout = 3 * time.Second

// maxCodeDraws caps result code redraws after collisions.
const maxCodeDraws = 5

// Params describes a new attempt.
type Params struct {
	ID         string
	AttemptKey string
	DeviceID   string
	Student    string
	Grade      string
	// Test must already be prepared (shuffled and remapped).
	Test     *model.Test
	Teachers []model.Teacher
	// Snapshot, when it belongs to the same test code, resumes the attempt.
	Snapshot *model.Snapshot
}

// Options tune the session runtime.
type Options struct {
	Now                func() time.Time
	LockWindow         time.Duration
	TickInterval       time.Duration
	SnapshotEveryTicks int
	Codes              CodeSource
	EventBuffer        int
}

// Session is the explicit context of one attempt. All exported methods are
// safe for concurrent use and run to completion one at a time.
type Session struct {
	mu sync.Mutex

	id         string
	attemptKey string
	deviceID   string
	student    string
	grade      string
	test       *model.Test
	teachers   []model.Teacher

	current   int
	answers   *engine.AnswerStore
	clock     *Clock
	monitor   *Monitor
	cheatLog  []model.CheatEvent
	startedAt time.Time
	ticks     int
	started   bool

	terminated bool
	abandoned  bool
	finished   bool
	finishedAt time.Time
	result     *model.ResultRecord

	events chan Event
	done   chan struct{}

	store Persistence
	opts  Options
	log   zerolog.Logger
}

// New builds a session, resuming from p.Snapshot when it matches the test.
// The clock does not run until Begin.
func New(p Params, store Persistence, opts Options, log zerolog.Logger) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if store == nil {
		store = NopPersistence{}
	}

	s := &Session{
		id:         p.ID,
		attemptKey: p.AttemptKey,
		deviceID:   p.DeviceID,
		student:    p.Student,
		grade:      p.Grade,
		test:       p.Test,
		teachers:   p.Teachers,
		answers:    engine.NewAnswerStore(),
		monitor:    NewMonitor(opts.Now, opts.LockWindow),
		startedAt:  opts.Now(),
		events:     make(chan Event, opts.EventBuffer),
		done:       make(chan struct{}),
		store:      store,
		opts:       opts,
		log: log.With().
			Str("component", "session").
			Str("session_id", p.ID).
			Str("test_code", p.Test.Code).
			Str("device_id", p.DeviceID).
			Logger(),
	}

	remaining := p.Test.DurationMinutes * 60
	if snap := p.Snapshot; snap != nil && snap.TestCode == p.Test.Code {
		if snap.QuestionIndex >= 0 && snap.QuestionIndex < len(p.Test.Questions) {
			s.current = snap.QuestionIndex
		}
		s.answers.RestoreByOriginalIndex(p.Test.Questions, snap.Answers)
		s.monitor.Restore(snap.VisibilityCount, snap.BlurCount)
		if secs, err := ParseMMSS(snap.RemainingTime); err == nil {
			remaining = secs
		} else if snap.RemainingTime != "" {
			s.log.Warn().Err(err).Msg("Ignoring unreadable remaining time in snapshot")
		}
		s.log.Info().
			Int("question_index", s.current).
			Int("answers", s.answers.Len()).
			Int("remaining_seconds", remaining).
			Msg("Session resumed from snapshot")
	}
	s.clock = NewClock(remaining)
	return s
}

// Begin launches the countdown. Calling it twice has no effect.
func (s *Session) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.live() != nil {
		return
	}
	s.started = true
	s.clock.Start(s.opts.TickInterval, s.Tick)
}

// ID returns the session handle.
func (s *Session) ID() string { return s.id }

// AttemptKey returns the composite key used for the cheat log.
func (s *Session) AttemptKey() string { return s.attemptKey }

// DeviceID returns the device that started the attempt.
func (s *Session) DeviceID() string { return s.deviceID }

// TestCode returns the code of the test being taken.
func (s *Session) TestCode() string { return s.test.Code }

// Payload returns the student-facing test in session order.
func (s *Session) Payload() model.TestPayload { return s.test.Payload() }

// Events delivers ticks, warnings and the terminal event.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed when the session finishes or is abandoned.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current view.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// SetAnswer records v for the question at position and persists progress.
// v must be the variant the question type is scored against.
func (s *Session) SetAnswer(position int, v model.AnswerValue) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(position); err != nil {
		return State{}, err
	}
	q := &s.test.Questions[position]
	if v != nil {
		if want := model.ExpectedKind(q.Type); v.Kind() != want {
			return State{}, fmt.Errorf("%w: %s question takes %s, got %s", ErrWrongAnswerKind, q.Type, want, v.Kind())
		}
	}
	s.answers.Set(q.Title, v)
	s.saveSnapshot()
	return s.stateLocked(), nil
}

// ClearAnswer removes the answer at position.
func (s *Session) ClearAnswer(position int) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(position); err != nil {
		return State{}, err
	}
	s.answers.Delete(s.test.Questions[position].Title)
	s.saveSnapshot()
	return s.stateLocked(), nil
}

// Next moves to the following question, staying on the last one.
func (s *Session) Next() (State, error) {
	return s.move(func(cur int) int { return cur + 1 })
}

// Prev moves to the previous question, staying on the first one.
func (s *Session) Prev() (State, error) {
	return s.move(func(cur int) int { return cur - 1 })
}

// GoTo jumps to position.
func (s *Session) GoTo(position int) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(position); err != nil {
		return State{}, err
	}
	s.current = position
	s.saveSnapshot()
	return s.stateLocked(), nil
}

func (s *Session) move(step func(int) int) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.live(); err != nil {
		return State{}, err
	}
	next := step(s.current)
	if next >= 0 && next < len(s.test.Questions) {
		s.current = next
	}
	s.saveSnapshot()
	return s.stateLocked(), nil
}

// Visibility feeds a visibility change from the host.
func (s *Session) Visibility(hidden bool) (SignalOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.live(); err != nil {
		return SignalOutcome{}, err
	}
	return s.applyVerdict(s.monitor.Visibility(hidden)), nil
}

// Blur feeds a window blur from the host.
func (s *Session) Blur() (SignalOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.live(); err != nil {
		return SignalOutcome{}, err
	}
	return s.applyVerdict(s.monitor.Blur()), nil
}

// Finish ends the attempt on the student's request. Every question must be
// answered first.
func (s *Session) Finish() (*model.ResultRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.live(); err != nil {
		return nil, err
	}
	if !s.answers.AllAnswered(s.test.Questions) {
		return nil, ErrNotAllAnswered
	}
	s.finishLocked(false, "")
	return s.result, nil
}

// Tick advances the clock by one step and finishes the attempt at zero.
// The countdown goroutine calls it once per interval.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live() != nil {
		return
	}
	display, expired := s.clock.Tick()
	s.emit(Event{Type: EventTick, Remaining: display})
	if expired {
		s.log.Info().Msg("Time is up, finishing session")
		s.finishLocked(false, "")
		return
	}
	s.ticks++
	if n := s.opts.SnapshotEveryTicks; n > 0 && s.ticks%n == 0 {
		s.saveSnapshot()
	}
}

// Result returns the result record once the session has finished.
func (s *Session) Result() (*model.ResultRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.result != nil
}

// Finished reports whether the session ended and when.
func (s *Session) Finished() (bool, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished, s.finishedAt
}

// Abandon releases the clock and the monitor without producing a result
// and closes Done. The last snapshot stays so the attempt can resume
// elsewhere; every later operation fails with ErrSessionAbandoned.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live() != nil {
		return
	}
	s.saveSnapshot()
	s.teardown()
	s.abandoned = true
	close(s.done)
}

// ─── Internals (mu held) ─────────────────────────────────────────────

// live rejects operations once the attempt is over.
func (s *Session) live() error {
	if s.abandoned {
		return ErrSessionAbandoned
	}
	if s.finished {
		return ErrSessionFinished
	}
	return nil
}

func (s *Session) guard(position int) error {
	if err := s.live(); err != nil {
		return err
	}
	if position < 0 || position >= len(s.test.Questions) {
		return fmt.Errorf("%w: %d", ErrQuestionOutOfRange, position)
	}
	return nil
}

func (s *Session) applyVerdict(v Verdict) SignalOutcome {
	out := SignalOutcome{Counted: v.Counted(), Warning: v.Warning}
	for _, ev := range v.Events {
		s.cheatLog = append(s.cheatLog, ev)
		s.persist("append cheat event", func(ctx context.Context) error {
			return s.store.AppendCheatEvent(ctx, s.attemptKey, ev)
		})
	}
	if v.Warning != "" {
		s.emit(Event{Type: EventWarning, Message: v.Warning})
	}
	if v.Counted() && !v.Terminate {
		s.saveSnapshot()
	}
	if v.Terminate {
		s.terminated = true
		entry := model.BlockEntry{
			Code:     s.test.Code,
			DeviceID: s.deviceID,
			Reason:   v.Reason,
			When:     s.opts.Now().UTC(),
		}
		s.persist("add block", func(ctx context.Context) error {
			return s.store.AddBlock(ctx, entry)
		})
		s.log.Warn().Str("reason", string(v.Reason)).Msg("Session terminated by anti-cheat monitor")
		s.finishLocked(true, v.Message)
		out.Terminated = true
		out.Message = v.Message
	}
	return out
}

func (s *Session) finishLocked(forced bool, endMessage string) {
	if s.finished {
		return
	}
	s.finished = true
	s.finishedAt = s.opts.Now()
	s.teardown()

	codes := s.opts.Codes
	if codes == nil {
		codes = defaultCodes()
	}
	rec := Assemble(Assembly{
		AttemptKey: s.attemptKey,
		DeviceID:   s.deviceID,
		Student:    s.student,
		Grade:      s.grade,
		Test:       s.test,
		Answers:    s.answers,
		CheatLog:   s.cheatLog,
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
		Forced:     forced,
		EndMessage: endMessage,
		Teachers:   s.teachers,
		ResultCode: NewResultCode(codes),
	})
	s.result = rec

	s.saveResult(rec, codes)
	if forced {
		// The attempt stays inspectable after a forced termination.
		s.saveSnapshot()
	} else {
		s.persist("mark attempt", func(ctx context.Context) error {
			return s.store.MarkAttempt(ctx, s.test.Code, s.deviceID, s.finishedAt)
		})
		s.persist("delete snapshot", func(ctx context.Context) error {
			return s.store.DeleteSnapshot(ctx, s.deviceID, s.test.Code)
		})
	}

	s.log.Info().
		Bool("forced", forced).
		Float64("score", rec.Score).
		Str("result_code", rec.ResultCode).
		Msg("Session finished")

	typ := EventFinished
	if forced {
		typ = EventTerminated
	}
	s.emit(Event{Type: typ, Message: endMessage, ResultCode: rec.ResultCode})
	close(s.done)
}

// teardown releases the clock and the monitor on every exit path.
func (s *Session) teardown() {
	s.clock.Stop()
	s.monitor.Detach()
}

func (s *Session) snapshot() model.Snapshot {
	visibility, blur := s.monitor.Counts()
	return model.Snapshot{
		TestCode:        s.test.Code,
		QuestionIndex:   s.current,
		Answers:         s.answers.ByOriginalIndex(s.test.Questions),
		RemainingTime:   s.clock.Display(),
		VisibilityCount: visibility,
		BlurCount:       blur,
		SavedAt:         s.opts.Now().UTC(),
	}
}

// saveResult stores rec, drawing a fresh code while the current one is
// taken. A record is never written over another.
func (s *Session) saveResult(rec *model.ResultRecord, codes CodeSource) {
	for draw := 1; ; draw++ {
		var err error
		s.persist("save result", func(ctx context.Context) error {
			err = s.store.SaveResult(ctx, rec)
			if errors.Is(err, ErrResultCodeTaken) {
				return nil
			}
			return err
		})
		if !errors.Is(err, ErrResultCodeTaken) {
			return
		}
		if draw == maxCodeDraws {
			s.log.Error().Str("result_code", rec.ResultCode).Msg("No free result code, result kept in memory only")
			return
		}
		s.log.Warn().Str("result_code", rec.ResultCode).Msg("Result code collision, drawing another")
		rec.ResultCode = NewResultCode(codes)
	}
}

func (s *Session) saveSnapshot() {
	snap := s.snapshot()
	s.persist("save snapshot", func(ctx context.Context) error {
		return s.store.SaveSnapshot(ctx, s.deviceID, snap)
	})
}

func (s *Session) persist(op string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("Persistence failed, continuing")
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Debug().Str("event", string(ev.Type)).Msg("Event buffer full, dropping")
	}
}

func (s *Session) stateLocked() State {
	st := State{
		SessionID:  s.id,
		TestCode:   s.test.Code,
		Position:   s.current,
		Total:      len(s.test.Questions),
		Answered:   s.answers.AnsweredCount(s.test.Questions),
		Remaining:  s.clock.Display(),
		Finished:   s.finished,
		Terminated: s.terminated,
	}
	st.CanFinish = !s.finished && st.Answered == st.Total
	if s.current < len(s.test.Questions) {
		q := &s.test.Questions[s.current]
		st.Question = q.ForStudent(s.current)
		if v := s.answers.Get(q.Title); v != nil {
			st.Answer = &model.AnswerEnvelope{Value: v}
		}
	}
	if s.result != nil {
		st.ResultCode = s.result.ResultCode
	}
	st.VisibilityCount, st.BlurCount = s.monitor.Counts()
	return st
}
