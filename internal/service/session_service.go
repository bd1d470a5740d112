package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/engine"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/session"
)

// attemptKeyLayout matches the millisecond ISO form used in attempt keys.
const attemptKeyLayout = "2006-01-02T15:04:05.000Z"

// ProgressSource reads saved snapshots and records served question orders.
type ProgressSource interface {
	Get(ctx context.Context, deviceID, code string) (*model.Snapshot, error)
	QueueOrder(ctx context.Context, item model.OrderQueueItem) error
}

// Roster lists the teachers shown as result contacts.
type Roster interface {
	Teachers() []model.Teacher
}

// StartResult is returned to the client after a successful start.
type StartResult struct {
	Token     string            `json:"token"`
	SessionID string            `json:"session_id"`
	DeviceID  string            `json:"device_id"`
	Resumed   bool              `json:"resumed"`
	Test      model.TestPayload `json:"test"`
	State     session.State     `json:"state"`
}

// SessionService starts sessions behind the gate and resolves handles.
type SessionService struct {
	gate     *Gate
	roster   Roster
	registry *Registry
	progress ProgressSource
	store    session.Persistence
	auth     *AuthService
	rng      *LockedRand
	opts     session.Options
	base     zerolog.Logger
	log      zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	gate *Gate,
	roster Roster,
	registry *Registry,
	progress ProgressSource,
	store session.Persistence,
	auth *AuthService,
	rng *LockedRand,
	opts session.Options,
	log zerolog.Logger,
) *SessionService {
	if opts.Codes == nil {
		opts.Codes = rng
	}
	return &SessionService{
		gate:     gate,
		roster:   roster,
		registry: registry,
		progress: progress,
		store:    store,
		auth:     auth,
		rng:      rng,
		opts:     opts,
		base:     log,
		log:      log.With().Str("component", "session_service").Logger(),
	}
}

// NewDeviceID issues an identifier for a client that has none.
func (s *SessionService) NewDeviceID() string {
	return NewDeviceID(s.rng)
}

// Start admits the test-taker, prepares a shuffled copy of the test, resumes
// any saved progress for the same device and code, and starts the clock.
func (s *SessionService) Start(ctx context.Context, in StartInput) (*StartResult, error) {
	adm, err := s.gate.Check(ctx, in)
	if err != nil {
		return nil, err
	}

	// A reload replaces the running session; its snapshot carries over.
	if live, ok := s.registry.Active(in.DeviceID, adm.Code); ok {
		live.Abandon()
		s.registry.Remove(live.ID())
	}

	snap, err := s.progress.Get(ctx, in.DeviceID, adm.Code)
	if err != nil {
		s.log.Warn().Err(err).Str("device_id", in.DeviceID).Msg("Failed to load snapshot, starting fresh")
		snap = nil
	}

	now := time.Now()
	if s.opts.Now != nil {
		now = s.opts.Now()
	}
	prepared := engine.PrepareTest(s.rng, adm.Test)
	id := uuid.New().String()

	sess := session.New(session.Params{
		ID:         id,
		AttemptKey: fmt.Sprintf("%s::%s::%s", adm.Name, adm.Code, now.UTC().Format(attemptKeyLayout)),
		DeviceID:   in.DeviceID,
		Student:    adm.Name,
		Grade:      in.Grade,
		Test:       prepared,
		Teachers:   s.roster.Teachers(),
		Snapshot:   snap,
	}, s.store, s.opts, s.base)

	token, err := s.auth.GenerateSessionToken(id, in.DeviceID, adm.Code, time.Duration(adm.Test.DurationMinutes)*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	s.registry.Add(sess)
	if err := s.progress.QueueOrder(ctx, model.OrderQueueItem{
		SessionID: sess.AttemptKey(),
		DeviceID:  in.DeviceID,
		TestCode:  adm.Code,
		Order:     engine.Order(prepared),
		StartedAt: now.UTC(),
	}); err != nil {
		s.log.Warn().Err(err).Msg("Failed to queue question order")
	}
	sess.Begin()

	s.log.Info().
		Str("session_id", id).
		Str("test_code", adm.Code).
		Str("device_id", in.DeviceID).
		Bool("override", adm.Override).
		Bool("resumed", snap != nil && snap.TestCode == adm.Code).
		Msg("Session started")

	return &StartResult{
		Token:     token,
		SessionID: id,
		DeviceID:  in.DeviceID,
		Resumed:   snap != nil && snap.TestCode == adm.Code,
		Test:      sess.Payload(),
		State:     sess.State(),
	}, nil
}

// Get resolves a session handle.
func (s *SessionService) Get(id string) (*session.Session, error) {
	return s.registry.Get(id)
}
