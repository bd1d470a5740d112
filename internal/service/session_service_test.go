package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	svc      *SessionService
	store    *memStore
	progress *fakeProgress
	registry *Registry
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	progress := newFakeProgress()
	blocks := newFakeBlocks()
	attempts := newFakeAttempts()
	store := &memStore{progress: progress, blocks: blocks, attempts: attempts, results: make(map[string]*model.ResultRecord)}
	catalog := fakeCatalog{"HISTORIA-01": historyTest()}

	registry := NewRegistry(time.Minute, zerolog.Nop())
	t.Cleanup(registry.AbandonAll)

	svc := NewSessionService(
		NewGate(blocks, attempts, catalog, time.Hour, zerolog.Nop()),
		catalog,
		registry,
		progress,
		store,
		NewAuthService(testConfig(t)),
		NewLockedRand(3),
		session.Options{TickInterval: time.Hour},
		zerolog.Nop(),
	)
	return &serviceFixture{svc: svc, store: store, progress: progress, registry: registry}
}

func startInput(code string) StartInput {
	return StartInput{Name: validName, Grade: "Tercero A", Code: code, DeviceID: deviceA}
}

func TestSessionService_Start(t *testing.T) {
	f := newServiceFixture(t)

	res, err := f.svc.Start(context.Background(), startInput("HISTORIA-01"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, deviceA, res.DeviceID)
	assert.False(t, res.Resumed)
	assert.Len(t, res.Test.Questions, 2)
	assert.Equal(t, "20:00", res.State.Remaining)

	sess, err := f.svc.Get(res.SessionID)
	require.NoError(t, err)
	assert.Contains(t, sess.AttemptKey(), validName+"::HISTORIA-01::")

	require.Len(t, f.progress.orders, 1)
	order := append([]int(nil), f.progress.orders[0].Order...)
	sort.Ints(order)
	assert.Equal(t, []int{0, 1}, order)
}

func TestSessionService_CooldownAfterFinish(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, startInput("HISTORIA-01"))
	require.NoError(t, err)
	sess, err := f.svc.Get(res.SessionID)
	require.NoError(t, err)

	for i, q := range res.Test.Questions {
		var v model.AnswerValue = model.TextAnswer("1810")
		if q.Type == model.QuestionTypeTF {
			v = model.NumberAnswer(1)
		}
		_, err := sess.SetAnswer(i, v)
		require.NoError(t, err)
	}
	rec, err := sess.Finish()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, rec.Score, 1e-9)
	require.Len(t, rec.Contacts, 1)

	_, err = f.svc.Start(ctx, startInput("HISTORIA-01"))
	var r *Refusal
	require.True(t, errors.As(err, &r))
	assert.Equal(t, RefusalRetakeCooldown, r.Code)
	assert.Equal(t, 60, r.WaitMinutes)

	_, err = f.svc.Start(ctx, startInput("HISTORIA-01:NEW!"))
	assert.NoError(t, err)
}

func TestSessionService_ResumesSnapshot(t *testing.T) {
	f := newServiceFixture(t)
	require.NoError(t, f.progress.Save(context.Background(), deviceA, model.Snapshot{
		TestCode:      "HISTORIA-01",
		QuestionIndex: 1,
		Answers:       map[int]model.AnswerEnvelope{0: {Value: model.TextAnswer("1810")}},
		RemainingTime: "05:00",
	}))

	res, err := f.svc.Start(context.Background(), startInput("HISTORIA-01"))
	require.NoError(t, err)
	assert.True(t, res.Resumed)
	assert.Equal(t, 1, res.State.Answered)
	assert.Equal(t, 1, res.State.Position)
	assert.Equal(t, "05:00", res.State.Remaining)
}

func TestSessionService_ReloadReplacesLiveSession(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	first, err := f.svc.Start(ctx, startInput("HISTORIA-01"))
	require.NoError(t, err)
	second, err := f.svc.Start(ctx, startInput("HISTORIA-01"))
	require.NoError(t, err)

	assert.NotEqual(t, first.SessionID, second.SessionID)
	_, err = f.svc.Get(first.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 1, f.registry.Len())
}

func TestSessionService_BlockedAfterTermination(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, startInput("HISTORIA-01"))
	require.NoError(t, err)
	sess, err := f.svc.Get(res.SessionID)
	require.NoError(t, err)

	var out session.SignalOutcome
	for i := 0; i < 3; i++ {
		out, err = sess.Blur()
		require.NoError(t, err)
		time.Sleep(1100 * time.Millisecond)
	}
	require.True(t, out.Terminated)

	_, err = f.svc.Start(ctx, startInput("HISTORIA-01:NEW!"))
	var r *Refusal
	require.True(t, errors.As(err, &r))
	assert.Equal(t, RefusalDeviceBlocked, r.Code)
}
