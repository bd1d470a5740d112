package service

import (
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/engine"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdleSession(id, deviceID string) *session.Session {
	prepared := engine.PrepareTest(rand.New(rand.NewSource(1)), historyTest())
	return session.New(session.Params{ID: id, DeviceID: deviceID, Test: prepared}, nil, session.Options{}, zerolog.Nop())
}

func TestRegistry_AddGetActive(t *testing.T) {
	r := NewRegistry(time.Minute, zerolog.Nop())
	s := newIdleSession("a", deviceA)
	r.Add(s)

	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Same(t, s, got)

	live, ok := r.Active(deviceA, "HISTORIA-01")
	require.True(t, ok)
	assert.Same(t, s, live)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_SweepsFinishedAfterRetention(t *testing.T) {
	r := NewRegistry(10*time.Minute, zerolog.Nop())
	finished := newIdleSession("done", deviceA)
	running := newIdleSession("live", "dev-zzzzzzzzz")
	r.Add(finished)
	r.Add(running)

	for i := range finished.Payload().Questions {
		var v model.AnswerValue = model.TextAnswer("1810")
		if finished.Payload().Questions[i].Type == model.QuestionTypeTF {
			v = model.NumberAnswer(1)
		}
		_, err := finished.SetAnswer(i, v)
		require.NoError(t, err)
	}
	_, err := finished.Finish()
	require.NoError(t, err)

	_, ok := r.Active(deviceA, "HISTORIA-01")
	assert.False(t, ok, "finished sessions are not active")

	assert.Equal(t, Occupancy{Running: 1, Finished: 1, ByTest: map[string]int{"HISTORIA-01": 1}}, r.Occupancy())

	assert.Equal(t, 0, r.Sweep(), "still within retention")

	r.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	assert.Equal(t, 1, r.Sweep())
	_, err = r.Get("done")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = r.Get("live")
	assert.NoError(t, err)
}
