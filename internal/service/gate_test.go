package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	validName = "Ana María López Pérez"
	deviceA   = "dev-abc123xyz"
)

func newTestGate(now time.Time) (*Gate, *fakeBlocks, *fakeAttempts) {
	blocks := newFakeBlocks()
	attempts := newFakeAttempts()
	g := NewGate(blocks, attempts, fakeCatalog{"HISTORIA-01": historyTest()}, time.Hour, zerolog.Nop())
	g.now = func() time.Time { return now }
	return g, blocks, attempts
}

func refusalCode(t *testing.T, err error) RefusalCode {
	t.Helper()
	var r *Refusal
	require.True(t, errors.As(err, &r), "want *Refusal, got %v", err)
	return r.Code
}

func TestParseCode(t *testing.T) {
	code, override := ParseCode(" HISTORIA-01:NEW! ")
	assert.Equal(t, "HISTORIA-01", code)
	assert.True(t, override)

	code, override = ParseCode("HISTORIA-01")
	assert.Equal(t, "HISTORIA-01", code)
	assert.False(t, override)
}

func TestGate_Admits(t *testing.T) {
	g, _, _ := newTestGate(time.Now())
	adm, err := g.Check(context.Background(), StartInput{Name: validName, Grade: "Tercero A", Code: "HISTORIA-01", DeviceID: deviceA})
	require.NoError(t, err)
	assert.Equal(t, "HISTORIA-01", adm.Code)
	assert.Equal(t, validName, adm.Name)
	assert.False(t, adm.Override)
}

func TestGate_InputLengths(t *testing.T) {
	g, _, _ := newTestGate(time.Now())
	ctx := context.Background()

	// 15 characters is one short.
	_, err := g.Check(ctx, StartInput{Name: "Ana María López", Grade: "Tercero A", Code: "HISTORIA-01", DeviceID: deviceA})
	assert.Equal(t, RefusalInvalidInput, refusalCode(t, err))

	// The override suffix does not count towards the code length.
	_, err = g.Check(ctx, StartInput{Name: validName, Grade: "Tercero A", Code: "HIST-01:NEW!", DeviceID: deviceA})
	assert.Equal(t, RefusalInvalidInput, refusalCode(t, err))
}

func TestGate_BlockedEvenWithOverride(t *testing.T) {
	g, blocks, _ := newTestGate(time.Now())
	require.NoError(t, blocks.Add(context.Background(), model.BlockEntry{Code: "HISTORIA-01", DeviceID: deviceA}))

	for _, code := range []string{"HISTORIA-01", "HISTORIA-01:NEW!"} {
		_, err := g.Check(context.Background(), StartInput{Name: validName, Grade: "Tercero A", Code: code, DeviceID: deviceA})
		assert.Equal(t, RefusalDeviceBlocked, refusalCode(t, err), code)
	}

	_, err := g.Check(context.Background(), StartInput{Name: validName, Grade: "Tercero A", Code: "HISTORIA-01", DeviceID: "dev-otherdev1"})
	assert.NoError(t, err, "blocks are per device")
}

func TestGate_Cooldown(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	in := StartInput{Name: validName, Grade: "Tercero A", Code: "HISTORIA-01", DeviceID: deviceA}

	tests := []struct {
		name     string
		ago      time.Duration
		wantWait int
	}{
		{"just finished", 0, 60},
		{"one minute ago", time.Minute, 59},
		{"thirty and a half minutes ago", 30*time.Minute + 30*time.Second, 30},
		{"59 minutes ago", 59 * time.Minute, 1},
		{"60 minutes ago", 60 * time.Minute, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, attempts := newTestGate(now)
			require.NoError(t, attempts.Mark(ctx, "HISTORIA-01", deviceA, now.Add(-tt.ago)))

			_, err := g.Check(ctx, in)
			if tt.wantWait == 0 {
				assert.NoError(t, err)
				return
			}
			var r *Refusal
			require.True(t, errors.As(err, &r))
			assert.Equal(t, RefusalRetakeCooldown, r.Code)
			assert.Equal(t, tt.wantWait, r.WaitMinutes)
		})
	}
}

func TestGate_OverrideSkipsCooldown(t *testing.T) {
	now := time.Now()
	g, _, attempts := newTestGate(now)
	require.NoError(t, attempts.Mark(context.Background(), "HISTORIA-01", deviceA, now))

	adm, err := g.Check(context.Background(), StartInput{Name: validName, Grade: "Tercero A", Code: "HISTORIA-01:NEW!", DeviceID: deviceA})
	require.NoError(t, err)
	assert.True(t, adm.Override)
}

func TestGate_CatalogGroupWindow(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.Local)
	ctx := context.Background()

	g, _, _ := newTestGate(now)
	_, err := g.Check(ctx, StartInput{Name: validName, Grade: "Tercero A", Code: "GEOGRAFIA-9", DeviceID: deviceA})
	assert.Equal(t, RefusalTestNotFound, refusalCode(t, err))

	_, err = g.Check(ctx, StartInput{Name: validName, Grade: "Cuarto B", Code: "HISTORIA-01", DeviceID: deviceA})
	assert.Equal(t, RefusalWrongGroup, refusalCode(t, err))

	closed := historyTest()
	closed.StartDateTime = "13:00"
	closed.EndDateTime = "14:00"
	g = NewGate(newFakeBlocks(), newFakeAttempts(), fakeCatalog{"HISTORIA-01": closed}, time.Hour, zerolog.Nop())
	g.now = func() time.Time { return now }
	_, err = g.Check(ctx, StartInput{Name: validName, Grade: "Tercero A", Code: "HISTORIA-01", DeviceID: deviceA})
	assert.Equal(t, RefusalTestClosed, refusalCode(t, err))

	// A single bound does not restrict the window.
	closed.EndDateTime = ""
	_, err = g.Check(ctx, StartInput{Name: validName, Grade: "Tercero A", Code: "HISTORIA-01", DeviceID: deviceA})
	assert.NoError(t, err)
}

func TestGate_StorageErrorsDegradeToFreshStart(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	g, blocks, attempts := newTestGate(now)
	ctx := context.Background()
	in := StartInput{Name: validName, Grade: "Tercero A", Code: "HISTORIA-01", DeviceID: deviceA}

	require.NoError(t, attempts.Mark(ctx, "HISTORIA-01", deviceA, now.Add(-time.Minute)))
	blocks.err = errors.New("redis down")
	attempts.err = errors.New("redis down")

	adm, err := g.Check(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "HISTORIA-01", adm.Code)

	// Refusals that need no storage still apply.
	in.Code = "NO-EXISTE-99"
	_, err = g.Check(ctx, in)
	assert.Equal(t, RefusalTestNotFound, refusalCode(t, err))
}
