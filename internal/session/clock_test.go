package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_TickRendersThenDecrements(t *testing.T) {
	c := NewClock(2)

	d, expired := c.Tick()
	assert.Equal(t, "00:02", d)
	assert.False(t, expired)

	d, expired = c.Tick()
	assert.Equal(t, "00:01", d)
	assert.False(t, expired)

	d, expired = c.Tick()
	assert.Equal(t, "00:00", d)
	assert.True(t, expired)
	assert.Equal(t, "00:00", c.Display())
}

func TestClock_NegativeStartIsZero(t *testing.T) {
	c := NewClock(-5)
	_, expired := c.Tick()
	assert.True(t, expired)
}

func TestClock_StartTicksImmediatelyAndStops(t *testing.T) {
	c := NewClock(100)
	ticks := make(chan struct{}, 10)
	c.Start(time.Hour, func() { ticks <- struct{}{} })

	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("first tick was not immediate")
	}
	c.Stop()
	c.Stop()
}

func TestFormatMMSS(t *testing.T) {
	assert.Equal(t, "00:00", FormatMMSS(0))
	assert.Equal(t, "01:05", FormatMMSS(65))
	assert.Equal(t, "90:00", FormatMMSS(5400))
	assert.Equal(t, "00:00", FormatMMSS(-3))
}

func TestParseMMSS(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"01:05", 65, false},
		{"90:00", 5400, false},
		{" 12:30 ", 750, false},
		{"1:60", 0, true},
		{"abc", 0, true},
		{"1:2:3", 0, true},
		{"-1:00", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMMSS(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMMSS_RoundTrip(t *testing.T) {
	for _, secs := range []int{0, 1, 59, 60, 61, 599, 3600} {
		got, err := ParseMMSS(FormatMMSS(secs))
		require.NoError(t, err)
		assert.Equal(t, secs, got)
	}
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "0:00", FormatElapsed(0))
	assert.Equal(t, "1:05", FormatElapsed(65*time.Second))
	assert.Equal(t, "75:00", FormatElapsed(75*time.Minute))
	assert.Equal(t, "0:09", FormatElapsed(9500*time.Millisecond))
}
