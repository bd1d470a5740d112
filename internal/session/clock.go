package session

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Clock is a per-second countdown. Tick is the step function; Start drives
// it from a ticker goroutine until Stop.
type Clock struct {
	mu        sync.Mutex
	remaining int
	display   string

	stop     chan struct{}
	stopOnce sync.Once
}

// NewClock returns a clock that will show seconds on its first tick.
func NewClock(seconds int) *Clock {
	if seconds < 0 {
		seconds = 0
	}
	return &Clock{
		remaining: seconds,
		display:   FormatMMSS(seconds),
		stop:      make(chan struct{}),
	}
}

// Tick renders the current remaining time, then reports expiry when it is
// zero or decrements it otherwise.
func (c *Clock) Tick() (display string, expired bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.display = FormatMMSS(c.remaining)
	if c.remaining <= 0 {
		return c.display, true
	}
	c.remaining--
	return c.display, false
}

// Display returns the last rendered time. It is what gets persisted.
func (c *Clock) Display() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.display
}

// Remaining returns the seconds left before the next tick.
func (c *Clock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Start calls onTick immediately and then every interval until Stop.
func (c *Clock) Start(interval time.Duration, onTick func()) {
	go func() {
		onTick()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-t.C:
				onTick()
			}
		}
	}()
}

// Stop ends the ticker goroutine. Safe to call more than once and from
// within onTick.
func (c *Clock) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// FormatMMSS renders seconds as zero-padded MM:SS.
func FormatMMSS(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// ParseMMSS parses "MM:SS" back into seconds. Minutes may exceed 59.
func ParseMMSS(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("parse remaining time %q: want MM:SS", s)
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("parse remaining minutes: %w", err)
	}
	sec, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("parse remaining seconds: %w", err)
	}
	if m < 0 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("parse remaining time %q: out of range", s)
	}
	return m*60 + sec, nil
}

// FormatElapsed renders a duration as M:SS without padding the minutes.
func FormatElapsed(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
