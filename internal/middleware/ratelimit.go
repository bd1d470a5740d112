package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-session/internal/response"
)

// RateLimiter is a fixed-window counter per (scope, client IP). Each scope
// gets its own budget of rate requests per interval, so guessing result
// codes does not lock an operator out of the admin login.
type RateLimiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	rate     int
	interval time.Duration
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

type window struct {
	start time.Time
	used  int
}

// NewRateLimiter allows rate requests per interval and starts a janitor that
// forgets idle clients.
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows:  make(map[string]*window),
		rate:     rate,
		interval: interval,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go rl.janitor()
	return rl
}

// Close stops the janitor. Safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// Middleware limits requests in scope by client IP. A refused request gets
// 429 with Retry-After in seconds.
func (rl *RateLimiter) Middleware(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := rl.allow(scope + "|" + c.ClientIP())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

// allow counts one request for key and reports how long to wait when the
// window is exhausted.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.interval {
		w = &window{start: now}
		rl.windows[key] = w
	}
	if w.used >= rl.rate {
		return false, w.start.Add(rl.interval).Sub(now)
	}
	w.used++
	return true, 0
}

func (rl *RateLimiter) janitor() {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.forgetIdle()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) forgetIdle() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, w := range rl.windows {
		if now.Sub(w.start) > 3*rl.interval {
			delete(rl.windows, key)
		}
	}
}
