package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
)

// OverrideSuffix appended to a test code skips the retake cooldown.
const OverrideSuffix = ":NEW!"

// Input length rules, counted in characters after trimming.
const (
	MinNameLength = 16
	MinCodeLength = 8
)

// RefusalCode names why the gate refused to start a session.
type RefusalCode string

const (
	RefusalInvalidInput   RefusalCode = "INVALID_INPUT"
	RefusalDeviceBlocked  RefusalCode = "DEVICE_BLOCKED"
	RefusalRetakeCooldown RefusalCode = "RETAKE_COOLDOWN"
	RefusalTestNotFound   RefusalCode = "TEST_NOT_FOUND"
	RefusalWrongGroup     RefusalCode = "WRONG_GROUP"
	RefusalTestClosed     RefusalCode = "TEST_CLOSED"
)

// Refusal is returned by the gate. Nothing is written when a start is refused.
type Refusal struct {
	Code RefusalCode
	// WaitMinutes is set for RETAKE_COOLDOWN.
	WaitMinutes int
	Detail      string
}

func (r *Refusal) Error() string {
	if r.Detail != "" {
		return fmt.Sprintf("start refused: %s: %s", r.Code, r.Detail)
	}
	return fmt.Sprintf("start refused: %s", r.Code)
}

// BlockChecker reports device blocks.
type BlockChecker interface {
	IsBlocked(ctx context.Context, code, deviceID string) (bool, error)
}

// AttemptReader reads cooldown markers.
type AttemptReader interface {
	Last(ctx context.Context, code, deviceID string) (time.Time, bool, error)
}

// TestCatalog resolves test codes.
type TestCatalog interface {
	Lookup(code string) (*model.Test, bool)
}

// StartInput is what a test-taker submits.
type StartInput struct {
	Name     string
	Grade    string
	Code     string
	DeviceID string
}

// Admission is a passed gate check.
type Admission struct {
	Test     *model.Test
	Name     string
	Code     string
	Override bool
}

// Gate decides whether a device may start a test.
type Gate struct {
	blocks   BlockChecker
	attempts AttemptReader
	catalog  TestCatalog
	cooldown time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewGate creates a gate. A zero cooldown falls back to 60 minutes.
func NewGate(blocks BlockChecker, attempts AttemptReader, catalog TestCatalog, cooldown time.Duration, log zerolog.Logger) *Gate {
	if cooldown <= 0 {
		cooldown = 60 * time.Minute
	}
	return &Gate{
		blocks:   blocks,
		attempts: attempts,
		catalog:  catalog,
		cooldown: cooldown,
		now:      time.Now,
		log:      log.With().Str("component", "start_gate").Logger(),
	}
}

// ParseCode strips the override suffix and reports whether it was present.
func ParseCode(raw string) (code string, override bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, OverrideSuffix) {
		return strings.TrimSuffix(raw, OverrideSuffix), true
	}
	return raw, false
}

// Check runs the start rules in order and returns the first refusal.
// A failed block or cooldown read is logged and treated as no prior state,
// so a storage outage never stops a start.
func (g *Gate) Check(ctx context.Context, in StartInput) (*Admission, error) {
	name := strings.TrimSpace(in.Name)
	code, override := ParseCode(in.Code)

	if len([]rune(name)) < MinNameLength {
		return nil, &Refusal{Code: RefusalInvalidInput, Detail: "name too short"}
	}
	if len([]rune(code)) < MinCodeLength {
		return nil, &Refusal{Code: RefusalInvalidInput, Detail: "code too short"}
	}

	blocked, err := g.blocks.IsBlocked(ctx, code, in.DeviceID)
	if err != nil {
		g.log.Warn().Err(err).Str("test_code", code).Str("device_id", in.DeviceID).
			Msg("Block check failed, treating device as not blocked")
		blocked = false
	}
	if blocked {
		return nil, &Refusal{Code: RefusalDeviceBlocked}
	}

	if !override {
		last, ok, err := g.attempts.Last(ctx, code, in.DeviceID)
		if err != nil {
			g.log.Warn().Err(err).Str("test_code", code).Str("device_id", in.DeviceID).
				Msg("Cooldown check failed, treating attempt as first")
			ok = false
		}
		if ok {
			if wait := g.waitMinutes(last); wait > 0 {
				return nil, &Refusal{Code: RefusalRetakeCooldown, WaitMinutes: wait}
			}
		}
	}

	test, ok := g.catalog.Lookup(code)
	if !ok {
		return nil, &Refusal{Code: RefusalTestNotFound}
	}
	if !test.AllowsGroup(in.Grade) {
		return nil, &Refusal{Code: RefusalWrongGroup}
	}
	if !test.IsOpen(g.now()) {
		return nil, &Refusal{Code: RefusalTestClosed}
	}

	return &Admission{Test: test, Name: name, Code: code, Override: override}, nil
}

// waitMinutes returns ceil(cooldown - elapsed) in minutes, or 0 once the
// cooldown has passed.
func (g *Gate) waitMinutes(last time.Time) int {
	elapsed := g.now().Sub(last)
	if elapsed >= g.cooldown {
		return 0
	}
	return int(math.Ceil((g.cooldown - elapsed).Minutes()))
}
