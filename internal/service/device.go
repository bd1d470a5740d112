package service

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// DeviceIDPrefix starts every generated device identifier.
const DeviceIDPrefix = "dev-"

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// LockedRand is a *rand.Rand safe for concurrent use. It serves both the
// shuffle (Intn) and result codes (Int63n).
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewLockedRand seeds a LockedRand. A zero seed uses the clock.
func NewLockedRand(seed int64) *LockedRand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &LockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *LockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *LockedRand) Int63n(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int63n(n)
}

// NewDeviceID returns "dev-" followed by nine base-36 characters.
func NewDeviceID(r *LockedRand) string {
	var b strings.Builder
	b.Grow(len(DeviceIDPrefix) + 9)
	b.WriteString(DeviceIDPrefix)
	for i := 0; i < 9; i++ {
		b.WriteByte(base36[r.Intn(len(base36))])
	}
	return b.String()
}

// ValidDeviceID reports whether id has the generated shape.
func ValidDeviceID(id string) bool {
	if !strings.HasPrefix(id, DeviceIDPrefix) || len(id) != len(DeviceIDPrefix)+9 {
		return false
	}
	for _, c := range id[len(DeviceIDPrefix):] {
		if !strings.ContainsRune(base36, c) {
			return false
		}
	}
	return true
}
