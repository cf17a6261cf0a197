// Package clock wraps wall-clock reads behind an interface so the scheduler
// can be driven by a controllable time source in tests.
//
// All scheduler timestamps are milliseconds since the Unix epoch.
package clock

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Clock is the time source used by the scheduler.
type Clock interface {
	Now() time.Time
}

// System returns a Clock backed by time.Now.
func System() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Millis converts a time to scheduler milliseconds.
func Millis(t time.Time) int64 { return t.UnixMilli() }

// FromMillis converts scheduler milliseconds back to a time.
func FromMillis(ms int64) time.Time { return time.UnixMilli(ms) }

// Manual is a hand-advanced clock for tests. Safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock pinned to start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d and returns the new time.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

// Set pins the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// FormatDuration renders a duration in the compact "2h 30m" style used by
// notifications. Sub-minute durations render as seconds; zero and negative
// durations render as "0s".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)

	var parts []string
	if h := int(d.Hours()); h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
		d -= time.Duration(h) * time.Hour
	}
	if m := int(d.Minutes()); m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
		d -= time.Duration(m) * time.Minute
	}
	if s := int(d.Seconds()); s > 0 && len(parts) < 2 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}
