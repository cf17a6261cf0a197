// Package player is the scheduler's narrow contract with player state.
// The scheduler reads one snapshot shape and mutates through the named
// delta operations only.
package player

import (
	"errors"
	"sync"
)

var ErrInsufficientCash = errors.New("insufficient cash")

// State is a read-only snapshot of the fields the scheduler consumes.
// Skill and Loyalty are per crew member, both in [0,1].
type State struct {
	Level      int
	Cash       int64
	Experience int64
	Respect    int64
	Heat       float64
	Skill      map[string]float64
	Loyalty    map[string]float64
	Unlocked   map[string]bool
}

// Wallet is the mutable side of the contract. Implementations must make
// SpendCash all-or-nothing: either the full amount is deducted or nothing
// changes and ErrInsufficientCash is returned.
type Wallet interface {
	Snapshot() State
	AddCash(delta int64)
	AddExperience(delta int64)
	AddRespect(delta int64)
	AdjustHeat(delta float64)
	AdjustLoyalty(member string, delta float64)
	Unlock(flag string)
	SpendCash(amount int64) error
}

// Memory is an in-memory Wallet used by the daemon and by tests.
type Memory struct {
	mu sync.Mutex
	st State
}

// NewMemory copies the initial state. Nil maps are allocated so callers
// can omit them.
func NewMemory(initial State) *Memory {
	m := &Memory{st: initial}
	if m.st.Skill == nil {
		m.st.Skill = map[string]float64{}
	}
	if m.st.Loyalty == nil {
		m.st.Loyalty = map[string]float64{}
	}
	if m.st.Unlocked == nil {
		m.st.Unlocked = map[string]bool{}
	}
	return m
}

func (m *Memory) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := m.st
	cp.Skill = copyMap(m.st.Skill)
	cp.Loyalty = copyMap(m.st.Loyalty)
	cp.Unlocked = make(map[string]bool, len(m.st.Unlocked))
	for k, v := range m.st.Unlocked {
		cp.Unlocked[k] = v
	}
	return cp
}

func copyMap(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *Memory) AddCash(delta int64) {
	m.mu.Lock()
	m.st.Cash += delta
	m.mu.Unlock()
}

func (m *Memory) AddExperience(delta int64) {
	m.mu.Lock()
	m.st.Experience += delta
	m.mu.Unlock()
}

func (m *Memory) AddRespect(delta int64) {
	m.mu.Lock()
	m.st.Respect += delta
	m.mu.Unlock()
}

func (m *Memory) AdjustHeat(delta float64) {
	m.mu.Lock()
	m.st.Heat += delta
	if m.st.Heat < 0 {
		m.st.Heat = 0
	}
	m.mu.Unlock()
}

// AdjustLoyalty clamps the result to [0,1]. Unknown members are ignored;
// callers validate membership before deploying.
func (m *Memory) AdjustLoyalty(member string, delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.st.Loyalty[member]
	if !ok {
		return
	}
	v += delta
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	m.st.Loyalty[member] = v
}

func (m *Memory) Unlock(flag string) {
	m.mu.Lock()
	m.st.Unlocked[flag] = true
	m.mu.Unlock()
}

func (m *Memory) SpendCash(amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.st.Cash < amount {
		return ErrInsufficientCash
	}
	m.st.Cash -= amount
	return nil
}

// SetLevel is a test/demo hook; real games level up through experience.
func (m *Memory) SetLevel(level int) {
	m.mu.Lock()
	m.st.Level = level
	m.mu.Unlock()
}
