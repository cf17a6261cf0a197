package sched

import (
	"time"

	"underlord/internal/clock"
	"underlord/internal/defs"
	"underlord/internal/eventbus"
	"underlord/internal/notify"
	"underlord/internal/player"
	"underlord/internal/random"
	"underlord/internal/storage"
	logx "underlord/pkg/logx"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Entity is one scheduler-managed timed/phased activity. All timestamps are
// milliseconds since the Unix epoch. ExpiresAt is zero while the current
// phase is requirement- or choice-driven.
type Entity struct {
	ID           string    `json:"id"`
	Kind         defs.Kind `json:"kind"`
	DefinitionID string    `json:"definition_id"`

	// Owner scopes cooldowns and loyalty effects: the crew member for
	// missions, empty for world events and story arcs.
	Owner string `json:"owner,omitempty"`

	CreatedAt      int64 `json:"created_at"`
	PhaseStartedAt int64 `json:"phase_started_at"`
	ExpiresAt      int64 `json:"expires_at,omitempty"`

	Phase    int                `json:"phase"`
	Progress map[string]float64 `json:"progress,omitempty"`

	Status Status `json:"status"`

	// PlannedDuration is the drawn length of the current timer phase,
	// kept for elapsed-fraction math on early recall.
	PlannedDuration time.Duration `json:"planned_duration,omitempty"`
}

// HistoryRecord is one trimmed entry in the per-kind terminal history.
type HistoryRecord struct {
	EntityID     string    `json:"entity_id"`
	DefinitionID string    `json:"definition_id"`
	Kind         defs.Kind `json:"kind"`
	Owner        string    `json:"owner,omitempty"`
	Status       Status    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	EndedAt      int64     `json:"ended_at"`
}

// Config controls the background driver and the ambient spawner.
type Config struct {
	// FastTick is the cadence for expiry checks.
	FastTick time.Duration
	// SpawnTick is the cadence for ambient spawn attempts.
	SpawnTick time.Duration
	// AmbientCap bounds simultaneously active ambient world events.
	AmbientCap int
	// SkipChance is the probability [0,1] a spawn tick is skipped outright.
	SkipChance float64
	// StateKey is the persistence key for scheduler state.
	StateKey string
}

func (c Config) withDefaults() Config {
	if c.FastTick <= 0 {
		c.FastTick = 30 * time.Second
	}
	if c.SpawnTick <= 0 {
		c.SpawnTick = 10 * time.Minute
	}
	if c.AmbientCap <= 0 {
		c.AmbientCap = 2
	}
	if c.SkipChance < 0 || c.SkipChance > 1 {
		c.SkipChance = 0.5
	}
	if c.StateKey == "" {
		c.StateKey = "sched.state"
	}
	return c
}

// Options wires the scheduler's collaborators. Catalog and Wallet are
// required; everything else has a safe default (in-memory only, discard
// sink, system clock, crypto-seeded randomness).
type Options struct {
	Config  Config
	Catalog *defs.Catalog
	Store   storage.Store
	Wallet  player.Wallet
	Sink    notify.Sink
	Bus     eventbus.Bus
	Clock   clock.Clock
	Rand    random.Source
	Log     logx.Logger
}

// Overview is a point-in-time introspection snapshot.
type Overview struct {
	Active    []Entity
	Cooldowns map[string]int64
	History   map[defs.Kind][]HistoryRecord
}
