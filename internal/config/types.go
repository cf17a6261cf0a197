package config

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler"`

	// Catalog is the path to the static definition catalog (YAML).
	// Definitions are loaded once at startup and treated as immutable
	// for the process lifetime.
	Catalog string `json:"catalog"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console *bool         `json:"console,omitempty"`
	File    LogFileConfig `json:"file,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig selects the persistence driver for scheduler state.
//
// Driver values:
//   - "file": one file per state key, atomic full rewrite
//   - "sqlite": SQLite database file
//
// If the section is omitted or driver is "none", the scheduler runs
// in-memory only and state does not survive a restart.
type StorageConfig struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`

	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SchedulerConfig controls the background driver and the ambient spawner.
//
// All durations are Go duration strings (e.g. "30s", "10m").
//
// Defaults (when fields are omitted/zero):
//   - fast_tick: "30s"
//   - spawn_tick: "10m"
//   - ambient_cap: 2
//   - skip_chance: 0.5
type SchedulerConfig struct {
	// FastTick is the cadence for expiry and requirement checks.
	FastTick string `json:"fast_tick,omitempty"`

	// SpawnTick is the cadence for ambient spawn attempts.
	SpawnTick string `json:"spawn_tick,omitempty"`

	// AmbientCap bounds simultaneously active ambient world events.
	AmbientCap int `json:"ambient_cap,omitempty"`

	// SkipChance is the probability [0,1] that a spawn tick is skipped
	// outright, to keep ambient event cadence sparse.
	SkipChance *float64 `json:"skip_chance,omitempty"`

	// Seed forces a deterministic random source when non-zero.
	// Leave unset in production; the scheduler seeds from crypto/rand.
	Seed int64 `json:"seed,omitempty"`
}

func (c *LoggingConfig) ConsoleEnabled() bool {
	if c.Console == nil {
		return true
	}
	return *c.Console
}

func (c *SchedulerConfig) SkipChanceOrDefault() float64 {
	if c.SkipChance == nil {
		return 0.5
	}
	return *c.SkipChance
}
