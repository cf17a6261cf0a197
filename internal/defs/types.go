// Package defs holds the static definition catalog: phase graphs, spawn
// weights, duration ranges, requirement descriptors and reward tables.
// The catalog is loaded once at startup and immutable afterwards.
package defs

import (
	"fmt"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

type Kind string

const (
	KindMission    Kind = "mission"
	KindWorldEvent Kind = "world_event"
	KindStoryArc   Kind = "story_arc"
)

// Duration is a time.Duration that unmarshals from Go duration strings
// ("45m", "2h30m") in catalog YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration must be >= 0, got %q", raw)
	}
	*d = Duration(parsed)
	return nil
}

// Requirement declares what external progress event advances a
// requirement-phase. Exactly one of Count or Threshold must be set:
// Count increments per matching event; Threshold keeps the maximum
// observed event value and advances once it reaches the threshold.
type Requirement struct {
	Event     string  `yaml:"event"`
	Category  string  `yaml:"category,omitempty"`
	Location  string  `yaml:"location,omitempty"`
	MinAmount float64 `yaml:"min_amount,omitempty"`
	MaxAmount float64 `yaml:"max_amount,omitempty"`

	Count     int     `yaml:"count,omitempty"`
	Threshold float64 `yaml:"threshold,omitempty"`

	// FailOnBusted fails the whole entity when a matching event carries
	// the busted flag, short-circuiting any success increment.
	FailOnBusted bool `yaml:"fail_on_busted,omitempty"`
}

// ChoiceEnd is the reserved choice target that completes the entity.
const ChoiceEnd = "end"

// Phase is one named state in an entity's lifecycle graph. Exactly one of
// the three drives applies:
//   - timer: Duration, or a MinDuration/MaxDuration range drawn at entry
//   - requirement: Requirement
//   - gate: Choices (story arcs only; waits for a player decision)
//
// Next names the phase entered on completion. An empty Next on the last
// declared phase means the phase is final. Choices map a player input to a
// target phase name, the reserved word "end" (complete the entity), or ""
// (stay in this phase, e.g. a declined offer).
type Phase struct {
	Name string `yaml:"name"`

	Duration    Duration `yaml:"duration,omitempty"`
	MinDuration Duration `yaml:"min_duration,omitempty"`
	MaxDuration Duration `yaml:"max_duration,omitempty"`

	Requirement *Requirement `yaml:"requirement,omitempty"`

	Choices map[string]string `yaml:"choices,omitempty"`

	Next string `yaml:"next,omitempty"`
}

// Timed reports whether the phase advances on wall-clock expiry.
func (p *Phase) Timed() bool {
	return p.Requirement == nil && len(p.Choices) == 0
}

// Effects is the declarative reward/penalty table applied exactly once on
// a terminal transition.
type Effects struct {
	Cash       int64   `yaml:"cash,omitempty"`
	Experience int64   `yaml:"experience,omitempty"`
	Respect    int64   `yaml:"respect,omitempty"`
	Heat       float64 `yaml:"heat,omitempty"`
	Loyalty    float64 `yaml:"loyalty,omitempty"`

	// Cooldown overrides the definition's standard cooldown when set.
	Cooldown Duration `yaml:"cooldown,omitempty"`

	Unlocks []string `yaml:"unlocks,omitempty"`
}

func (e Effects) IsZero() bool {
	return e.Cash == 0 && e.Experience == 0 && e.Respect == 0 &&
		e.Heat == 0 && e.Loyalty == 0 && e.Cooldown == 0 && len(e.Unlocks) == 0
}

// Definition is one catalog entry. Kind is derived from the section the
// entry appears under, not declared in the file.
type Definition struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Kind Kind   `yaml:"-"`

	// Weight drives ambient weighted selection. TriggeredOnly entries are
	// excluded from ambient spawning and activated by explicit game
	// conditions instead.
	Weight        int  `yaml:"weight,omitempty"`
	TriggeredOnly bool `yaml:"triggered_only,omitempty"`

	// Cooldown gates re-activation for the same owner/definition after a
	// terminal transition.
	Cooldown Duration `yaml:"cooldown,omitempty"`

	Phases []Phase `yaml:"phases"`

	Reward  Effects `yaml:"reward,omitempty"`
	Penalty Effects `yaml:"penalty,omitempty"`

	// Mission-only: success draw inputs and entry gate.
	BaseChance    float64 `yaml:"base_chance,omitempty"`
	SkillWeight   float64 `yaml:"skill_weight,omitempty"`
	LoyaltyWeight float64 `yaml:"loyalty_weight,omitempty"`
	Cost          int64   `yaml:"cost,omitempty"`

	// RecallPenalty is the base loyalty penalty for an early recall,
	// scaled by remaining time at the moment of recall.
	RecallPenalty float64 `yaml:"recall_penalty,omitempty"`

	// StoryArc-only: player level required before Trigger succeeds.
	LevelRequired int `yaml:"level_required,omitempty"`
}

// PhaseIndex returns the index of the named phase, or -1.
func (d *Definition) PhaseIndex(name string) int {
	for i := range d.Phases {
		if d.Phases[i].Name == name {
			return i
		}
	}
	return -1
}

// Catalog is the full set of definitions. Slice order is declaration order
// in the catalog file; the spawner's weighted walk depends on it, so it is
// never reordered.
type Catalog struct {
	Missions    []*Definition `yaml:"missions,omitempty"`
	WorldEvents []*Definition `yaml:"world_events,omitempty"`
	StoryArcs   []*Definition `yaml:"story_arcs,omitempty"`

	byID map[string]*Definition
}

// Lookup finds a definition by ID across all kinds.
func (c *Catalog) Lookup(id string) (*Definition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Ambient returns the world-event definitions eligible for ambient
// spawning, in declaration order.
func (c *Catalog) Ambient() []*Definition {
	out := make([]*Definition, 0, len(c.WorldEvents))
	for _, d := range c.WorldEvents {
		if !d.TriggeredOnly {
			out = append(out, d)
		}
	}
	return out
}

func (c *Catalog) all() []*Definition {
	out := make([]*Definition, 0, len(c.Missions)+len(c.WorldEvents)+len(c.StoryArcs))
	out = append(out, c.Missions...)
	out = append(out, c.WorldEvents...)
	out = append(out, c.StoryArcs...)
	return out
}
