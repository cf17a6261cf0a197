package sched

import (
	"time"

	"underlord/internal/clock"
	"underlord/internal/defs"
	"underlord/internal/eventbus"
	logx "underlord/pkg/logx"
)

// enterPhase commits a phase transition: progress is cleared exactly here,
// and a timer phase gets its duration drawn and its deadline computed.
// Caller holds the lock.
func (s *Scheduler) enterPhase(e *Entity, def *defs.Definition, idx int, now int64) {
	e.Phase = idx
	e.PhaseStartedAt = now
	e.Progress = map[string]float64{}
	e.ExpiresAt = 0
	e.PlannedDuration = 0

	p := &def.Phases[idx]
	if !p.Timed() {
		return
	}
	dur := p.Duration.Std()
	if p.MaxDuration > 0 {
		dur = s.drawDuration(p.MinDuration.Std(), p.MaxDuration.Std())
	}
	e.PlannedDuration = dur
	e.ExpiresAt = now + dur.Milliseconds()
}

// drawDuration picks uniformly from [min, max] at millisecond granularity.
func (s *Scheduler) drawDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := (max - min).Milliseconds() + 1
	off := s.rng.Int64N(span)
	return min + time.Duration(off)*time.Millisecond
}

// nextPhaseIndex resolves the successor of the entity's current phase.
// final=true means the current phase has no successor.
func nextPhaseIndex(def *defs.Definition, e *Entity) (idx int, final bool) {
	p := &def.Phases[e.Phase]
	if p.Next != "" {
		return def.PhaseIndex(p.Next), false
	}
	if e.Phase+1 < len(def.Phases) {
		return e.Phase + 1, false
	}
	return -1, true
}

// advance moves the entity past its current phase, terminating it when the
// phase was final. Caller holds the lock.
func (s *Scheduler) advance(e *Entity, now int64) {
	def, ok := s.catalog.Lookup(e.DefinitionID)
	if !ok {
		// Definition vanished from the catalog between runs; fail closed.
		s.log.Warn("active entity lost its definition", logx.String("definition", e.DefinitionID))
		s.resolve(e, StatusFailed, "definition removed", now)
		return
	}

	idx, final := nextPhaseIndex(def, e)
	if final {
		s.finish(e, def, now)
		return
	}
	s.log.Debug("phase transition",
		logx.String("entity", e.ID),
		logx.String("definition", e.DefinitionID),
		logx.String("phase", def.Phases[idx].Name),
	)
	s.enterPhase(e, def, idx, now)
}

// finish computes the terminal outcome. Missions roll their success draw
// here, exactly once; everything else completes.
func (s *Scheduler) finish(e *Entity, def *defs.Definition, now int64) {
	if e.Kind != defs.KindMission {
		s.resolve(e, StatusCompleted, "completed", now)
		return
	}

	snap := s.wallet.Snapshot()
	chance := successChance(def, snap.Skill[e.Owner], snap.Loyalty[e.Owner])
	if s.rng.Float64() < chance {
		s.resolve(e, StatusCompleted, "success", now)
	} else {
		s.resolve(e, StatusFailed, "failed", now)
	}
}

// successChance is the deterministic part of the mission outcome:
// base + skill*w1 + loyalty*w2, with both factors in [0,1].
func successChance(def *defs.Definition, skill, loyalty float64) float64 {
	return def.BaseChance + skill*def.SkillWeight + loyalty*def.LoyaltyWeight
}

// expiryPass advances every timer-phase entity whose deadline has passed.
// Entities are visited in insertion order; a single pass may walk an entity
// through several phases if the process was offline long enough.
// Caller holds the lock. Reports whether anything changed.
func (s *Scheduler) expiryPass(now int64) bool {
	changed := false
	for _, id := range s.reg.ids() {
		for {
			e, ok := s.reg.get(id)
			if !ok || e.Status != StatusActive {
				break
			}
			if e.ExpiresAt == 0 || now < e.ExpiresAt {
				break
			}
			// Advance from the deadline, not from now, so chained timer
			// phases drain correctly after an offline stretch.
			at := e.ExpiresAt
			s.advance(e, at)
			changed = true
		}
	}
	return changed
}

// matchesRequirement checks the sub-filters of a requirement descriptor
// against one progress event.
func matchesRequirement(r *defs.Requirement, ev eventbus.Event) bool {
	if r.Event != ev.Type {
		return false
	}
	if r.Category != "" && r.Category != ev.Payload.Category {
		return false
	}
	if r.Location != "" && r.Location != ev.Payload.Location {
		return false
	}
	if r.MinAmount > 0 && ev.Payload.Amount < r.MinAmount {
		return false
	}
	if r.MaxAmount > 0 && ev.Payload.Amount > r.MaxAmount {
		return false
	}
	return true
}

// HandleProgress feeds one external progress event through every active
// requirement-phase entity. Events are evaluated strictly in arrival order.
func (s *Scheduler) HandleProgress(ev eventbus.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := clock.Millis(s.clk.Now())
	changed := false

	for _, id := range s.reg.ids() {
		e, ok := s.reg.get(id)
		if !ok || e.Status != StatusActive {
			continue
		}
		def, ok := s.catalog.Lookup(e.DefinitionID)
		if !ok {
			continue
		}
		req := def.Phases[e.Phase].Requirement
		if req == nil || !matchesRequirement(req, ev) {
			continue
		}

		// Fail conditions short-circuit any success increment.
		if req.FailOnBusted && ev.Payload.Busted {
			s.resolve(e, StatusFailed, "busted", now)
			changed = true
			continue
		}

		key := req.Event
		if req.Count > 0 {
			e.Progress[key]++
			if e.Progress[key] >= float64(req.Count) {
				s.advance(e, now)
			}
		} else {
			if ev.Payload.Value > e.Progress[key] {
				e.Progress[key] = ev.Payload.Value
			}
			if e.Progress[key] >= req.Threshold {
				s.advance(e, now)
			}
		}
		changed = true
	}

	if changed {
		s.persistLocked()
	}
}

// Choose applies a player decision to a story arc waiting at a choice gate.
func (s *Scheduler) Choose(entityID, choice string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.reg.get(entityID)
	if !ok || e.Status != StatusActive {
		return ErrNotActive
	}
	if e.Kind != defs.KindStoryArc {
		return ErrWrongKind
	}
	def, ok := s.catalog.Lookup(e.DefinitionID)
	if !ok {
		return ErrUnknownDefinition
	}

	p := &def.Phases[e.Phase]
	target, ok := p.Choices[choice]
	if !ok {
		return ErrNoChoice
	}

	now := clock.Millis(s.clk.Now())
	switch target {
	case "":
		// Declined: arc stays active at this gate.
		s.log.Debug("choice declined", logx.String("entity", e.ID), logx.String("choice", choice))
		return nil
	case defs.ChoiceEnd:
		s.finish(e, def, now)
	default:
		s.enterPhase(e, def, def.PhaseIndex(target), now)
	}
	s.persistLocked()
	return nil
}
