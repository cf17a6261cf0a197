package sched

import (
	"context"
	"fmt"

	"underlord/internal/clock"
	"underlord/internal/defs"
	"underlord/internal/notify"
	logx "underlord/pkg/logx"
)

// cooldownKey scopes cooldown records: per crew member for missions, per
// definition otherwise. Records outlive the entity they came from.
func cooldownKey(e *Entity) string {
	if e.Kind == defs.KindMission && e.Owner != "" {
		return e.DefinitionID + "/" + e.Owner
	}
	return e.DefinitionID
}

// resolve commits a terminal transition: status flip, one reward/penalty
// application, cooldown record, history append, one notification. The
// status guard makes the whole pass exactly-once; a terminal entity can
// never be resolved again. Caller holds the lock.
func (s *Scheduler) resolve(e *Entity, status Status, reason string, now int64) {
	if e.Status != StatusActive {
		return
	}
	e.Status = status

	def, _ := s.catalog.Lookup(e.DefinitionID)

	var fx defs.Effects
	var cooldown int64
	if def != nil {
		if status == StatusCompleted {
			fx = def.Reward
		} else {
			fx = def.Penalty
		}
		cd := def.Cooldown
		if fx.Cooldown > 0 {
			cd = fx.Cooldown
		}
		cooldown = cd.Std().Milliseconds()
	}

	s.applyEffects(e, fx)
	if cooldown > 0 {
		s.reg.setCooldown(cooldownKey(e), now+cooldown)
	}

	s.hist.append(HistoryRecord{
		EntityID:     e.ID,
		DefinitionID: e.DefinitionID,
		Kind:         e.Kind,
		Owner:        e.Owner,
		Status:       status,
		Reason:       reason,
		EndedAt:      now,
	})
	s.reg.remove(e.ID)

	s.announceTerminal(e, def, status, reason)
	s.log.Info("entity resolved",
		logx.String("entity", e.ID),
		logx.String("definition", e.DefinitionID),
		logx.String("status", string(status)),
		logx.String("reason", reason),
	)
}

func (s *Scheduler) applyEffects(e *Entity, fx defs.Effects) {
	if fx.IsZero() {
		return
	}
	if fx.Cash != 0 {
		s.wallet.AddCash(fx.Cash)
	}
	if fx.Experience != 0 {
		s.wallet.AddExperience(fx.Experience)
	}
	if fx.Respect != 0 {
		s.wallet.AddRespect(fx.Respect)
	}
	if fx.Heat != 0 {
		s.wallet.AdjustHeat(fx.Heat)
	}
	if fx.Loyalty != 0 && e.Owner != "" {
		s.wallet.AdjustLoyalty(e.Owner, fx.Loyalty)
	}
	for _, flag := range fx.Unlocks {
		s.wallet.Unlock(flag)
	}
}

func (s *Scheduler) announceTerminal(e *Entity, def *defs.Definition, status Status, reason string) {
	name := e.DefinitionID
	if def != nil && def.Name != "" {
		name = def.Name
	}
	sev := notify.SeverityInfo
	if status == StatusFailed {
		sev = notify.SeverityWarning
	}
	s.sink.Announce(context.Background(), notify.Notification{
		Severity: sev,
		Title:    name,
		Text:     fmt.Sprintf("%s: %s", status, reason),
	})
}

// recallPenalty scales the definition's base penalty by remaining time:
// recalling halfway through costs half the base. This is deliberately a
// different formula from the flat failure penalty table.
func recallPenalty(base, elapsedFraction float64) float64 {
	if elapsedFraction < 0 {
		elapsedFraction = 0
	}
	if elapsedFraction > 1 {
		elapsedFraction = 1
	}
	return base * (1 - elapsedFraction)
}

// Recall force-terminates an active mission before its timer completes.
// It never rolls the success draw and never touches the standard reward or
// penalty tables: the only effects are the proportional loyalty penalty
// and a cooldown at half the standard length.
func (s *Scheduler) Recall(entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.reg.get(entityID)
	if !ok || e.Status != StatusActive {
		return ErrNotActive
	}
	if e.Kind != defs.KindMission {
		return ErrWrongKind
	}
	def, ok := s.catalog.Lookup(e.DefinitionID)
	if !ok {
		return ErrUnknownDefinition
	}

	now := clock.Millis(s.clk.Now())

	var frac float64
	if e.PlannedDuration > 0 {
		frac = float64(now-e.PhaseStartedAt) / float64(e.PlannedDuration.Milliseconds())
	}
	penalty := recallPenalty(def.RecallPenalty, frac)
	if penalty > 0 && e.Owner != "" {
		s.wallet.AdjustLoyalty(e.Owner, -penalty)
	}

	e.Status = StatusFailed
	if cd := def.Cooldown.Std() / 2; cd > 0 {
		s.reg.setCooldown(cooldownKey(e), now+cd.Milliseconds())
	}
	s.hist.append(HistoryRecord{
		EntityID:     e.ID,
		DefinitionID: e.DefinitionID,
		Kind:         e.Kind,
		Owner:        e.Owner,
		Status:       StatusFailed,
		Reason:       "recalled",
		EndedAt:      now,
	})
	s.reg.remove(e.ID)
	s.announceTerminal(e, def, StatusFailed, "recalled")
	s.log.Info("mission recalled",
		logx.String("entity", e.ID),
		logx.String("definition", e.DefinitionID),
		logx.Float64("penalty", penalty),
	)

	s.persistLocked()
	return nil
}
