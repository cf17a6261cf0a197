package sched

import (
	"context"

	"github.com/google/uuid"

	"underlord/internal/defs"
	"underlord/internal/notify"
	logx "underlord/pkg/logx"
)

// spawnPass proposes at most one new ambient world event per tick. Caller
// holds the lock. Reports whether an entity was activated.
//
// Selection is a linear weighted walk over the catalog in declaration
// order (not resampling): draw r in [0, totalWeight), subtract each
// candidate's weight, pick the first that sends r negative. Ties break by
// declaration order, which makes seeded runs reproducible.
func (s *Scheduler) spawnPass(now int64) bool {
	if s.rng.Float64() < s.cfg.SkipChance {
		s.log.Debug("spawn tick skipped")
		return false
	}
	if s.reg.activeCount(defs.KindWorldEvent) >= s.cfg.AmbientCap {
		s.log.Debug("spawn tick at ambient cap", logx.Int("cap", s.cfg.AmbientCap))
		return false
	}

	var eligible []*defs.Definition
	total := 0
	for _, d := range s.catalog.Ambient() {
		if s.reg.isActive(d.ID) {
			continue
		}
		if s.reg.onCooldown(d.ID, now) {
			continue
		}
		eligible = append(eligible, d)
		total += d.Weight
	}
	if total <= 0 {
		return false
	}

	r := s.rng.IntN(total)
	var pick *defs.Definition
	for _, d := range eligible {
		r -= d.Weight
		if r < 0 {
			pick = d
			break
		}
	}
	if pick == nil {
		return false
	}

	e := &Entity{
		ID:           uuid.NewString(),
		Kind:         defs.KindWorldEvent,
		DefinitionID: pick.ID,
		CreatedAt:    now,
		Status:       StatusActive,
	}
	s.enterPhase(e, pick, 0, now)
	if err := s.reg.activate(e); err != nil {
		// Unreachable given the isActive filter above; keep the invariant loud.
		s.log.Warn("ambient activation rejected", logx.Err(err))
		return false
	}

	s.log.Info("world event spawned",
		logx.String("entity", e.ID),
		logx.String("definition", pick.ID),
		logx.Duration("duration", e.PlannedDuration),
	)
	s.sink.Announce(context.Background(), notify.Notification{
		Severity: notify.SeverityInfo,
		Title:    pick.Name,
		Text:     "a new situation is developing",
		Duration: e.PlannedDuration,
	})
	return true
}
