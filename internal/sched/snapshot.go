package sched

import (
	"context"
	"encoding/json"

	"underlord/internal/defs"
	logx "underlord/pkg/logx"
)

const stateVersion = 1

// persistedState is the full scheduler blob. It is always rewritten whole:
// a crash mid-write can lose the latest change but never corrupts the last
// committed state.
type persistedState struct {
	Version   int                           `json:"version"`
	SavedAt   int64                         `json:"saved_at"`
	Entities  []*Entity                     `json:"entities,omitempty"`
	Cooldowns map[string]int64              `json:"cooldowns,omitempty"`
	History   map[defs.Kind][]HistoryRecord `json:"history,omitempty"`
}

// persistLocked saves the current state. Persistence failures are logged
// and swallowed: the scheduler keeps running in-memory (it just will not
// survive a restart). Caller holds the lock.
func (s *Scheduler) persistLocked() {
	if s.store == nil {
		return
	}

	st := persistedState{
		Version:   stateVersion,
		SavedAt:   s.nowMillis(),
		Cooldowns: s.reg.cooldowns,
		History:   s.hist.byKind,
	}
	s.reg.forEach(func(e *Entity) bool {
		st.Entities = append(st.Entities, e)
		return true
	})

	b, err := json.Marshal(st)
	if err != nil {
		s.log.Error("state marshal failed", logx.Err(err))
		return
	}
	if err := s.store.Put(context.Background(), s.cfg.StateKey, b); err != nil {
		s.log.Warn("state save failed, continuing in-memory", logx.Err(err))
	}
}

// loadLocked restores persisted state. Any failure (missing key, corrupt
// blob, store error) degrades to an empty initial state; the scheduler
// never refuses to start. Caller holds the lock.
func (s *Scheduler) loadLocked() {
	if s.store == nil {
		return
	}

	b, ok, err := s.store.Get(context.Background(), s.cfg.StateKey)
	if err != nil {
		s.log.Warn("state load failed, starting empty", logx.Err(err))
		return
	}
	if !ok {
		s.log.Debug("no persisted state, first run")
		return
	}

	var st persistedState
	if err := json.Unmarshal(b, &st); err != nil {
		s.log.Warn("persisted state corrupt, starting empty", logx.Err(err))
		return
	}

	now := s.nowMillis()
	restored := 0
	for _, e := range st.Entities {
		if e == nil || e.Status != StatusActive {
			continue
		}
		def, ok := s.catalog.Lookup(e.DefinitionID)
		if !ok {
			s.log.Warn("dropping entity with unknown definition", logx.String("definition", e.DefinitionID))
			continue
		}
		if e.Phase < 0 || e.Phase >= len(def.Phases) {
			s.log.Warn("dropping entity with out-of-range phase",
				logx.String("definition", e.DefinitionID), logx.Int("phase", e.Phase))
			continue
		}
		if e.Progress == nil {
			e.Progress = map[string]float64{}
		}
		if err := s.reg.activate(e); err != nil {
			s.log.Warn("dropping duplicate persisted entity", logx.Err(err))
			continue
		}
		restored++
	}

	for k, until := range st.Cooldowns {
		s.reg.setCooldown(k, until)
	}
	// Cooldowns that lapsed while offline must not reject the first query.
	s.reg.pruneCooldowns(now)

	s.hist.restore(st.History)

	s.log.Info("state restored",
		logx.Int("entities", restored),
		logx.Int("cooldowns", len(s.reg.cooldowns)),
	)
}
