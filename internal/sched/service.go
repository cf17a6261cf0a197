// Package sched is the liveness core: a persistence-backed scheduler for
// stateful, phased entities (missions, world events, story arcs) that
// advance on wall-clock expiry and on external progress events, and that
// resume correctly after arbitrary process restarts.
package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"underlord/internal/clock"
	"underlord/internal/defs"
	"underlord/internal/eventbus"
	"underlord/internal/notify"
	"underlord/internal/player"
	"underlord/internal/random"
	"underlord/internal/storage"
	logx "underlord/pkg/logx"
)

type Scheduler struct {
	cfg     Config
	log     logx.Logger
	catalog *defs.Catalog
	store   storage.Store
	wallet  player.Wallet
	sink    notify.Sink
	bus     eventbus.Bus
	clk     clock.Clock
	rng     random.Source

	// mu serializes every state mutation: ticks, progress events, and
	// player operations all run to completion one at a time.
	mu   sync.Mutex
	reg  *registry
	hist *history

	c       *cron.Cron
	unsub   func()
	eventWG sync.WaitGroup

	started bool
	stopped bool
}

// New builds a scheduler from injected collaborators. Catalog and Wallet
// are required; the rest default to safe in-process implementations.
func New(opts Options) (*Scheduler, error) {
	if opts.Catalog == nil {
		return nil, errors.New("sched: catalog is required")
	}
	if opts.Wallet == nil {
		return nil, errors.New("sched: wallet is required")
	}

	s := &Scheduler{
		cfg:     opts.Config.withDefaults(),
		log:     opts.Log,
		catalog: opts.Catalog,
		store:   opts.Store,
		wallet:  opts.Wallet,
		sink:    opts.Sink,
		bus:     opts.Bus,
		clk:     opts.Clock,
		rng:     opts.Rand,
		reg:     newRegistry(),
		hist:    newHistory(),
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	if s.sink == nil {
		s.sink = notify.Discard
	}
	if s.clk == nil {
		s.clk = clock.System()
	}
	if s.rng == nil {
		s.rng = random.New()
	}
	return s, nil
}

func (s *Scheduler) nowMillis() int64 { return clock.Millis(s.clk.Now()) }

// Start restores persisted state, runs one immediate expiry pass covering
// any offline stretch, then begins the periodic cadences.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true

	s.loadLocked()

	// Catch-up pass: anything that expired while the process was down is
	// resolved now, before the first scheduled tick.
	now := s.nowMillis()
	if s.expiryPass(now) {
		s.persistLocked()
	}

	s.c = cron.New()
	if _, err := s.c.AddFunc(fmt.Sprintf("@every %s", s.cfg.FastTick), s.fastTick); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("sched: fast cadence: %w", err)
	}
	if _, err := s.c.AddFunc(fmt.Sprintf("@every %s", s.cfg.SpawnTick), s.spawnTick); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("sched: spawn cadence: %w", err)
	}
	s.c.Start()

	if s.bus != nil {
		ch, unsub := s.bus.Subscribe(64)
		s.unsub = unsub
		s.eventWG.Add(1)
		go func() {
			defer s.eventWG.Done()
			// Single consumer: progress events for the same entity are
			// processed strictly in arrival order, never concurrently.
			for ev := range ch {
				s.HandleProgress(ev)
			}
		}()
	}

	s.mu.Unlock()
	s.log.Info("scheduler started",
		logx.Duration("fast_tick", s.cfg.FastTick),
		logx.Duration("spawn_tick", s.cfg.SpawnTick),
		logx.Int("ambient_cap", s.cfg.AmbientCap),
	)
	return nil
}

// Stop halts the cadences and flushes state once. It is idempotent:
// calling it twice leaves the same persisted state as calling it once.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	c := s.c
	unsub := s.unsub
	s.c = nil
	s.unsub = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	if unsub != nil {
		unsub()
	}
	s.eventWG.Wait()

	s.mu.Lock()
	s.persistLocked()
	s.mu.Unlock()

	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) fastTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expiryPass(s.nowMillis()) {
		s.persistLocked()
	}
}

func (s *Scheduler) spawnTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spawnPass(s.nowMillis()) {
		s.persistLocked()
	}
}

// Tick runs one expiry pass immediately. Exposed for hosts that want to
// force a check outside the cadence (e.g. right after a scene load).
func (s *Scheduler) Tick() {
	s.fastTick()
}

// Deploy sends a crew member on a mission. The operation is all-or-nothing:
// every validation runs before the cash cost is deducted, and activation
// cannot fail after the deduction.
func (s *Scheduler) Deploy(definitionID, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.catalog.Lookup(definitionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDefinition, definitionID)
	}
	if def.Kind != defs.KindMission {
		return ErrWrongKind
	}

	snap := s.wallet.Snapshot()
	if _, ok := snap.Skill[member]; !ok {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, member)
	}

	busy := false
	s.reg.forEach(func(e *Entity) bool {
		if e.Kind == defs.KindMission && e.Owner == member {
			busy = true
			return false
		}
		return true
	})
	if busy {
		return ErrMemberBusy
	}

	if s.reg.isActive(definitionID) {
		return &DuplicateActiveError{DefinitionID: definitionID}
	}

	now := s.nowMillis()
	if s.reg.onCooldown(definitionID+"/"+member, now) {
		return ErrOnCooldown
	}

	if def.Cost > 0 {
		if err := s.wallet.SpendCash(def.Cost); err != nil {
			return err
		}
	}

	e := &Entity{
		ID:           uuid.NewString(),
		Kind:         defs.KindMission,
		DefinitionID: definitionID,
		Owner:        member,
		CreatedAt:    now,
		Status:       StatusActive,
	}
	s.enterPhase(e, def, 0, now)
	if err := s.reg.activate(e); err != nil {
		// Unreachable: duplicate was checked before the cost deduction.
		s.wallet.AddCash(def.Cost)
		return err
	}

	s.log.Info("mission deployed",
		logx.String("entity", e.ID),
		logx.String("definition", definitionID),
		logx.String("member", member),
		logx.Duration("duration", e.PlannedDuration),
	)
	s.persistLocked()
	return nil
}

// Trigger activates a story arc from an explicit game condition. Arcs
// bypass the ambient spawner entirely.
func (s *Scheduler) Trigger(arcID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.catalog.Lookup(arcID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDefinition, arcID)
	}
	if def.Kind != defs.KindStoryArc {
		return ErrWrongKind
	}

	if snap := s.wallet.Snapshot(); snap.Level < def.LevelRequired {
		return fmt.Errorf("%w: need level %d", ErrLevelTooLow, def.LevelRequired)
	}
	if s.reg.isActive(arcID) {
		return &DuplicateActiveError{DefinitionID: arcID}
	}

	now := s.nowMillis()
	if s.reg.onCooldown(arcID, now) {
		return ErrOnCooldown
	}

	e := &Entity{
		ID:           uuid.NewString(),
		Kind:         defs.KindStoryArc,
		DefinitionID: arcID,
		CreatedAt:    now,
		Status:       StatusActive,
	}
	s.enterPhase(e, def, 0, now)
	if err := s.reg.activate(e); err != nil {
		return err
	}

	s.log.Info("story arc triggered",
		logx.String("entity", e.ID),
		logx.String("definition", arcID),
	)
	s.persistLocked()
	return nil
}

// Overview returns a copy of the active set, cooldowns, and history.
func (s *Scheduler) Overview() Overview {
	s.mu.Lock()
	defer s.mu.Unlock()

	ov := Overview{
		Cooldowns: make(map[string]int64, len(s.reg.cooldowns)),
		History:   s.hist.snapshot(),
	}
	s.reg.forEach(func(e *Entity) bool {
		cp := *e
		cp.Progress = make(map[string]float64, len(e.Progress))
		for k, v := range e.Progress {
			cp.Progress[k] = v
		}
		ov.Active = append(ov.Active, cp)
		return true
	})
	for k, v := range s.reg.cooldowns {
		ov.Cooldowns[k] = v
	}
	return ov
}
