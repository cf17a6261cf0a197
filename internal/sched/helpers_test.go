package sched

import (
	"sync"
	"testing"
	"time"

	"underlord/internal/clock"
	"underlord/internal/defs"
	"underlord/internal/notify"
	"underlord/internal/player"
	"underlord/internal/storage"
)

// scriptRand replays queued draws; exhausted queues fall back to values
// that keep passes inert (no skip, first pick, failed draw).
type scriptRand struct {
	floats []float64
	ints   []int
	i64s   []int64
}

func (r *scriptRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.9999
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptRand) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

func (r *scriptRand) Int64N(n int64) int64 {
	if len(r.i64s) == 0 {
		return 0
	}
	v := r.i64s[0]
	r.i64s = r.i64s[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

// recordWallet wraps the in-memory wallet and records loyalty deltas so
// tests can assert on exact penalty values before clamping.
type recordWallet struct {
	*player.Memory

	mu             sync.Mutex
	loyaltyAdjusts []loyaltyAdjust
}

type loyaltyAdjust struct {
	member string
	delta  float64
}

func newRecordWallet(initial player.State) *recordWallet {
	return &recordWallet{Memory: player.NewMemory(initial)}
}

func (w *recordWallet) AdjustLoyalty(member string, delta float64) {
	w.mu.Lock()
	w.loyaltyAdjusts = append(w.loyaltyAdjusts, loyaltyAdjust{member, delta})
	w.mu.Unlock()
	w.Memory.AdjustLoyalty(member, delta)
}

func (w *recordWallet) adjusts() []loyaltyAdjust {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]loyaltyAdjust, len(w.loyaltyAdjusts))
	copy(out, w.loyaltyAdjusts)
	return out
}

const testCatalogYAML = `
missions:
  - id: warehouse-job
    name: Warehouse Job
    cooldown: 1h
    cost: 100
    base_chance: 0.5
    skill_weight: 0.3
    loyalty_weight: 0.2
    recall_penalty: 10
    phases:
      - name: execution
        duration: 2h
    reward:
      cash: 2500
      experience: 100
      loyalty: 0.1
    penalty:
      heat: 5
      loyalty: -0.05

world_events:
  - id: heat-wave
    name: Heat Wave
    weight: 10
    cooldown: 1h
    phases:
      - name: active
        duration: 45m
    reward:
      respect: 10
  - id: street-festival
    name: Street Festival
    weight: 20
    cooldown: 1h
    phases:
      - name: active
        duration: 30m
  - id: police-crackdown
    name: Police Crackdown
    weight: 70
    cooldown: 1h
    phases:
      - name: lay-low
        requirement:
          event: crime_completed
          category: stealth
          count: 3
          fail_on_busted: true
    reward:
      experience: 50

story_arcs:
  - id: rise-to-power
    name: Rise to Power
    triggered_only: true
    level_required: 5
    cooldown: 24h
    phases:
      - name: offer
        choices:
          accept: execution
          decline: ""
          walkaway: end
      - name: execution
        duration: 1h
        next: payoff
      - name: payoff
        requirement:
          event: deposit_made
          threshold: 10000
    reward:
      cash: 50000
      unlocks: [district-east]
`

func testCatalog(t *testing.T) *defs.Catalog {
	t.Helper()
	c, err := defs.Parse([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("test catalog: %v", err)
	}
	return c
}

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	s      *Scheduler
	clk    *clock.Manual
	wallet *recordWallet
	sink   *notify.Recorder
	rng    *scriptRand
}

type fixtureOpt func(*Options)

func withStore(st storage.Store) fixtureOpt {
	return func(o *Options) { o.Store = st }
}

func withConfig(cfg Config) fixtureOpt {
	return func(o *Options) { o.Config = cfg }
}

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()

	f := &fixture{
		clk: clock.NewManual(testEpoch),
		rng: &scriptRand{},
		wallet: newRecordWallet(player.State{
			Level: 10,
			Cash:  1000,
			Skill: map[string]float64{
				"vinnie": 0.8,
				"shady":  0.2,
			},
			Loyalty: map[string]float64{
				"vinnie": 0.9,
				"shady":  0.5,
			},
		}),
		sink: &notify.Recorder{},
	}

	o := Options{
		Catalog: testCatalog(t),
		Wallet:  f.wallet,
		Sink:    f.sink,
		Clock:   f.clk,
		Rand:    f.rng,
	}
	for _, fn := range opts {
		fn(&o)
	}

	s, err := New(o)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.s = s
	return f
}

// activateAmbient force-spawns one ambient world event by running a spawn
// pass with a non-skipping draw.
func (f *fixture) activateAmbient(t *testing.T, pickFloat float64, pickInt int) Entity {
	t.Helper()
	f.rng.floats = append(f.rng.floats, pickFloat)
	f.rng.ints = append(f.rng.ints, pickInt)

	f.s.mu.Lock()
	before := len(f.s.reg.order)
	ok := f.s.spawnPass(clock.Millis(f.clk.Now()))
	f.s.mu.Unlock()
	if !ok {
		t.Fatal("spawnPass did not activate")
	}

	ov := f.s.Overview()
	if len(ov.Active) != before+1 {
		t.Fatalf("active count = %d", len(ov.Active))
	}
	return ov.Active[len(ov.Active)-1]
}
