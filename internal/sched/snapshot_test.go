package sched

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"underlord/internal/clock"
	"underlord/internal/defs"
)

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := tempStore(t)

	f := newFixture(t, withStore(st))
	if err := f.s.Deploy("warehouse-job", "vinnie"); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	f.activateAmbient(t, 0.9, 30)
	f.s.HandleProgress(progressEvent("crime_completed", "stealth"))

	f2 := newFixture(t, withStore(st))
	if err := f2.s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f2.s.Stop(ctx)

	ov1 := f.s.Overview()
	ov2 := f2.s.Overview()
	if len(ov2.Active) != len(ov1.Active) {
		t.Fatalf("restored %d entities, want %d", len(ov2.Active), len(ov1.Active))
	}
	for i := range ov1.Active {
		a, b := ov1.Active[i], ov2.Active[i]
		if a.ID != b.ID || a.DefinitionID != b.DefinitionID || a.Phase != b.Phase ||
			a.ExpiresAt != b.ExpiresAt || a.PhaseStartedAt != b.PhaseStartedAt {
			t.Fatalf("entity %d mismatch:\n%+v\n%+v", i, a, b)
		}
		for k, v := range a.Progress {
			if b.Progress[k] != v {
				t.Fatalf("progress[%s] = %v, want %v", k, b.Progress[k], v)
			}
		}
	}
}

func TestMissingStateIsFirstRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withStore(tempStore(t)))
	if err := f.s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.s.Stop(ctx)

	ov := f.s.Overview()
	if len(ov.Active) != 0 || len(ov.Cooldowns) != 0 {
		t.Fatalf("non-empty first run: %+v", ov)
	}
}

func TestCorruptStateStartsEmptyAndRecovers(t *testing.T) {
	ctx := context.Background()
	st := tempStore(t)
	if err := st.Put(ctx, "sched.state", []byte("{not json")); err != nil {
		t.Fatalf("seed corrupt blob: %v", err)
	}

	f := newFixture(t, withStore(st))
	if err := f.s.Start(ctx); err != nil {
		t.Fatalf("Start on corrupt state: %v", err)
	}
	defer f.s.Stop(ctx)

	if got := len(f.s.Overview().Active); got != 0 {
		t.Fatalf("active = %d", got)
	}
	// The scheduler is fully usable; the next save overwrites the junk.
	if err := f.s.Deploy("warehouse-job", "vinnie"); err != nil {
		t.Fatalf("Deploy after corrupt load: %v", err)
	}
	b, ok, err := st.Get(ctx, "sched.state")
	if err != nil || !ok {
		t.Fatalf("state missing after deploy: ok=%v err=%v", ok, err)
	}
	var decoded persistedState
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("rewritten state not valid json: %v", err)
	}
	if len(decoded.Entities) != 1 {
		t.Fatalf("persisted entities = %d", len(decoded.Entities))
	}
}

func TestLoadDropsInvalidEntities(t *testing.T) {
	ctx := context.Background()
	st := tempStore(t)

	now := clock.Millis(testEpoch)
	blob, err := json.Marshal(persistedState{
		Version: stateVersion,
		SavedAt: now,
		Entities: []*Entity{
			{ID: "keep", Kind: defs.KindWorldEvent, DefinitionID: "heat-wave",
				Status: StatusActive, Phase: 0, ExpiresAt: now + time.Hour.Milliseconds()},
			{ID: "ghost", Kind: defs.KindWorldEvent, DefinitionID: "retired-def",
				Status: StatusActive, Phase: 0},
			{ID: "oob", Kind: defs.KindWorldEvent, DefinitionID: "street-festival",
				Status: StatusActive, Phase: 7},
			{ID: "dup", Kind: defs.KindWorldEvent, DefinitionID: "heat-wave",
				Status: StatusActive, Phase: 0},
			{ID: "done", Kind: defs.KindWorldEvent, DefinitionID: "street-festival",
				Status: StatusCompleted, Phase: 0},
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := st.Put(ctx, "sched.state", blob); err != nil {
		t.Fatalf("seed: %v", err)
	}

	f := newFixture(t, withStore(st))
	if err := f.s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.s.Stop(ctx)

	ov := f.s.Overview()
	if len(ov.Active) != 1 || ov.Active[0].ID != "keep" {
		t.Fatalf("restored = %+v", ov.Active)
	}
}

func TestStaleCooldownsPrunedOnLoad(t *testing.T) {
	ctx := context.Background()
	st := tempStore(t)

	now := clock.Millis(testEpoch)
	cooldowns := map[string]int64{}
	cooldowns["heat-wave"] = now - 1 // lapsed while offline
	cooldowns["warehouse-job/vinnie"] = now + time.Hour.Milliseconds()
	blob, err := json.Marshal(persistedState{
		Version:   stateVersion,
		SavedAt:   now - time.Hour.Milliseconds(),
		Cooldowns: cooldowns,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := st.Put(ctx, "sched.state", blob); err != nil {
		t.Fatalf("seed: %v", err)
	}

	f := newFixture(t, withStore(st))
	if err := f.s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.s.Stop(ctx)

	ov := f.s.Overview()
	if _, ok := ov.Cooldowns["heat-wave"]; ok {
		t.Fatal("lapsed cooldown survived the load")
	}
	if _, ok := ov.Cooldowns["warehouse-job/vinnie"]; !ok {
		t.Fatal("live cooldown dropped on load")
	}

	if err := f.s.Deploy("warehouse-job", "vinnie"); err != ErrOnCooldown {
		t.Fatalf("deploy against restored cooldown: %v", err)
	}
}

func TestPersistWithoutStoreIsNoOp(t *testing.T) {
	f := newFixture(t) // no store
	if err := f.s.Deploy("warehouse-job", "vinnie"); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if err := f.s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
