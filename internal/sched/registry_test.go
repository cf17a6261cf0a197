package sched

import (
	"errors"
	"testing"

	"underlord/internal/defs"
)

func entity(id, defID string, kind defs.Kind) *Entity {
	return &Entity{
		ID:           id,
		Kind:         kind,
		DefinitionID: defID,
		Status:       StatusActive,
		Progress:     map[string]float64{},
	}
}

func TestRegistryDuplicateActive(t *testing.T) {
	r := newRegistry()
	if err := r.activate(entity("e1", "heat-wave", defs.KindWorldEvent)); err != nil {
		t.Fatalf("first activate: %v", err)
	}

	err := r.activate(entity("e2", "heat-wave", defs.KindWorldEvent))
	var dup *DuplicateActiveError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateActiveError, got %v", err)
	}
	if dup.DefinitionID != "heat-wave" {
		t.Fatalf("error names %q", dup.DefinitionID)
	}

	// Removing the first frees the slot.
	r.remove("e1")
	if err := r.activate(entity("e2", "heat-wave", defs.KindWorldEvent)); err != nil {
		t.Fatalf("activate after remove: %v", err)
	}
}

func TestRegistryIterationOrder(t *testing.T) {
	r := newRegistry()
	for _, id := range []string{"a", "b", "c"} {
		if err := r.activate(entity(id, "def-"+id, defs.KindWorldEvent)); err != nil {
			t.Fatalf("activate %s: %v", id, err)
		}
	}
	r.remove("b")

	var got []string
	r.forEach(func(e *Entity) bool {
		got = append(got, e.ID)
		return true
	})
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("iteration order = %v", got)
	}
}

func TestRegistryActiveCount(t *testing.T) {
	r := newRegistry()
	_ = r.activate(entity("a", "d1", defs.KindWorldEvent))
	_ = r.activate(entity("b", "d2", defs.KindWorldEvent))
	_ = r.activate(entity("c", "d3", defs.KindMission))

	if n := r.activeCount(defs.KindWorldEvent); n != 2 {
		t.Fatalf("world events = %d", n)
	}
	if n := r.activeCount(defs.KindStoryArc); n != 0 {
		t.Fatalf("story arcs = %d", n)
	}
}

func TestCooldownExpiredRecordDiscardedOnQuery(t *testing.T) {
	r := newRegistry()
	r.setCooldown("heat-wave", 1000)

	if !r.onCooldown("heat-wave", 999) {
		t.Fatal("should be on cooldown before deadline")
	}
	if r.onCooldown("heat-wave", 1000) {
		t.Fatal("cooldown should have lapsed at deadline")
	}
	// The stale record is gone, not just ignored.
	if _, ok := r.cooldowns["heat-wave"]; ok {
		t.Fatal("expired record should be deleted on query")
	}
}

func TestPruneCooldowns(t *testing.T) {
	r := newRegistry()
	r.setCooldown("a", 1000)
	r.setCooldown("b", 5000)
	r.pruneCooldowns(2000)

	if _, ok := r.cooldowns["a"]; ok {
		t.Fatal("expired cooldown survived prune")
	}
	if _, ok := r.cooldowns["b"]; !ok {
		t.Fatal("live cooldown pruned")
	}
}
