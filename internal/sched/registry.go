package sched

import "underlord/internal/defs"

// registry holds the active entity set plus cooldown records. It performs
// no time comparisons beyond cooldown bookkeeping and is not safe for
// concurrent use; the scheduler serializes access.
type registry struct {
	order []string
	byID  map[string]*Entity

	// activeDef enforces the one-active-entity-per-definition invariant.
	activeDef map[string]string

	// cooldowns outlive entities: key -> unix milli deadline.
	cooldowns map[string]int64
}

func newRegistry() *registry {
	return &registry{
		byID:      map[string]*Entity{},
		activeDef: map[string]string{},
		cooldowns: map[string]int64{},
	}
}

func (r *registry) activate(e *Entity) error {
	if _, exists := r.activeDef[e.DefinitionID]; exists {
		return &DuplicateActiveError{DefinitionID: e.DefinitionID}
	}
	r.order = append(r.order, e.ID)
	r.byID[e.ID] = e
	r.activeDef[e.DefinitionID] = e.ID
	return nil
}

func (r *registry) remove(id string) {
	e, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.activeDef, e.DefinitionID)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *registry) get(id string) (*Entity, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// forEach visits active entities in insertion order. Return false to stop.
// The callback must not add or remove entities.
func (r *registry) forEach(fn func(*Entity) bool) {
	for _, id := range r.order {
		if e, ok := r.byID[id]; ok {
			if !fn(e) {
				return
			}
		}
	}
}

// ids returns the insertion-ordered id list; safe to mutate the registry
// while walking the copy.
func (r *registry) ids() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *registry) isActive(definitionID string) bool {
	_, ok := r.activeDef[definitionID]
	return ok
}

func (r *registry) activeCount(kind defs.Kind) int {
	n := 0
	for _, e := range r.byID {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *registry) setCooldown(key string, until int64) {
	r.cooldowns[key] = until
}

// onCooldown reports whether key is still locked out at now. An expired
// record is discarded on query so stale persisted cooldowns never reject
// the first attempt after a long offline stretch.
func (r *registry) onCooldown(key string, now int64) bool {
	until, ok := r.cooldowns[key]
	if !ok {
		return false
	}
	if now >= until {
		delete(r.cooldowns, key)
		return false
	}
	return true
}

func (r *registry) pruneCooldowns(now int64) {
	for k, until := range r.cooldowns {
		if now >= until {
			delete(r.cooldowns, k)
		}
	}
}
