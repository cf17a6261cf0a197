package sched

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownDefinition = errors.New("unknown definition")
	ErrWrongKind         = errors.New("operation not valid for this entity kind")
	ErrMemberNotFound    = errors.New("crew member not found")
	ErrMemberBusy        = errors.New("crew member already on a mission")
	ErrOnCooldown        = errors.New("on cooldown")
	ErrLevelTooLow       = errors.New("player level too low")
	ErrNotActive         = errors.New("entity not active")
	ErrNoChoice          = errors.New("choice not available in current phase")
)

// DuplicateActiveError reports an activation attempt while an entity of the
// same definition is already active.
type DuplicateActiveError struct {
	DefinitionID string
}

func (e *DuplicateActiveError) Error() string {
	return fmt.Sprintf("definition %s already has an active entity", e.DefinitionID)
}
