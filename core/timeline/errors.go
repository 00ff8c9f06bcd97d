package timeline

import (
	"errors"
	"fmt"
)

var (
	// ErrConflictingAssociation is returned when a detection carries a stock
	// id that differs from the one already recorded for the entity. The
	// detection is rejected before any state changes.
	ErrConflictingAssociation = errors.New("conflicting stock association")

	// ErrAssociationOnExit is returned when a detection that would record an
	// exit carries a stock id for an entity that has none yet. A stock
	// association begins on an entry, so that a stock's count-inside never
	// sees an exit without the matching entry.
	ErrAssociationOnExit = errors.New("stock association cannot begin on an exit")
)

// PersistenceError wraps a backing-store commit failure. No in-memory state
// changed; the caller decides whether to retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }
