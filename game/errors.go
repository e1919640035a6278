package game

import (
	"errors"
	"fmt"
)

var (
	ErrWrongPhase    = errors.New("operation not allowed in current phase")
	ErrInvalidSeat   = errors.New("invalid seat")
	ErrSeatEmpty     = errors.New("seat is empty")
	ErrSeatOccupied  = errors.New("seat already occupied")
	ErrNotAlive      = errors.New("seat is not alive")
	ErrRoleMismatch  = errors.New("role does not match seat")
	ErrNoAbility     = errors.New("role has no night ability")
	ErrInvalidTarget = errors.New("invalid target")
	ErrMuted         = errors.New("seat is muted today")
	ErrSeatCount     = errors.New("exactly nine occupied seats required")
)

// PhaseError reports an entry point called from the wrong phase. It matches ErrWrongPhase.
type PhaseError struct {
	Op    string
	Phase Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: not allowed in phase %s", e.Op, e.Phase)
}

func (e *PhaseError) Is(target error) bool { return target == ErrWrongPhase }

type ErrorKind string

const (
	KindNone     ErrorKind = ""
	KindPhase    ErrorKind = "phase"
	KindIdentity ErrorKind = "identity"
	KindCapacity ErrorKind = "capacity"
	KindUnknown  ErrorKind = "unknown"
)

// ErrorKindOf maps an engine error onto the recoverable error taxonomy.
func ErrorKindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrWrongPhase):
		return KindPhase
	case errors.Is(err, ErrSeatCount):
		return KindCapacity
	case errors.Is(err, ErrInvalidSeat), errors.Is(err, ErrSeatEmpty), errors.Is(err, ErrSeatOccupied),
		errors.Is(err, ErrNotAlive), errors.Is(err, ErrRoleMismatch), errors.Is(err, ErrNoAbility),
		errors.Is(err, ErrInvalidTarget), errors.Is(err, ErrMuted):
		return KindIdentity
	default:
		return KindUnknown
	}
}

type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }
