package session

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyStarted  = errors.New("session already started")
	ErrNotInRound      = errors.New("round is not accepting answers")
	ErrNoPendingAnswer = errors.New("no answer awaiting dismissal")
	ErrSessionOver     = errors.New("session is over")
	ErrStaleTrigger    = errors.New("trigger belongs to an earlier round")
)

// StartError reports which step of session startup failed.
type StartError struct {
	Step string // "create" or "start"
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to %s game: %v", e.Step, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// Ignorable reports whether err only means the call was a no-op because the
// round had already been resolved, the trigger was stale or the session is over.
func Ignorable(err error) bool {
	return errors.Is(err, ErrNotInRound) ||
		errors.Is(err, ErrSessionOver) ||
		errors.Is(err, ErrNoPendingAnswer) ||
		errors.Is(err, ErrStaleTrigger)
}
