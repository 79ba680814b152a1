package game

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is matched by every OutOfRangeError.
	ErrOutOfRange = errors.New("turn number out of range")

	// ErrNotValid is matched by every NotValidError.
	ErrNotValid = errors.New("choice not valid")
)

// OutOfRangeError reports a turn number outside the current history.
type OutOfRangeError struct {
	TurnNum    int
	HistoryLen int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("turn %d is out of range (history has %d turns)", e.TurnNum, e.HistoryLen)
}

func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// NotValidError reports a well-formed but semantically invalid value, such as
// a verifier index past the end of the list.
type NotValidError struct {
	Stage  Stage
	Value  string
	Reason string
}

func (e *NotValidError) Error() string {
	return fmt.Sprintf("%s: %q is not valid: %s", e.Stage, e.Value, e.Reason)
}

func (e *NotValidError) Is(target error) bool {
	return target == ErrNotValid
}
