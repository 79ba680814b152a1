package engine

import (
	"errors"
	"fmt"

	"github.com/zhubert/turnbench-core/game"
)

// ErrRetriesExhausted is matched by every RetryError.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Retry kinds.
const (
	KindFormat   = "format"
	KindValidity = "validity"
)

// RetryError is returned when a stage keeps producing unusable responses past
// its retry limit. Err is the error of the last attempt.
type RetryError struct {
	Stage    game.Stage
	Kind     string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s stage: %s retries exhausted after %d attempts: %v", e.Stage, e.Kind, e.Attempts, e.Err)
}

func (e *RetryError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

func (e *RetryError) Unwrap() error {
	return e.Err
}
