package runner

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError is recorded when an invocation does not finish in time.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s: %s", e.Timeout, e.Command)
}

// SpawnError is recorded when the command could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

func isSpawn(err error) bool {
	var se *SpawnError
	return errors.As(err, &se)
}
