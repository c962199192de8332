package runner

import "time"

// Sentinel return codes reported instead of a child exit status.
const (
	CodeFailure = -1 // spawn failure or unexpected fault
	CodeTimeout = -2 // invocation exceeded its timeout
)

// Outcome classifies a finished invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeExit    Outcome = "exit" // non-zero child exit code
	OutcomeTimeout Outcome = "timeout"
	OutcomeSpawn   Outcome = "spawn"
	OutcomeError   Outcome = "error"
)

// Result holds the output of a command execution.
type Result struct {
	RunID     string        // unique identifier for this invocation
	Command   string        // command line as given
	Dir       string        // working directory the command ran in
	Code      int           // exit code or one of the sentinel codes
	Stdout    string        // captured stdout (may be truncated)
	Stderr    string        // captured stderr (may be truncated)
	Err       error         // *TimeoutError, *SpawnError or an unexpected fault
	Truncated bool          // true if output exceeded the size cap
	Started   time.Time     // when the invocation began
	Duration  time.Duration // wall time until the result was final
}

// Outcome reports how the invocation ended.
func (r *Result) Outcome() Outcome {
	switch {
	case r.Code == CodeTimeout:
		return OutcomeTimeout
	case r.Code == CodeFailure && isSpawn(r.Err):
		return OutcomeSpawn
	case r.Code == CodeFailure:
		return OutcomeError
	case r.Code != 0:
		return OutcomeExit
	}
	return OutcomeSuccess
}

// OK reports whether the child ran to completion with exit code 0.
func (r *Result) OK() bool {
	return r.Code == 0 && r.Err == nil
}

// ErrorText returns the error slot as text: the runner error when present,
// otherwise the captured stderr.
func (r *Result) ErrorText() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Stderr
}
