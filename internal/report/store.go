// Package report provides structured persistence and retrieval of
// workflow runs. A run is the ordered list of command invocations and
// file operations performed by one exec, setup, reverse, stash or sync.
package report

import (
	"fmt"
	"time"

	"github.com/deixis/ohosbuild/internal/runner"
)

// Kind identifies the type of a run.
type Kind string

const (
	Exec    Kind = "exec"
	Setup   Kind = "setup"
	Reverse Kind = "reverse"
	Stash   Kind = "stash"
	Sync    Kind = "sync"
)

// Step statuses.
const (
	StatusPass    = "pass"
	StatusFail    = "fail"
	StatusSkipped = "skipped"
)

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult holds the structured outcome of a workflow run.
type RunResult struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Started time.Time `json:"started"`
	Steps   []Step    `json:"steps"`
}

// Step is one task or command within a run.
type Step struct {
	Task     string        `json:"task,omitempty"`
	Type     string        `json:"type,omitempty"`
	Status   string        `json:"status"`
	Detail   string        `json:"detail,omitempty"` // why a step was skipped or failed
	Command  string        `json:"command,omitempty"`
	Dir      string        `json:"dir,omitempty"`
	Code     int           `json:"code"`
	Outcome  string        `json:"outcome,omitempty"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// StepFromResult records a runner result as a step. The status is pass
// for a zero exit and fail otherwise.
func StepFromResult(task, typ string, res *runner.Result) Step {
	s := Step{
		Task:     task,
		Type:     typ,
		Status:   StatusPass,
		Command:  res.Command,
		Dir:      res.Dir,
		Code:     res.Code,
		Outcome:  string(res.Outcome()),
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Duration: res.Duration,
	}
	if res.Err != nil {
		s.Error = res.Err.Error()
	}
	if !res.OK() {
		s.Status = StatusFail
	}
	return s
}

// Expect returns an error if the run's Kind does not match want.
func (r *RunResult) Expect(want Kind) error {
	if r.Kind != want {
		return fmt.Errorf("run %s is a %s run, not a %s run", r.ID, r.Kind, want)
	}
	return nil
}

// Passed reports whether no step failed.
func (r *RunResult) Passed() bool {
	return len(Failed(r)) == 0
}

// Counts returns the number of steps per status.
func (r *RunResult) Counts() map[string]int {
	out := make(map[string]int)
	for _, s := range r.Steps {
		out[s.Status]++
	}
	return out
}

// ByTask returns all steps recorded for the named task.
func ByTask(result *RunResult, task string) []Step {
	var out []Step
	for _, s := range result.Steps {
		if s.Task == task {
			out = append(out, s)
		}
	}
	return out
}

// Failed returns the failing steps in run order.
func Failed(result *RunResult) []Step {
	var out []Step
	for _, s := range result.Steps {
		if s.Status == StatusFail {
			out = append(out, s)
		}
	}
	return out
}
