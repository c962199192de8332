package workflow

import (
	"context"
	"time"

	"github.com/deixis/ohosbuild/internal/report"
	"github.com/deixis/ohosbuild/internal/runner"
)

// Exec runs one command line under the engine's runner and records it as
// an exec run. A relative dir resolves against the engine root and a zero
// timeout selects the configured default.
func (e *Engine) Exec(ctx context.Context, command, dir string, timeout time.Duration) (*report.RunResult, error) {
	if timeout == 0 {
		timeout = e.timeout()
	}
	if dir == "" {
		dir = e.Root
	}
	res, err := e.Runner.Run(ctx, runner.Invocation{
		Command: command,
		Dir:     e.resolve(dir),
		Timeout: timeout,
		Verbose: e.Verbose,
	})
	if err != nil {
		return nil, err
	}
	rr := e.newRun(report.Exec)
	e.record(rr, report.StepFromResult("", string(report.Exec), res))
	return rr, nil
}
