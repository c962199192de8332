// Package runner executes shell commands with a bounded wall-clock timeout.
// Each invocation runs its child on a worker goroutine while the caller
// enforces the deadline, and the child is reaped on every exit path.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// waitDelay bounds how long Wait may block on pipes that descendants of
// the child still hold open after the child itself is gone.
const waitDelay = 100 * time.Millisecond

// Runner executes shell commands within a workspace.
type Runner struct {
	Workspace string        // base for relative directories; "" means the process cwd
	Bounded   bool          // reject directories outside Workspace
	MaxOutput int           // per-stream byte cap; <= 0 keeps everything
	Shell     string        // defaults to /bin/sh
	Log       *logrus.Entry // sink for verbose invocations; nil discards
	Observe   func(*Result) // called once with every finished result
}

// Invocation is one request to run a command with a deadline.
type Invocation struct {
	Command string
	Dir     string // relative to the runner workspace unless absolute
	Timeout time.Duration
	Verbose bool
}

// Run executes inv.Command through the shell and waits at most
// inv.Timeout for it. Timeouts, spawn failures and non-zero exits are all
// reported in the Result; the error is only set for an empty command.
func (r *Runner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if strings.TrimSpace(inv.Command) == "" {
		return nil, errors.New("empty command")
	}

	res := &Result{
		RunID:   uuid.New().String(),
		Command: inv.Command,
		Started: time.Now(),
	}
	log := r.logger(inv.Verbose).WithField("run_id", res.RunID)

	dir, err := r.resolveDir(inv.Dir)
	res.Dir = dir

	log.WithFields(logrus.Fields{
		"command": inv.Command,
		"dir":     dir,
		"timeout": inv.Timeout,
		"started": res.Started.Format(time.TimeOnly),
	}).Info("Running command")

	switch {
	case err != nil:
		res.Code = CodeFailure
		res.Err = &SpawnError{Command: inv.Command, Err: err}
	case inv.Timeout <= 0:
		res.Code = CodeTimeout
		res.Err = &TimeoutError{Command: inv.Command, Timeout: inv.Timeout}
	default:
		r.execute(ctx, inv, res, log)
	}
	res.Duration = time.Since(res.Started)

	r.finish(res, log)
	return res, nil
}

// RunArgs joins tokens with single spaces and runs the resulting command
// line. Tokens are not quoted.
func (r *Runner) RunArgs(ctx context.Context, tokens []string, dir string, verbose bool, timeout time.Duration) (*Result, error) {
	return r.Run(ctx, Invocation{
		Command: strings.Join(tokens, " "),
		Dir:     dir,
		Timeout: timeout,
		Verbose: verbose,
	})
}

// execute is the controller side: it starts the worker and waits for it,
// the deadline, whichever comes first. On timeout the worker is cancelled
// and the controller still waits for it to reap the child.
func (r *Runner) execute(ctx context.Context, inv Invocation, res *Result, log *logrus.Entry) {
	w := newWorker(ctx, r, inv, res.Dir, log)
	go w.run()

	timer := time.NewTimer(inv.Timeout)
	defer timer.Stop()

	select {
	case <-w.done:
	case <-timer.C:
		w.cancel(&TimeoutError{Command: inv.Command, Timeout: inv.Timeout})
		<-w.done
	}

	res.Code = w.code
	res.Err = w.err
	res.Stdout = w.stdout.String()
	res.Stderr = w.stderr.String()
	res.Truncated = w.stdout.truncated || w.stderr.truncated
}

func (r *Runner) finish(res *Result, log *logrus.Entry) {
	fields := logrus.Fields{
		"code":     res.Code,
		"outcome":  res.Outcome(),
		"duration": res.Duration.Round(time.Millisecond),
	}
	if res.Err != nil {
		log.WithFields(fields).WithError(res.Err).Warn("Command failed")
	} else {
		log.WithFields(fields).Info("Command finished")
	}

	if r.Observe != nil {
		r.Observe(res)
	}
}

func (r *Runner) logger(verbose bool) *logrus.Entry {
	if !verbose || r.Log == nil {
		return discard
	}
	return r.Log
}

var discard = func() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}()

// resolveDir resolves dir relative to the workspace. When the runner is
// bounded the result must remain within the workspace.
func (r *Runner) resolveDir(dir string) (string, error) {
	base := r.Workspace
	if base == "" {
		base = "."
	}
	if dir == "" {
		return base, nil
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}
	dir = filepath.Clean(dir)
	if !r.Bounded {
		return dir, nil
	}

	absBase, err := filepath.Abs(base)
	if err != nil {
		return dir, fmt.Errorf("resolving workspace: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return dir, fmt.Errorf("resolving dir: %w", err)
	}
	rel, err := filepath.Rel(absBase, absDir)
	if err != nil {
		return dir, fmt.Errorf("resolving dir: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return dir, fmt.Errorf("dir %q is outside workspace %q", dir, base)
	}
	return dir, nil
}

// worker owns the child process and its output for one invocation.
// code, err and the captures are written only by run; the controller
// reads them after done is closed.
type worker struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}

	inv   Invocation
	dir   string
	shell string

	stdout *capture
	stderr *capture
	code   int
	err    error
}

func newWorker(ctx context.Context, r *Runner, inv Invocation, dir string, log *logrus.Entry) *worker {
	wctx, cancel := context.WithCancelCause(ctx)
	w := &worker{
		ctx:    wctx,
		cancel: cancel,
		done:   make(chan struct{}),
		inv:    inv,
		dir:    dir,
		shell:  r.Shell,
		stdout: &capture{limit: r.MaxOutput},
		stderr: &capture{limit: r.MaxOutput},
	}
	if inv.Verbose && r.Log != nil {
		w.stdout.lines = func(line string) { log.WithField("stream", "stdout").Info(line) }
		w.stderr.lines = func(line string) { log.WithField("stream", "stderr").Info(line) }
	}
	return w
}

func (w *worker) run() {
	defer close(w.done)
	defer w.cancel(nil)

	cmd := shellCommand(w.shell, w.inv.Command)
	cmd.Dir = w.dir
	cmd.Stdout = w.stdout
	cmd.Stderr = w.stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		w.fail(&SpawnError{Command: w.inv.Command, Err: err})
		return
	}
	pid := cmd.Process.Pid

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		sweep(pid)
		w.exited(cmd.ProcessState, err)
	case <-w.ctx.Done():
		terminate(pid)
		<-waitCh
		w.cancelled(context.Cause(w.ctx))
	}

	w.stdout.flush()
	w.stderr.flush()
}

func (w *worker) exited(state *os.ProcessState, err error) {
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) && !errors.Is(err, exec.ErrWaitDelay) {
		w.fail(fmt.Errorf("waiting for %q: %w", w.inv.Command, err))
		return
	}
	if state == nil {
		w.fail(fmt.Errorf("waiting for %q: no process state", w.inv.Command))
		return
	}

	code := exitStatus(state)
	switch code {
	case 126:
		w.fail(&SpawnError{Command: w.inv.Command, Err: fmt.Errorf("not executable: %s", firstLine(w.stderr.String()))})
	case 127:
		w.fail(&SpawnError{Command: w.inv.Command, Err: fmt.Errorf("command not found: %s", firstLine(w.stderr.String()))})
	default:
		w.code = code
	}
}

func (w *worker) cancelled(cause error) {
	if IsTimeout(cause) {
		w.code = CodeTimeout
		w.err = cause
		return
	}
	w.code = CodeFailure
	w.err = cause
}

func (w *worker) fail(err error) {
	w.code = CodeFailure
	w.err = err
	w.cancel(err)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
