// Package workflow drives the patch, stash and sync tasks of an engine
// checkout on top of the bounded command runner. It is consumed by both
// the MCP server and the CLI commands.
package workflow

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/deixis/ohosbuild/internal/config"
	"github.com/deixis/ohosbuild/internal/report"
	"github.com/deixis/ohosbuild/internal/runner"
	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// CommandRunner executes commands with a bounded timeout.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, inv runner.Invocation) (*runner.Result, error)
}

// Engine holds shared dependencies for all workflow operations.
type Engine struct {
	Config  *config.Config
	Runner  CommandRunner
	Root    string        // engine root; task paths resolve against it
	Fs      afero.Fs      // filesystem rooted at Root; nil means the OS filesystem under Root
	Log     *logrus.Entry // progress log; nil discards
	Verbose bool          // forwarded to every invocation
}

// fs returns the filesystem task paths resolve against.
func (e *Engine) fs() afero.Fs {
	if e.Fs == nil {
		return afero.NewBasePathFs(afero.NewOsFs(), e.Root)
	}
	return e.Fs
}

var quiet = func() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}()

func (e *Engine) log() *logrus.Entry {
	if e.Log == nil {
		return quiet
	}
	return e.Log
}

func (e *Engine) timeout() time.Duration {
	if e.Config == nil {
		return config.DefaultTimeout
	}
	return e.Config.Timeout()
}

func (e *Engine) newRun(kind report.Kind) *report.RunResult {
	return &report.RunResult{ID: uuid.New().String(), Kind: kind, Started: time.Now()}
}

// command runs argv in dir. Arguments are quoted for the shell, so paths
// with spaces survive the trip through sh -c.
func (e *Engine) command(ctx context.Context, dir string, argv ...string) (*runner.Result, error) {
	return e.shell(ctx, dir, shellquote.Join(argv...))
}

// shell runs a command line as given.
func (e *Engine) shell(ctx context.Context, dir, line string) (*runner.Result, error) {
	res, err := e.Runner.Run(ctx, runner.Invocation{
		Command: line,
		Dir:     dir,
		Timeout: e.timeout(),
		Verbose: e.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("running %q: %w", line, err)
	}
	return res, nil
}

// step runs argv in dir and records it on rr.
func (e *Engine) step(ctx context.Context, rr *report.RunResult, task config.Task, dir string, argv ...string) report.Step {
	s := e.run(ctx, task, dir, argv...)
	e.record(rr, s)
	return s
}

// run executes argv in dir and returns the step without recording it.
func (e *Engine) run(ctx context.Context, task config.Task, dir string, argv ...string) report.Step {
	res, err := e.command(ctx, dir, argv...)
	if err != nil {
		return report.Step{
			Task:    task.Name,
			Type:    string(task.Type),
			Status:  report.StatusFail,
			Command: strings.Join(argv, " "),
			Dir:     dir,
			Code:    runner.CodeFailure,
			Error:   err.Error(),
		}
	}
	return report.StepFromResult(task.Name, string(task.Type), res)
}

// record appends s to rr and logs it.
func (e *Engine) record(rr *report.RunResult, s report.Step) {
	rr.Steps = append(rr.Steps, s)
	e.logStep(s)
}

func (e *Engine) logStep(s report.Step) {
	fields := logrus.Fields{"task": s.Task, "status": s.Status}
	if s.Command != "" {
		fields["command"] = s.Command
		fields["code"] = s.Code
	}
	switch s.Status {
	case report.StatusFail:
		e.log().WithFields(fields).Warn(firstNonEmpty(s.Error, s.Detail, FirstLine(s.Stderr), "step failed"))
	case report.StatusSkipped:
		e.log().WithFields(fields).Info(firstNonEmpty(s.Detail, "step skipped"))
	default:
		e.log().WithFields(fields).Debug("step passed")
	}
}

// Tool availability.

// toolInfo holds install metadata for a known tool.
type toolInfo struct {
	Install string
}

// knownTools maps tool binary names to their install hints.
var knownTools = map[string]toolInfo{
	"git":     {Install: "install git from your distribution or https://git-scm.com/downloads"},
	"gclient": {Install: "add depot_tools to PATH: https://chromium.googlesource.com/chromium/tools/depot_tools.git"},
}

// ErrToolUnavailable is returned when a required tool is not installed.
// It includes install instructions when the tool is known.
type ErrToolUnavailable struct {
	Name string
	Info *toolInfo
}

func NewErrToolUnavailable(name string) ErrToolUnavailable {
	e := ErrToolUnavailable{Name: name}
	if info, ok := knownTools[name]; ok {
		e.Info = &info
	}
	return e
}

func (e ErrToolUnavailable) Error() string {
	msg := fmt.Sprintf("%s is required but not installed.", e.Name)
	if e.Info != nil && e.Info.Install != "" {
		msg += "\nInstall: " + e.Info.Install
	}
	return msg
}

// lookPath is swapped out by tests.
var lookPath = exec.LookPath

// requireTool returns ErrToolUnavailable when name is not on PATH.
func requireTool(name string) error {
	if _, err := lookPath(name); err != nil {
		return NewErrToolUnavailable(name)
	}
	return nil
}

// FirstLine returns the first non-empty line of s, trimmed.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
