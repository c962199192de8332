package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/deixis/ohosbuild/internal/config"
	"github.com/deixis/ohosbuild/internal/report"
	"github.com/deixis/ohosbuild/internal/runner"
)

// Setup runs tasks in list order: copies from the attachment repos
// directory and applies patches whose dry run is clean. A failing task is
// recorded and the remaining tasks still run.
func (e *Engine) Setup(ctx context.Context, tasks []config.Task) (*report.RunResult, error) {
	if hasPatch(tasks) {
		if err := requireTool("git"); err != nil {
			return nil, err
		}
	}

	rr := e.newRun(report.Setup)
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return rr, err
		}
		if err := t.Valid(); err != nil {
			e.record(rr, report.Step{Task: t.Name, Type: string(t.Type), Status: report.StatusFail, Detail: err.Error()})
			continue
		}
		if t.Type == config.TaskPatch {
			e.applyPatch(ctx, rr, t)
			continue
		}
		e.copyTask(rr, t)
	}
	return rr, nil
}

// copyTask performs a dir, files or file task on the engine filesystem.
func (e *Engine) copyTask(rr *report.RunResult, t config.Task) {
	src := filepath.Join(e.reposDir(), t.Name)
	start := time.Now()

	var err error
	switch t.Type {
	case config.TaskDir:
		err = copyDir(e.fs(), src, t.Target)
	case config.TaskFiles:
		err = copyFiles(e.fs(), src, t.Target)
	case config.TaskFile:
		err = copyFile(e.fs(), src, t.Target)
	}

	s := report.Step{Task: t.Name, Type: string(t.Type), Status: report.StatusPass, Dir: t.Target, Duration: time.Since(start)}
	switch {
	case errors.Is(err, errTargetExists):
		s.Status = report.StatusSkipped
		s.Detail = "target " + t.Target + " exists"
	case err != nil:
		s.Status = report.StatusFail
		s.Detail = err.Error()
	}
	e.record(rr, s)
}

// applyPatch checks the patch with a dry run and applies it only when the
// check exits cleanly and reports no error.
func (e *Engine) applyPatch(ctx context.Context, rr *report.RunResult, t config.Task) {
	dir := e.resolve(t.Target)
	check := e.run(ctx, t, dir, "git", "apply", "--check", t.FilePath)
	if check.Status == report.StatusPass && !mentionsError(check) {
		e.record(rr, check)
		e.step(ctx, rr, t, dir, "git", "apply", t.FilePath)
		return
	}

	// A patch that does not apply cleanly is skipped. A check that could
	// not run at all is a failure.
	if check.Outcome == string(runner.OutcomeExit) || check.Status == report.StatusPass {
		check.Status = report.StatusSkipped
	}
	check.Detail = "patch does not apply: " + firstNonEmpty(FirstLine(check.Stderr), FirstLine(check.Stdout), check.Error)
	e.record(rr, check)
}

func mentionsError(s report.Step) bool {
	return strings.Contains(s.Stdout, "error") || strings.Contains(s.Stderr, "error")
}

func hasPatch(tasks []config.Task) bool {
	return len(patchTasks(tasks)) > 0
}

// resolve maps a task target to a directory for the runner.
func (e *Engine) resolve(target string) string {
	if target == "" || filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(e.Root, target)
}

func (e *Engine) reposDir() string {
	if e.Config == nil {
		return filepath.Join(config.DefaultAttachment, "repos")
	}
	return e.Config.ReposDir()
}
