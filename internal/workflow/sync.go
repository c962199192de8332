package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/deixis/ohosbuild/internal/config"
	"github.com/deixis/ohosbuild/internal/report"
)

// Sync moves the engine checkout to branch. Patched repositories are
// stashed first, then the sync repository stashes its own changes, checks
// out and rebases onto branch, restores the stash and finally the
// dependency sync command runs from the engine root. Sync stops at the
// first failing step.
func (e *Engine) Sync(ctx context.Context, tasks []config.Task, branch string) (*report.RunResult, error) {
	if branch == "" {
		return nil, errors.New("sync requires a branch")
	}
	if err := requireTool("git"); err != nil {
		return nil, err
	}
	gclient := e.gclientCommand()
	if fields := strings.Fields(gclient); len(fields) > 0 {
		if err := requireTool(fields[0]); err != nil {
			return nil, err
		}
	}

	rr := e.newRun(report.Sync)
	e.stashTargets(ctx, rr, patchTargets(tasks))
	if !rr.Passed() {
		return rr, nil
	}

	dir := e.syncDir()
	task := config.Task{Name: dir, Target: dir}
	var stashed bool
	for _, argv := range [][]string{
		{"git", "-C", dir, "add", "-A"},
		{"git", "-C", dir, "stash", "save", stashMessage + "."},
		{"git", "-C", dir, "checkout", branch},
		{"git", "-C", dir, "pull", "--rebase"},
		{"git", "-C", dir, "stash", "pop"},
	} {
		if err := ctx.Err(); err != nil {
			return rr, err
		}
		if argv[3] == "stash" && argv[4] == "pop" && !stashed {
			e.record(rr, report.Step{Task: dir, Status: report.StatusSkipped, Command: strings.Join(argv, " "), Detail: "nothing was stashed"})
			continue
		}
		s := e.step(ctx, rr, task, e.Root, argv...)
		if s.Status != report.StatusPass {
			return rr, nil
		}
		if argv[3] == "stash" && argv[4] == "save" {
			stashed = !strings.Contains(s.Stdout, noLocalChanges)
		}
	}

	res, err := e.shell(ctx, e.Root, gclient)
	if err != nil {
		e.record(rr, report.Step{Task: "gclient", Status: report.StatusFail, Command: gclient, Error: err.Error()})
		return rr, nil
	}
	e.record(rr, report.StepFromResult("gclient", "", res))
	return rr, nil
}

// noLocalChanges is what git stash save prints when there is nothing to
// stash.
const noLocalChanges = "No local changes to save"

func (e *Engine) syncDir() string {
	if e.Config == nil {
		return config.DefaultSyncDir
	}
	return e.Config.SyncDir()
}

func (e *Engine) gclientCommand() string {
	if e.Config == nil {
		return config.DefaultGclient
	}
	return e.Config.GclientCommand()
}
