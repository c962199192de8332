package workflow

import (
	"context"

	"github.com/deixis/ohosbuild/internal/config"
	"github.com/deixis/ohosbuild/internal/report"
	"golang.org/x/sync/errgroup"
)

// stashMessage is the message attached to automatic stashes.
const stashMessage = "Auto stash save"

// maxStashers bounds the number of repositories stashed at once.
const maxStashers = 4

// Stash saves uncommitted work in every repository a patch task targets,
// including untracked files. Each repository is stashed once; distinct
// repositories are stashed concurrently. Steps are reported in task order.
func (e *Engine) Stash(ctx context.Context, tasks []config.Task) (*report.RunResult, error) {
	targets := patchTargets(tasks)
	if len(targets) > 0 {
		if err := requireTool("git"); err != nil {
			return nil, err
		}
	}
	rr := e.newRun(report.Stash)
	e.stashTargets(ctx, rr, targets)
	return rr, nil
}

// stashTargets runs add -A and stash save in each target and appends the
// steps to rr.
func (e *Engine) stashTargets(ctx context.Context, rr *report.RunResult, targets []string) {
	steps := make([][]report.Step, len(targets))

	var g errgroup.Group
	g.SetLimit(maxStashers)
	for i, dir := range targets {
		g.Go(func() error {
			task := config.Task{Name: dir, Type: config.TaskPatch, Target: dir}
			steps[i] = append(steps[i],
				e.run(ctx, task, e.Root, "git", "-C", dir, "add", "-A"),
				e.run(ctx, task, e.Root, "git", "-C", dir, "stash", "save", stashMessage),
			)
			return nil
		})
	}
	_ = g.Wait()

	for _, ss := range steps {
		for _, s := range ss {
			e.record(rr, s)
		}
	}
}

// patchTargets returns the distinct targets of patch tasks in first-seen
// order.
func patchTargets(tasks []config.Task) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range patchTasks(tasks) {
		if t.Target == "" || seen[t.Target] {
			continue
		}
		seen[t.Target] = true
		out = append(out, t.Target)
	}
	return out
}
