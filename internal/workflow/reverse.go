package workflow

import (
	"context"
	"sort"

	"github.com/deixis/ohosbuild/internal/config"
	"github.com/deixis/ohosbuild/internal/report"
)

// Reverse rolls back every patch task with git apply -R. Patches are
// reverted in descending name order so that numbered series unwind from
// the last patch to the first.
func (e *Engine) Reverse(ctx context.Context, tasks []config.Task) (*report.RunResult, error) {
	patches := patchTasks(tasks)
	if len(patches) > 0 {
		if err := requireTool("git"); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(patches, func(i, j int) bool { return patches[i].Name > patches[j].Name })

	rr := e.newRun(report.Reverse)
	for _, t := range patches {
		if err := ctx.Err(); err != nil {
			return rr, err
		}
		if err := t.Valid(); err != nil {
			e.record(rr, report.Step{Task: t.Name, Type: string(t.Type), Status: report.StatusFail, Detail: err.Error()})
			continue
		}
		e.step(ctx, rr, t, e.resolve(t.Target), "git", "apply", "-R", t.FilePath)
	}
	return rr, nil
}

func patchTasks(tasks []config.Task) []config.Task {
	var out []config.Task
	for _, t := range tasks {
		if t.Type == config.TaskPatch {
			out = append(out, t)
		}
	}
	return out
}
