package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/deixis/ohosbuild/internal/config"
	"github.com/deixis/ohosbuild/internal/report"
	"github.com/deixis/ohosbuild/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type execParams struct {
	Command string `json:"command" jsonschema:"shell command line to run, e.g. ninja -C src/out/ohos_debug_unopt_arm64"`
	Dir     string `json:"dir,omitempty" jsonschema:"working directory relative to the engine root. Defaults to the engine root."`
	Timeout string `json:"timeout,omitempty" jsonschema:"wall-clock limit as a Go duration, e.g. 30s or 10m. Defaults to the configured timeout."`
}

func (h *handler) execHandler(ctx context.Context, req *mcp.CallToolRequest, params execParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Command) == "" {
		return errorResult("command is required")
	}
	var timeout time.Duration
	if params.Timeout != "" {
		d, err := time.ParseDuration(params.Timeout)
		if err != nil || d <= 0 {
			return errorResult(fmt.Sprintf("invalid timeout %q: want a positive duration such as 30s", params.Timeout))
		}
		timeout = d
	}

	rr, err := h.current().Exec(ctx, params.Command, params.Dir, timeout)
	if err != nil {
		return errorResult(fmt.Sprintf("exec failed: %v", err))
	}

	// Save results for ob_inspect.
	_ = h.store.Save(rr)

	return textResult(formatExec(rr))
}

func formatExec(rr *report.RunResult) string {
	var b strings.Builder
	s := rr.Steps[0]

	writeStatus(&b, rr)
	fmt.Fprintf(&b, "Exit: %d (%s)\n", s.Code, s.Outcome)
	fmt.Fprintf(&b, "Duration: %s\n", s.Duration.Round(time.Millisecond))
	if s.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", s.Error)
	}
	writeOutput(&b, "Stdout", s.Stdout)
	writeOutput(&b, "Stderr", s.Stderr)
	return b.String()
}

type tasksParams struct {
	Tasks string `json:"tasks,omitempty" jsonschema:"task list path relative to the engine root. Defaults to the configured attachment task list."`
}

func (h *handler) setupHandler(ctx context.Context, req *mcp.CallToolRequest, params tasksParams) (*mcp.CallToolResult, any, error) {
	return h.runTasks(ctx, params, "setup", (*workflow.Engine).Setup)
}

func (h *handler) reverseHandler(ctx context.Context, req *mcp.CallToolRequest, params tasksParams) (*mcp.CallToolResult, any, error) {
	return h.runTasks(ctx, params, "reverse", (*workflow.Engine).Reverse)
}

func (h *handler) stashHandler(ctx context.Context, req *mcp.CallToolRequest, params tasksParams) (*mcp.CallToolResult, any, error) {
	return h.runTasks(ctx, params, "stash", (*workflow.Engine).Stash)
}

type taskFunc func(*workflow.Engine, context.Context, []config.Task) (*report.RunResult, error)

// runTasks loads the task list, runs fn over it and stores the result.
func (h *handler) runTasks(ctx context.Context, params tasksParams, name string, fn taskFunc) (*mcp.CallToolResult, any, error) {
	e := h.current()
	tasks, err := loadTasks(e, params.Tasks)
	if err != nil {
		return errorResult(err.Error())
	}

	rr, err := fn(e, ctx, tasks)
	if err != nil {
		return errorResult(fmt.Sprintf("%s failed: %v", name, err))
	}

	// Save results for ob_inspect.
	_ = h.store.Save(rr)

	return textResult(formatRun(rr))
}

// loadTasks reads the task list named by path, or the configured one.
func loadTasks(e *workflow.Engine, path string) ([]config.Task, error) {
	if path == "" {
		cfg := e.Config
		if cfg == nil {
			cfg = &config.Config{}
		}
		path = cfg.TasksFile()
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.Root, path)
	}
	return config.LoadTasks(path)
}

func formatRun(rr *report.RunResult) string {
	var b strings.Builder

	writeStatus(&b, rr)
	fmt.Fprintln(&b)

	if len(rr.Steps) == 0 {
		fmt.Fprintln(&b, "No tasks to run.")
		return b.String()
	}

	counts := rr.Counts()
	fmt.Fprintf(&b, "Steps: %d pass, %d fail, %d skipped\n",
		counts[report.StatusPass], counts[report.StatusFail], counts[report.StatusSkipped])
	for _, s := range rr.Steps {
		fmt.Fprintf(&b, "  [%s] %s\n", s.Status, describe(s))
	}
	fmt.Fprintln(&b)

	if failed := report.Failed(rr); len(failed) > 0 {
		fmt.Fprintf(&b, "Inspect with ob_inspect(run_id=%q, task=%q).\n", rr.ID, failed[0].Task)
	} else {
		fmt.Fprintf(&b, "Inspect with ob_inspect(run_id=%q).\n", rr.ID)
	}
	return b.String()
}

func writeStatus(b *strings.Builder, rr *report.RunResult) {
	if rr.Passed() {
		fmt.Fprintln(b, "Status: PASS")
	} else {
		fmt.Fprintln(b, "Status: FAIL")
	}
	fmt.Fprintf(b, "Run: %s\n", rr.ID)
}

// describe renders a step as one line.
func describe(s report.Step) string {
	var parts []string
	if s.Task != "" {
		parts = append(parts, s.Task)
	}
	if s.Command != "" {
		parts = append(parts, s.Command)
	}
	line := strings.Join(parts, ": ")
	if detail := firstNonEmpty(s.Detail, s.Error); detail != "" && s.Status != report.StatusPass {
		line += " (" + detail + ")"
	}
	return line
}

func writeOutput(b *strings.Builder, label, out string) {
	if out == "" {
		return
	}
	fmt.Fprintln(b)
	fmt.Fprintf(b, "%s:\n", label)
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		fmt.Fprintf(b, "    %s\n", line)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
