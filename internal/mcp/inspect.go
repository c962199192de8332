package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deixis/ohosbuild/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from an ob_exec, ob_setup, ob_reverse or ob_stash result"`
	Task  string `json:"task,omitempty" jsonschema:"task name to restrict the output to, e.g. 0001-skia.patch"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	result, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	steps := result.Steps
	if params.Task != "" {
		steps = report.ByTask(result, params.Task)
		if len(steps) == 0 {
			return textResult(fmt.Sprintf("No steps found for %s in run %s (%s).", params.Task, params.RunID, result.Kind))
		}
	}

	return textResult(formatInspectOutput(result, steps))
}

func formatInspectOutput(result *report.RunResult, steps []report.Step) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s)\n", result.ID, result.Kind)
	fmt.Fprintf(&b, "Started: %s\n", result.Started.Format(time.RFC3339))

	for i, s := range steps {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, s.Status, describe(s))
		if s.Dir != "" {
			fmt.Fprintf(&b, "   dir: %s\n", s.Dir)
		}
		if s.Command != "" {
			fmt.Fprintf(&b, "   exit: %d (%s) in %s\n", s.Code, s.Outcome, s.Duration.Round(time.Millisecond))
		}
		writeOutput(&b, "Stdout", s.Stdout)
		writeOutput(&b, "Stderr", s.Stderr)
	}

	return b.String()
}
