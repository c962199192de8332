// Package mcp provides the ohosbuild MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"sync"
	"time"

	"github.com/deixis/ohosbuild"
	"github.com/deixis/ohosbuild/internal/config"
	"github.com/deixis/ohosbuild/internal/report"
	"github.com/deixis/ohosbuild/internal/runner"
	"github.com/deixis/ohosbuild/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu     sync.RWMutex
	engine *workflow.Engine
	runner *runner.Runner
	store  report.Store
	log    *logrus.Entry
}

// NewServer creates an MCP server with all ohosbuild tools registered.
// Commands run through r, bounded to root, and every run is saved to
// store for later inspection.
func NewServer(cfg *config.Config, r *runner.Runner, store report.Store, root string, log *logrus.Entry) *mcp.Server {
	h := &handler{store: store, log: log}
	h.reset(cfg, r, root)

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateRootFromClient(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "ohosbuild", Version: ohosbuild.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "ob_exec",
		Description: `Run one shell command in the engine checkout with a wall-clock timeout.

The command runs through /bin/sh in its own process group. On timeout the whole group is
killed and the exit code is -2; a command that cannot be started reports -1.`,
	}, h.execHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "ob_setup",
		Description: `Apply the attachment task list: copy directories and files from the attachment repos
and apply patches whose git apply --check is clean. Patches that do not apply are skipped.
Results are stored for drill-down via ob_inspect.`,
	}, h.setupHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "ob_reverse",
		Description: "Revert every patch of the task list with git apply -R, last patch first.",
	}, h.reverseHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "ob_stash",
		Description: "Stash uncommitted changes, including untracked files, in every repository a patch targets.",
	}, h.stashHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "ob_inspect",
		Description: `Drill into a stored run from ob_exec, ob_setup, ob_reverse or ob_stash.

Use the run_id from the tool output. Pass task to restrict the output to one task.`,
	}, h.inspectHandler)

	return s
}

// reset rebuilds the engine for a new configuration and engine root.
func (h *handler) reset(cfg *config.Config, r *runner.Runner, root string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runner = r
	h.engine = &workflow.Engine{
		Config: cfg,
		Runner: r,
		Root:   root,
		Log:    h.log,
	}
}

// current returns the engine for a tool call.
func (h *handler) current() *workflow.Engine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine
}

// updateRootFromClient queries the client for MCP roots and, when the
// first root is a local directory, rebinds the engine to the checkout
// that contains it. This is called during session initialization, before
// any tool calls.
func (h *handler) updateRootFromClient(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}

	loaded, err := config.Load(u.Path)
	if err != nil {
		return
	}

	h.mu.RLock()
	r := *h.runner
	h.mu.RUnlock()
	r.Workspace = loaded.Root
	r.MaxOutput = loaded.Config.MaxOutputBytes()

	h.reset(loaded.Config, &r, loaded.Root)
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
