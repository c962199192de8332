package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/deixis/ohosbuild/internal/config"
	"github.com/deixis/ohosbuild/internal/report"
	"github.com/deixis/ohosbuild/internal/workflow"
)

func newExecCmd(g *globalFlags) *cobra.Command {
	var (
		dir     string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "exec [flags] -- <command...>",
		Short: "Run a command with a wall-clock timeout",
		Long: `Run a command through /bin/sh with a wall-clock timeout. The arguments are
joined with spaces into one command line.

The exit status mirrors the command. A command that times out or cannot be
started exits with status 1.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			rr, err := a.engine.Exec(ctx, strings.Join(args, " "), dir, timeout)
			if err != nil {
				return err
			}
			a.save(rr)

			s := rr.Steps[0]
			if g.json {
				if err := writeJSON(cmd.OutOrStdout(), rr); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), s.Stdout)
				fmt.Fprint(cmd.ErrOrStderr(), s.Stderr)
				if s.Error != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("ohosbuild:"), s.Error)
				}
			}
			if code := exitCode(s.Code); code != 0 {
				return exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "C", "", "working directory, relative to the engine root")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "wall-clock limit (default from .ohosbuild, 5m)")
	cmd.Flags().BoolVar(&g.json, "json", false, "print the stored run as JSON")
	return cmd
}

// exitCode maps a step code to a process exit status. The runner's
// negative sentinels become 1.
func exitCode(code int) int {
	if code < 0 {
		return 1
	}
	return code
}

type taskRun func(ctx context.Context, e *workflow.Engine, tasks []config.Task) (*report.RunResult, error)

func runSetup(ctx context.Context, e *workflow.Engine, tasks []config.Task) (*report.RunResult, error) {
	return e.Setup(ctx, tasks)
}

func runReverse(ctx context.Context, e *workflow.Engine, tasks []config.Task) (*report.RunResult, error) {
	return e.Reverse(ctx, tasks)
}

func runStash(ctx context.Context, e *workflow.Engine, tasks []config.Task) (*report.RunResult, error) {
	return e.Stash(ctx, tasks)
}

// newTaskCmd builds a command that runs fn over the task list.
func newTaskCmd(g *globalFlags, name, short string, fn taskRun) *cobra.Command {
	var tasksFile string
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}
			tasks, err := a.tasks(tasksFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			rr, err := fn(ctx, a.engine, tasks)
			if rr != nil {
				a.save(rr)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return finishRun(cmd.OutOrStdout(), g, rr)
		},
	}
	cmd.Flags().StringVar(&tasksFile, "tasks", "", "task list, relative to the engine root (default from .ohosbuild)")
	cmd.Flags().BoolVar(&g.json, "json", false, "print the stored run as JSON")
	return cmd
}

func newSyncCmd(g *globalFlags) *cobra.Command {
	var (
		branch    string
		tasksFile string
	)
	cmd := &cobra.Command{
		Use:   "sync --branch <branch>",
		Short: "Stash patched repositories, switch branch and run gclient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}
			tasks, err := a.tasks(tasksFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			rr, err := a.engine.Sync(ctx, tasks, branch)
			if rr != nil {
				a.save(rr)
			}
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			return finishRun(cmd.OutOrStdout(), g, rr)
		},
	}
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "branch to check out in the sync repository")
	cmd.Flags().StringVar(&tasksFile, "tasks", "", "task list, relative to the engine root (default from .ohosbuild)")
	cmd.Flags().BoolVar(&g.json, "json", false, "print the stored run as JSON")
	_ = cmd.MarkFlagRequired("branch")
	return cmd
}

func newInspectCmd(g *globalFlags) *cobra.Command {
	var task string
	cmd := &cobra.Command{
		Use:   "inspect [run-id]",
		Short: "Show a stored run, or list stored runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}
			disk := report.NewDiskStore(filepath.Join(a.root, config.RunsDir))
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				ids, err := disk.List()
				if err != nil {
					return err
				}
				for _, id := range ids {
					rr, err := disk.Load(id)
					if err != nil {
						continue
					}
					fmt.Fprintf(out, "%s  %-7s  %s  %s\n", rr.ID, rr.Kind, rr.Started.Format(time.DateTime), statusWord(rr))
				}
				return nil
			}

			rr, err := disk.Load(args[0])
			if err != nil {
				return err
			}
			if task != "" {
				rr.Steps = report.ByTask(rr, task)
			}
			if g.json {
				return writeJSON(out, rr)
			}
			writeRun(out, rr, true)
			return nil
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "only show steps of this task")
	cmd.Flags().BoolVar(&g.json, "json", false, "print the run as JSON")
	return cmd
}

// finishRun prints rr and turns a failed run into exit status 1.
func finishRun(w io.Writer, g *globalFlags, rr *report.RunResult) error {
	if g.json {
		if err := writeJSON(w, rr); err != nil {
			return err
		}
	} else {
		writeRun(w, rr, g.verbose)
	}
	if !rr.Passed() {
		return exitError{code: 1}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusWord(rr *report.RunResult) string {
	if rr.Passed() {
		return color.GreenString("ok")
	}
	return color.RedString("FAIL")
}

// writeRun prints a run summary. With verbose set the output of every
// step that produced any is included.
func writeRun(w io.Writer, rr *report.RunResult, verbose bool) {
	fmt.Fprintf(w, "%s %s (%s)\n\n", statusWord(rr), rr.ID, rr.Kind)
	if len(rr.Steps) == 0 {
		fmt.Fprintln(w, "  no tasks")
		return
	}

	for _, s := range rr.Steps {
		fmt.Fprintf(w, "  %-8s %s\n", stepStatus(s.Status), stepLine(s))
		if s.Status != report.StatusPass && s.Detail != "" {
			fmt.Fprintf(w, "           %s\n", s.Detail)
		}
		if verbose || s.Status == report.StatusFail {
			writeIndented(w, workflow.FirstLine(s.Error))
			if verbose {
				writeIndented(w, s.Stdout)
			}
			writeIndented(w, s.Stderr)
		}
	}

	counts := rr.Counts()
	fmt.Fprintf(w, "\n%d pass, %d fail, %d skipped\n",
		counts[report.StatusPass], counts[report.StatusFail], counts[report.StatusSkipped])
}

func stepStatus(status string) string {
	switch status {
	case report.StatusPass:
		return color.GreenString("%-8s", "ok")
	case report.StatusFail:
		return color.RedString("%-8s", "FAIL")
	default:
		return color.YellowString("%-8s", status)
	}
}

func stepLine(s report.Step) string {
	switch {
	case s.Command != "" && s.Task != "":
		return s.Task + ": " + s.Command
	case s.Command != "":
		return s.Command
	}
	return fmt.Sprintf("%s %s -> %s", s.Type, s.Task, s.Dir)
}

func writeIndented(w io.Writer, text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(w, "           %s\n", line)
	}
}
