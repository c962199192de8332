package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/deixis/ohosbuild"
	"github.com/deixis/ohosbuild/internal/report"
)

func init() {
	color.NoColor = true
}

// run executes the root command with args and returns stdout, stderr and
// the error.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != ohosbuild.Version {
		t.Errorf("version = %q, want %q", out, ohosbuild.Version)
	}
}

func TestExec_MirrorsExitCode(t *testing.T) {
	root := t.TempDir()
	out, _, err := run(t, "--root", root, "exec", "--", "echo", "hello;", "exit", "3")
	if out != "hello\n" {
		t.Errorf("stdout = %q, want %q", out, "hello\n")
	}
	var exit exitError
	if !errors.As(err, &exit) || exit.code != 3 {
		t.Errorf("err = %v, want exit status 3", err)
	}
}

func TestExec_TimeoutExitsOne(t *testing.T) {
	root := t.TempDir()
	start := time.Now()
	_, stderr, err := run(t, "--root", root, "exec", "--timeout", "200ms", "--", "sleep", "5")
	if time.Since(start) > 3*time.Second {
		t.Errorf("exec took %v, want it bounded by the timeout", time.Since(start))
	}
	var exit exitError
	if !errors.As(err, &exit) || exit.code != 1 {
		t.Errorf("err = %v, want exit status 1", err)
	}
	if !strings.Contains(stderr, "timed out") {
		t.Errorf("stderr = %q, want timeout message", stderr)
	}
}

func TestExec_StoresRun(t *testing.T) {
	root := t.TempDir()
	if _, _, err := run(t, "--root", root, "exec", "--", "true"); err != nil {
		t.Fatal(err)
	}
	ids, err := report.NewDiskStore(filepath.Join(root, ".ohosbuild-runs")).List()
	if err != nil || len(ids) != 1 {
		t.Fatalf("stored runs = %v, %v; want one", ids, err)
	}

	out, _, err := run(t, "--root", root, "inspect", ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "(exec)") || !strings.Contains(out, "true") {
		t.Errorf("inspect output:\n%s", out)
	}
}

func TestExec_RequiresCommand(t *testing.T) {
	if _, _, err := run(t, "--root", t.TempDir(), "exec"); err == nil {
		t.Fatal("expected error without a command")
	}
}

func TestSync_RequiresBranch(t *testing.T) {
	if _, _, err := run(t, "--root", t.TempDir(), "sync"); err == nil {
		t.Fatal("expected error without --branch")
	}
}

func TestSetup_FromTaskList(t *testing.T) {
	root := t.TempDir()
	write := func(name, content string) {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("src/flutter/attachment/repos/DEPS", "vars = {}\n")
	write("src/flutter/attachment/scripts/config.json", `[{"name": "DEPS", "type": "file", "target": "src/DEPS"},
	 {"name": "missing", "type": "file", "target": "src/missing"}]`)

	out, _, err := run(t, "--root", filepath.Join(root, "src", "flutter"), "setup")
	var exit exitError
	if !errors.As(err, &exit) || exit.code != 1 {
		t.Errorf("err = %v, want exit status 1 for a failed task", err)
	}
	if !strings.Contains(out, "1 pass, 1 fail, 0 skipped") {
		t.Errorf("output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(root, "src", "DEPS")); err != nil {
		t.Errorf("src/DEPS not copied: %v", err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 0}, {2, 2}, {137, 137}, {-1, 1}, {-2, 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.in); got != tt.want {
			t.Errorf("exitCode(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWriteRun(t *testing.T) {
	rr := &report.RunResult{ID: "run-1", Kind: report.Setup, Steps: []report.Step{
		{Task: "DEPS", Type: "file", Status: report.StatusPass, Dir: "src/DEPS"},
		{Task: "0001.patch", Type: "patch", Status: report.StatusSkipped, Command: "git apply --check 0001.patch", Detail: "patch does not apply: error: already applied"},
		{Task: "0002.patch", Type: "patch", Status: report.StatusFail, Command: "git apply 0002.patch", Stderr: "error: corrupt patch\n"},
	}}
	var buf bytes.Buffer
	writeRun(&buf, rr, false)
	out := buf.String()

	for _, want := range []string{
		"FAIL run-1 (setup)",
		"file DEPS -> src/DEPS",
		"patch does not apply",
		"error: corrupt patch",
		"1 pass, 1 fail, 1 skipped",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
