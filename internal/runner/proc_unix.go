//go:build unix

package runner

import (
	"os"
	"os/exec"
	"syscall"
)

const defaultShell = "/bin/sh"

// shellCommand builds the child process for command. The child leads its
// own process group so the whole pipeline can be signalled at once.
func shellCommand(shell, command string) *exec.Cmd {
	if shell == "" {
		shell = defaultShell
	}
	cmd := exec.Command(shell, "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// terminate kills the live child and all of its descendants. The tree is
// walked first, while parent links are intact, so that descendants which
// moved to another session are found too. The group kill then catches
// anything forked during the walk.
func terminate(pid int) {
	if pid <= 0 {
		return
	}
	killTree(pid)
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// sweep kills whatever is left in the group of an already reaped child,
// such as background jobs started by the command. Jobs that called setsid
// have been reparented to init by now and are out of reach.
func sweep(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// exitStatus maps a finished process to a shell-style exit code.
// A child killed by a signal reports 128+signal.
func exitStatus(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}
