//go:build !unix

package runner

import (
	"os"
	"os/exec"
)

const defaultShell = "cmd.exe"

func shellCommand(shell, command string) *exec.Cmd {
	if shell == "" {
		shell = defaultShell
	}
	return exec.Command(shell, "/C", command)
}

func terminate(pid int) {
	if pid > 0 {
		killTree(pid)
	}
}

// sweep is a no-op: without process groups there is no safe way to find
// leftovers of a reaped child.
func sweep(int) {}

func exitStatus(state *os.ProcessState) int {
	return state.ExitCode()
}
