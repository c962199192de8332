// Command ohosbuild runs bounded commands and the patch workflow of an
// OpenHarmony Flutter engine checkout.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/deixis/ohosbuild"
)

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	err := newRootCmd().Execute()
	var exit exitError
	switch {
	case errors.As(err, &exit):
		os.Exit(exit.code)
	case err != nil:
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("ohosbuild:"), err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command.
type globalFlags struct {
	root     string
	logLevel string
	verbose  bool
	json     bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "ohosbuild",
		Short: "Bounded commands and patch workflow for the OpenHarmony Flutter engine",
		Long: `ohosbuild runs shell commands with a wall-clock timeout and drives the
attachment workflow of an engine checkout: copying attachment files, applying
and reverting patches, stashing patched repositories and syncing branches.

The engine root is the nearest directory above --root that contains src/flutter.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.root, "root", ".", "directory to search upward from for the engine root")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides "+".ohosbuild")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log every command with its output")

	root.AddCommand(newExecCmd(g))
	root.AddCommand(newTaskCmd(g, "setup", "Copy attachment files and apply patches", runSetup))
	root.AddCommand(newTaskCmd(g, "reverse", "Revert patches, last patch first", runReverse))
	root.AddCommand(newTaskCmd(g, "stash", "Stash changes in every patched repository", runStash))
	root.AddCommand(newSyncCmd(g))
	root.AddCommand(newInspectCmd(g))
	root.AddCommand(newMCPCmd(g))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), ohosbuild.Version)
		},
	})
	return root
}
