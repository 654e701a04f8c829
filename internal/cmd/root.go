package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// Sentinel errors mapped to process exit codes in main.
var (
	// ErrTargetsFailed means at least one fuzz test failed and the run was
	// not in continue-on-failure mode.
	ErrTargetsFailed = errors.New("one or more fuzz tests failed")

	// ErrInterrupted means the run was cut short by SIGINT or SIGTERM.
	ErrInterrupted = errors.New("fuzz run interrupted")
)

// NewRootCommand creates and returns the root cobra command for fuzzrun
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fuzzrun",
		Short: "Parallel orchestrator for Go fuzz tests",
		Long: `Fuzzrun discovers every Go fuzz target in a module and executes them
in parallel as isolated "go test" subprocesses.

It scans *_test.go files for fuzz functions, partitions host cores across a
bounded worker pool, runs each target for a fixed fuzzing budget, and
aggregates pass/fail results. Failure details can be duplicated to an error
file, and completed runs are recorded in a local history database.`,
		Version: Version,
		// Silence cobra's own error/usage echo; main prints errors once
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewReportCommand())

	return cmd
}
