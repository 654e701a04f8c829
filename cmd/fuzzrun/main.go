package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/harrison/fuzzrun/internal/cmd"
)

// Exit codes, stable for CI scripting.
const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := cmd.NewRootCommand()

	err := rootCmd.Execute()
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, cmd.ErrInterrupted):
		// The run summary already said so; 130 mirrors shell SIGINT.
		return exitInterrupted
	case errors.Is(err, cmd.ErrTargetsFailed):
		// Failure details were reported as they happened.
		return exitFailure
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
}
