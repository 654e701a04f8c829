package models

import "time"

// FuzzOutcome records the result of executing a single fuzz target.
// Exactly one outcome is produced per target per run, by the sandbox,
// whether the subprocess exited, timed out, or failed to launch.
type FuzzOutcome struct {
	Target   FuzzTarget    // The target that was executed
	Success  bool          // True when the fuzz subprocess exited zero
	Duration time.Duration // Wall-clock time of the attempt
	Output   string        // Captured stdout (opaque diagnostic text)
	Errors   string        // Captured stderr, timeout note, or launch error
}

// RunStats holds the monotonic aggregate counters for a run.
// Counters only ever increase while the run is in flight and
// Failed <= Completed <= total discovered targets.
type RunStats struct {
	Completed int
	Failed    int
}

// Disposition classifies how a run ended. It drives the process exit code.
type Disposition int

const (
	// RunPassed means every executed target succeeded, or failures occurred
	// but continue-on-failure was requested.
	RunPassed Disposition = iota
	// RunFailed means at least one target failed and the run was not
	// configured to tolerate failures.
	RunFailed
	// RunInterrupted means the run was cancelled externally (signal).
	RunInterrupted
)

// String returns the human-readable disposition name.
func (d Disposition) String() string {
	switch d {
	case RunPassed:
		return "passed"
	case RunFailed:
		return "failed"
	case RunInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// RunResult is the aggregate of a completed run.
type RunResult struct {
	TotalTargets int           // Targets discovered before scheduling
	Stats        RunStats      // Final counters
	Duration     time.Duration // Total run time
	Failures     []FuzzOutcome // Outcomes of failed targets, completion order
	Interrupted  bool          // True when the run context was cancelled
}

// Disposition computes the final run disposition under the given
// failure policy.
func (r *RunResult) Disposition(continueOnFailure bool) Disposition {
	if r.Interrupted {
		return RunInterrupted
	}
	if r.Stats.Failed > 0 && !continueOnFailure {
		return RunFailed
	}
	return RunPassed
}
