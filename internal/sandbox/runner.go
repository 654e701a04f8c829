// Package sandbox executes a single fuzz target as an isolated external
// process with a wall-clock timeout and a CPU-parallelism budget.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/harrison/fuzzrun/internal/models"
)

// DefaultOverheadMargin is added to the fuzz duration when computing the
// subprocess wall-clock timeout, covering build and test harness startup.
const DefaultOverheadMargin = 60 * time.Second

// Runner is the narrow capability interface between the scheduler and the
// execution sandbox. Implementations produce exactly one outcome per call:
// subprocess completion, timeout and launch failure all map to an outcome,
// never to a missing or duplicated result.
type Runner interface {
	Run(ctx context.Context, target models.FuzzTarget) models.FuzzOutcome
}

// GoTestRunner runs fuzz targets through the external go test command:
//
//	go test <pkg> -run=^Fn$ -fuzz=^Fn$ -fuzztime=<d>
//
// The subprocess inherits the parent environment with GOMAXPROCS overridden
// to the configured core budget so concurrent sandboxes do not oversubscribe
// the host.
type GoTestRunner struct {
	GoPath         string        // go binary to invoke, default "go"
	WorkDir        string        // module root the targets were discovered in
	FuzzTime       time.Duration // fuzzing budget per target
	CoreBudget     int           // GOMAXPROCS for the subprocess
	OverheadMargin time.Duration // extra wall-clock allowance beyond FuzzTime
}

// NewGoTestRunner creates a GoTestRunner with the default go binary and
// overhead margin.
func NewGoTestRunner(workDir string, fuzzTime time.Duration, coreBudget int) *GoTestRunner {
	return &GoTestRunner{
		GoPath:         "go",
		WorkDir:        workDir,
		FuzzTime:       fuzzTime,
		CoreBudget:     coreBudget,
		OverheadMargin: DefaultOverheadMargin,
	}
}

// BuildArgs constructs the go test argument list for a target. -run and
// -fuzz are anchored so only the named function executes. The fuzz budget
// is passed through as a full duration string: rounding it to seconds
// would turn sub-second budgets into 0, which go test reads as unlimited.
func (r *GoTestRunner) BuildArgs(target models.FuzzTarget) []string {
	return []string{
		"test", target.PackagePath(),
		fmt.Sprintf("-run=^%s$", target.Function),
		fmt.Sprintf("-fuzz=^%s$", target.Function),
		"-fuzztime=" + r.FuzzTime.String(),
	}
}

// Timeout returns the wall-clock budget for one subprocess, strictly
// greater than the fuzz duration.
func (r *GoTestRunner) Timeout() time.Duration {
	margin := r.OverheadMargin
	if margin <= 0 {
		margin = DefaultOverheadMargin
	}
	return r.FuzzTime + margin
}

// Run executes the target and returns its outcome. The outcome taxonomy:
// exit 0 is a pass; non-zero exit captures stderr; timeout expiry produces
// a synthetic error with no partial output; a launch failure captures the
// error text.
func (r *GoTestRunner) Run(ctx context.Context, target models.FuzzTarget) models.FuzzOutcome {
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, r.Timeout())
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.GoPath, r.BuildArgs(target)...)
	cmd.Dir = r.WorkDir

	budget := r.CoreBudget
	if budget < 1 {
		budget = 1
	}
	cmd.Env = append(os.Environ(), fmt.Sprintf("GOMAXPROCS=%d", budget))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		return models.FuzzOutcome{
			Target:   target,
			Success:  true,
			Duration: elapsed,
			Output:   stdout.String(),
		}
	}

	// Timeout dominates other failure causes: the kill triggered by the
	// deadline surfaces as an ExitError, so check the context first.
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return models.FuzzOutcome{
			Target:   target,
			Duration: elapsed,
			Errors:   fmt.Sprintf("fuzz test %s timed out after %.1fs", target.Function, elapsed.Seconds()),
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		detail := stderr.String()
		if detail == "" {
			detail = err.Error()
		}
		return models.FuzzOutcome{
			Target:   target,
			Duration: elapsed,
			Output:   stdout.String(),
			Errors:   detail,
		}
	}

	// Launch failure: binary missing, permission denied, cancelled parent.
	return models.FuzzOutcome{
		Target:   target,
		Duration: elapsed,
		Errors:   fmt.Sprintf("failed to launch fuzz test %s: %v", target.Function, err),
	}
}
