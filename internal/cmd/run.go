package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/fuzzrun/internal/config"
	"github.com/harrison/fuzzrun/internal/discovery"
	"github.com/harrison/fuzzrun/internal/history"
	"github.com/harrison/fuzzrun/internal/logger"
	"github.com/harrison/fuzzrun/internal/models"
	"github.com/harrison/fuzzrun/internal/reporter"
	"github.com/harrison/fuzzrun/internal/sandbox"
	"github.com/harrison/fuzzrun/internal/scheduler"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "Discover and execute all fuzz targets",
		Long: `Discover every fuzz function in the module rooted at dir (default ".")
and execute each one as an isolated "go test -fuzz" subprocess.

Targets run in parallel under a bounded worker pool; host cores are split
evenly across concurrent targets via GOMAXPROCS. By default the run stops
dispatching new targets after the first failure; in-flight targets are
allowed to finish either way.

Configuration is loaded from <config-dir>/config.yaml if present, after
FUZZ_* environment variables and before CLI flags.

Examples:
  # Run all fuzz targets in the current module for 10s each
  fuzzrun run

  # Longer budget, explicit parallelism
  fuzzrun run -t 2m -j 4

  # Keep going after failures and collect details in a file
  fuzzrun run -c -e fuzz-failures.log

  # Fuzz a different module
  fuzzrun run ./services/api --config-dir .fuzzrun`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().StringP("time", "t", "", "Fuzzing duration per target (e.g. 30s, 2m)")
	cmd.Flags().IntP("jobs", "j", 0, "Number of targets to run concurrently (0 = auto-detect)")
	cmd.Flags().StringP("error-file", "e", "", "File to duplicate failure details into")
	cmd.Flags().BoolP("continue-on-failure", "c", false, "Keep running remaining targets after a failure")
	cmd.Flags().BoolP("verbose", "v", false, "Show per-target debug output")
	cmd.Flags().String("config-dir", "", "Directory holding config.yaml and run artifacts (default \".fuzzrun\")")
	cmd.Flags().Bool("no-history", false, "Skip recording this run in the history database")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	cfg, err := loadRunConfig(cmd, root)
	if err != nil {
		return err
	}

	log := logger.NewConsoleLogger(os.Stdout, cfg.LogLevel)

	scanner := discovery.NewScanner(root)
	targets, warnings, err := scanner.Discover(cmd.Context())
	for _, warning := range warnings {
		log.Warnf("%s", warning)
	}
	if err != nil {
		return fmt.Errorf("discover fuzz targets: %w", err)
	}

	if len(targets) == 0 {
		log.Warnf("No fuzz targets found under %s", root)
		return nil
	}

	cores := config.DetectedCores()
	jobs := cfg.EffectiveJobs(cores)
	budget := config.CoreBudget(cores, jobs)
	log.Infof("Found %d fuzz target(s); running %d at a time, %d core(s) each, %s per target",
		len(targets), jobs, budget, logger.FormatDuration(cfg.FuzzTime))

	runID := history.NewRunID()

	var sink *reporter.Sink
	if cfg.ErrorFile != "" {
		sink, err = reporter.OpenSink(cfg.ErrorFile, runID)
		if err != nil {
			return fmt.Errorf("open error file: %w", err)
		}
		defer sink.Close()
		log.Infof("Recording failure details in %s", sink.Path())
	}

	rep := reporter.New(log, sink, len(targets))
	runner := sandbox.NewGoTestRunner(root, cfg.FuzzTime, budget)
	sched := scheduler.New(runner, jobs, cfg.ContinueOnFailure, log)
	orch := scheduler.NewOrchestrator(sched, log)

	startedAt := time.Now()
	result := orch.Run(cmd.Context(), targets, rep)
	rep.Summarize(result, cfg.ContinueOnFailure)

	noHistory, _ := cmd.Flags().GetBool("no-history")
	if cfg.History.Enabled && !noHistory {
		recordHistory(log, cfg, root, &history.Run{
			ID:                runID,
			StartedAt:         startedAt,
			Duration:          result.Duration,
			TotalTargets:      result.TotalTargets,
			Completed:         result.Stats.Completed,
			Failed:            result.Stats.Failed,
			Interrupted:       result.Interrupted,
			ContinueOnFailure: cfg.ContinueOnFailure,
		}, rep.Outcomes())
	}

	switch result.Disposition(cfg.ContinueOnFailure) {
	case models.RunInterrupted:
		return ErrInterrupted
	case models.RunFailed:
		return ErrTargetsFailed
	}
	return nil
}

// loadRunConfig builds the merged run configuration: defaults, FUZZ_*
// environment, <config-dir>/config.yaml, then CLI flags.
func loadRunConfig(cmd *cobra.Command, root string) (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	// The config-dir flag must win before the file load since it selects
	// which file gets loaded.
	if cmd.Flags().Changed("config-dir") {
		cfg.ConfigDir, _ = cmd.Flags().GetString("config-dir")
	}
	if err := cfg.LoadFile(filepath.Join(resolvePath(root, cfg.ConfigDir), "config.yaml")); err != nil {
		return nil, err
	}

	var fuzzTimePtr *time.Duration
	if cmd.Flags().Changed("time") {
		raw, _ := cmd.Flags().GetString("time")
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --time value %q: %w", raw, err)
		}
		fuzzTimePtr = &d
	}

	var jobsPtr *int
	if cmd.Flags().Changed("jobs") {
		jobs, _ := cmd.Flags().GetInt("jobs")
		jobsPtr = &jobs
	}

	var errorFilePtr *string
	if cmd.Flags().Changed("error-file") {
		errorFile, _ := cmd.Flags().GetString("error-file")
		errorFilePtr = &errorFile
	}

	var continuePtr *bool
	if cmd.Flags().Changed("continue-on-failure") {
		cont, _ := cmd.Flags().GetBool("continue-on-failure")
		continuePtr = &cont
	}

	var verbosePtr *bool
	if cmd.Flags().Changed("verbose") {
		verbose, _ := cmd.Flags().GetBool("verbose")
		verbosePtr = &verbose
	}

	cfg.MergeWithFlags(fuzzTimePtr, jobsPtr, errorFilePtr, continuePtr, verbosePtr, nil)

	if cfg.Verbose && cfg.LogLevel == "info" {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// recordHistory persists the run best-effort; history problems never fail
// a completed run.
func recordHistory(log logger.Logger, cfg *config.Config, root string, run *history.Run, outcomes []models.FuzzOutcome) {
	store, err := history.NewStore(resolvePath(root, cfg.History.DBPath))
	if err != nil {
		log.Warnf("Skipping run history: %v", err)
		return
	}
	defer store.Close()

	// The run context may already be cancelled on interrupt; the history
	// write should still land.
	ctx := context.Background()
	if err := store.RecordRun(ctx, run, outcomes); err != nil {
		log.Warnf("Failed to record run history: %v", err)
		return
	}
	if err := store.Prune(ctx, cfg.History.KeepRuns); err != nil {
		log.Warnf("Failed to prune run history: %v", err)
	}
	log.Debugf("Recorded run %s in %s", run.ID, resolvePath(root, cfg.History.DBPath))
}

// resolvePath joins relative paths onto the scan root so run artifacts
// land next to the module being fuzzed.
func resolvePath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
