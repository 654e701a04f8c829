package scheduler

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/harrison/fuzzrun/internal/logger"
	"github.com/harrison/fuzzrun/internal/models"
	"github.com/harrison/fuzzrun/internal/reporter"
)

// Orchestrator wraps the scheduler with signal handling and final result
// aggregation. An external SIGINT/SIGTERM cancels the run context: not-yet-
// started targets are skipped, workers wind down, and the result is marked
// interrupted so the process can exit with a distinct status.
type Orchestrator struct {
	scheduler *Scheduler
	log       logger.Logger
}

// NewOrchestrator creates an Orchestrator around the given scheduler.
func NewOrchestrator(scheduler *Scheduler, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Orchestrator{
		scheduler: scheduler,
		log:       log,
	}
}

// Run executes all targets and returns the aggregate result. Target-level
// failures never surface as errors here; they are counted in the result.
func (o *Orchestrator) Run(ctx context.Context, targets []models.FuzzTarget, rep *reporter.Reporter) *models.RunResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var interrupted atomic.Bool
	go func() {
		select {
		case <-sigChan:
			interrupted.Store(true)
			o.log.Warnf("Received interrupt signal, shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	o.scheduler.Execute(ctx, targets, rep)
	duration := time.Since(start)

	return &models.RunResult{
		TotalTargets: len(targets),
		Stats:        rep.Stats(),
		Duration:     duration,
		Failures:     rep.Failures(),
		Interrupted:  interrupted.Load() || ctx.Err() != nil,
	}
}
