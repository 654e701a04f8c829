// Package scheduler fans discovered fuzz targets out to sandbox workers
// under a bounded concurrency budget and applies the stop-on-failure
// policy as outcomes arrive.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/harrison/fuzzrun/internal/logger"
	"github.com/harrison/fuzzrun/internal/models"
	"github.com/harrison/fuzzrun/internal/reporter"
	"github.com/harrison/fuzzrun/internal/sandbox"
)

// Scheduler runs targets through a sandbox Runner with at most jobs
// concurrent invocations. The worker budget is the sole admission-control
// mechanism: all targets are known upfront, so the pending list needs no
// queue beyond the dispatch loop itself.
type Scheduler struct {
	runner            sandbox.Runner
	jobs              int
	continueOnFailure bool
	log               logger.Logger

	// aborting is set on the first failing outcome under stop-on-failure.
	// It is checked before each dispatch; in-flight work is never killed,
	// it drains naturally and its outcomes are still recorded.
	aborting atomic.Bool
}

// New creates a Scheduler. A jobs value below 1 is treated as 1.
func New(runner sandbox.Runner, jobs int, continueOnFailure bool, log logger.Logger) *Scheduler {
	if jobs < 1 {
		jobs = 1
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Scheduler{
		runner:            runner,
		jobs:              jobs,
		continueOnFailure: continueOnFailure,
		log:               log,
	}
}

// Aborting reports whether the stop-on-failure transition has happened.
func (s *Scheduler) Aborting() bool {
	return s.aborting.Load()
}

// Execute dispatches all targets FIFO to the worker pool and streams each
// outcome into the reporter in completion order. It returns when every
// dispatched target has produced its outcome: normal completion, abort
// drain, and context cancellation all end here.
//
// With zero targets no workers are spawned at all.
func (s *Scheduler) Execute(ctx context.Context, targets []models.FuzzTarget, rep *reporter.Reporter) {
	if len(targets) == 0 {
		return
	}

	jobs := s.jobs
	if jobs > len(targets) {
		jobs = len(targets)
	}

	semaphore := make(chan struct{}, jobs)
	// Buffered to capacity so workers never block handing off a result,
	// which keeps the exactly-once guarantee independent of consumer pace.
	results := make(chan models.FuzzOutcome, len(targets))

	go func() {
		var wg sync.WaitGroup

	dispatch:
		for _, target := range targets {
			if s.aborting.Load() {
				break
			}

			select {
			case <-ctx.Done():
				break dispatch
			case semaphore <- struct{}{}:
			}

			// Re-check after the (possibly long) semaphore wait: a failure
			// or cancellation observed meanwhile must not admit new work.
			if s.aborting.Load() || ctx.Err() != nil {
				<-semaphore
				break
			}

			wg.Add(1)
			go func(target models.FuzzTarget) {
				defer wg.Done()
				defer func() { <-semaphore }()

				s.log.Debugf("Starting fuzz test: %s", target.ID())
				outcome := s.runner.Run(ctx, target)

				// The abort transition happens here, before this worker's
				// slot is released, so a dispatcher freed by that slot can
				// never pass its re-check first.
				if !outcome.Success && !s.continueOnFailure && s.aborting.CompareAndSwap(false, true) {
					s.log.Errorf("Stopping due to failure (pass -c to continue on failures)")
				}

				results <- outcome
			}(target)
		}

		wg.Wait()
		close(results)
	}()

	for outcome := range results {
		rep.Record(outcome)
	}
}
