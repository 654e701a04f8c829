package reporter

import (
	"sync"

	"github.com/harrison/fuzzrun/internal/logger"
	"github.com/harrison/fuzzrun/internal/models"
)

// Reporter owns the run's aggregate counters. Outcomes arrive in
// completion order from the scheduler's worker goroutines; each call
// atomically updates the counters, emits a progress line, and mirrors
// failure detail to the sink when one is configured. Counters only
// increase.
type Reporter struct {
	log   logger.Logger
	sink  *Sink
	bar   *logger.ProgressBar
	total int

	mu       sync.Mutex
	stats    models.RunStats
	outcomes []models.FuzzOutcome
	failures []models.FuzzOutcome
}

// New creates a Reporter for a run of total targets. The sink may be nil
// when no failure file was configured.
func New(log logger.Logger, sink *Sink, total int) *Reporter {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Reporter{
		log:   log,
		sink:  sink,
		bar:   logger.NewProgressBar(total, 10, false),
		total: total,
	}
}

// Record processes one completed outcome. Sink write errors are logged
// and swallowed: durability is best effort and must never fail the run.
func (r *Reporter) Record(outcome models.FuzzOutcome) {
	r.mu.Lock()
	r.stats.Completed++
	r.outcomes = append(r.outcomes, outcome)
	if !outcome.Success {
		r.stats.Failed++
		r.failures = append(r.failures, outcome)
	}
	stats := r.stats
	r.mu.Unlock()

	if outcome.Success {
		r.log.Debugf("Completed fuzz test: %s (%s)", outcome.Target.ID(), logger.FormatDuration(outcome.Duration))
	} else {
		r.log.Errorf("Failed fuzz test: %s", outcome.Target.ID())
		if outcome.Errors != "" {
			r.log.Debugf("Error output for %s: %s", outcome.Target.Function, truncate(outcome.Errors, 200))
		}
		if r.sink != nil {
			if err := r.sink.RecordFailure(outcome); err != nil {
				r.log.Warnf("Failed to record failure in %s: %v", r.sink.Path(), err)
			}
		}
	}

	r.bar.Update(stats.Completed)
	remaining := r.total - stats.Completed
	r.log.Infof("Progress: %s - %d/%d completed, %d failed, %d remaining",
		r.bar.Render(), stats.Completed, r.total, stats.Failed, remaining)
}

// Stats returns a snapshot of the aggregate counters.
func (r *Reporter) Stats() models.RunStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Outcomes returns all recorded outcomes in completion order.
func (r *Reporter) Outcomes() []models.FuzzOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.FuzzOutcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Failures returns the failed outcomes in completion order.
func (r *Reporter) Failures() []models.FuzzOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.FuzzOutcome, len(r.failures))
	copy(out, r.failures)
	return out
}

// Summarize logs the end-of-run summary and the disposition-specific
// closing message.
func (r *Reporter) Summarize(result *models.RunResult, continueOnFailure bool) {
	r.log.Infof("Fuzzing completed: %d total, %d failed (%s)",
		result.Stats.Completed, result.Stats.Failed, logger.FormatDuration(result.Duration))

	switch result.Disposition(continueOnFailure) {
	case models.RunInterrupted:
		r.log.Warnf("Fuzz testing interrupted, %d of %d targets finished", result.Stats.Completed, result.TotalTargets)
	case models.RunFailed:
		r.log.Errorf("%d fuzz test(s) failed", result.Stats.Failed)
	case models.RunPassed:
		if result.Stats.Failed > 0 {
			r.log.Warnf("Some fuzz tests failed, but continuing as requested")
		} else if result.TotalTargets == 0 {
			r.log.Infof("No fuzz targets found")
		} else {
			r.log.Infof("All fuzz tests completed successfully")
		}
	}
}

// truncate shortens s to at most n bytes, marking the cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
