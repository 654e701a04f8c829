// Package reporter accumulates fuzz outcomes into aggregate statistics,
// streams progress to the console, and duplicates failure detail to an
// optional persistent sink.
package reporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/fuzzrun/internal/filelock"
	"github.com/harrison/fuzzrun/internal/models"
)

// Sink is the durable failure log. The file is truncated when opened and
// appended to for the rest of the run. Every write is fsynced before the
// call returns, so a recorded failure survives immediate process death.
// Writes are serialized with a file lock held per call, never across a
// whole sandbox invocation, so concurrent fuzzrun processes sharing a sink
// interleave whole blocks rather than bytes.
type Sink struct {
	file *os.File
	lock *filelock.FileLock
	path string
}

// OpenSink creates or truncates the failure sink at path and writes the
// run header. Parent directories are created as needed.
func OpenSink(path, runID string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create sink directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open failure sink: %w", err)
	}

	s := &Sink{
		file: file,
		lock: filelock.NewFileLock(path + ".lock"),
		path: path,
	}

	header := fmt.Sprintf("=== fuzzrun failure log ===\nRun ID: %s\nStarted at: %s\n\n",
		runID, time.Now().Format(time.RFC3339))
	if err := s.write(header); err != nil {
		file.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the sink file path.
func (s *Sink) Path() string {
	return s.path
}

// RecordFailure appends one failure block for the outcome: an identity
// line, a detail line with the captured stderr, and a separator.
func (s *Sink) RecordFailure(outcome models.FuzzOutcome) error {
	block := fmt.Sprintf("FAILED: %s\n", outcome.Target.ID())
	if detail := strings.TrimSpace(outcome.Errors); detail != "" {
		block += fmt.Sprintf("Details: %s\n", detail)
	}
	block += "---\n"
	return s.write(block)
}

// write appends data under the file lock and syncs it to disk.
func (s *Sink) write(data string) error {
	if err := s.lock.Lock(); err != nil {
		return err
	}
	defer s.lock.Unlock()

	if _, err := s.file.WriteString(data); err != nil {
		return fmt.Errorf("failed to write failure sink: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync failure sink: %w", err)
	}
	return nil
}

// Close flushes and closes the sink file. Safe to call once.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		s.file = nil
		return fmt.Errorf("failed to sync failure sink: %w", err)
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("failed to close failure sink: %w", err)
	}
	return nil
}
