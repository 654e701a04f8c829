package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/fuzzrun/internal/history"
	"github.com/harrison/fuzzrun/internal/models"
)

// seedHistory records canned runs in <root>/.fuzzrun/history.db, the
// default location the commands resolve.
func seedHistory(t *testing.T, root string, runs ...*history.Run) {
	t.Helper()
	store, err := history.NewStore(filepath.Join(root, ".fuzzrun", "history.db"))
	require.NoError(t, err)
	defer store.Close()

	for _, run := range runs {
		outcomes := []models.FuzzOutcome{
			{
				Target:   models.FuzzTarget{Directory: "pkg", Function: "FuzzOK", FilePath: "pkg/ok_test.go"},
				Success:  true,
				Duration: 5 * time.Second,
			},
		}
		if run.Failed > 0 {
			outcomes = append(outcomes, models.FuzzOutcome{
				Target:   models.FuzzTarget{Directory: ".", Function: "FuzzBad", FilePath: "bad_test.go"},
				Duration: 3 * time.Second,
				Errors:   "found a crash",
			})
		}
		require.NoError(t, store.RecordRun(context.Background(), run, outcomes))
	}
}

func TestHistoryCommandListsRuns(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	seedHistory(t, root,
		&history.Run{ID: "older-run", StartedAt: base, Duration: 30 * time.Second, TotalTargets: 2, Completed: 2},
		&history.Run{ID: "newer-run", StartedAt: base.Add(time.Hour), Duration: 40 * time.Second, TotalTargets: 2, Completed: 2, Failed: 1},
	)

	var out bytes.Buffer
	rootCmd := NewRootCommand()
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"history", root})

	require.NoError(t, rootCmd.Execute())

	got := out.String()
	assert.Contains(t, got, "newer-run")
	assert.Contains(t, got, "older-run")
	assert.Contains(t, got, "1 failed")
	assert.Contains(t, got, "passed")
	// Newest first.
	assert.Less(t, bytes.Index(out.Bytes(), []byte("newer-run")), bytes.Index(out.Bytes(), []byte("older-run")))
}

func TestHistoryCommandLimit(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	seedHistory(t, root,
		&history.Run{ID: "run-a", StartedAt: base, TotalTargets: 1, Completed: 1},
		&history.Run{ID: "run-b", StartedAt: base.Add(time.Hour), TotalTargets: 1, Completed: 1},
	)

	var out bytes.Buffer
	rootCmd := NewRootCommand()
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"history", root, "-n", "1"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "run-b")
	assert.NotContains(t, out.String(), "run-a")
}

func TestHistoryCommandEmpty(t *testing.T) {
	root := t.TempDir()

	var out bytes.Buffer
	rootCmd := NewRootCommand()
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"history", root})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "No recorded runs.")

	// A read-only command must not create the database as a side effect.
	_, err := os.Stat(filepath.Join(root, ".fuzzrun"))
	assert.True(t, os.IsNotExist(err), "history command created %s", filepath.Join(root, ".fuzzrun"))
}
