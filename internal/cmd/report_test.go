package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/fuzzrun/internal/history"
)

func TestReportCommandLatestRunMarkdown(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	seedHistory(t, root,
		&history.Run{ID: "old-run", StartedAt: base, TotalTargets: 1, Completed: 1},
		&history.Run{ID: "latest-run", StartedAt: base.Add(time.Hour), TotalTargets: 2, Completed: 2, Failed: 1},
	)

	var out bytes.Buffer
	rootCmd := NewRootCommand()
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"report", "--dir", root})

	require.NoError(t, rootCmd.Execute())

	got := out.String()
	assert.Contains(t, got, "# Fuzzing Run latest-run")
	assert.Contains(t, got, "## Failures")
	assert.Contains(t, got, "found a crash")
}

func TestReportCommandSpecificRunHTMLToFile(t *testing.T) {
	root := t.TempDir()
	seedHistory(t, root,
		&history.Run{ID: "the-run", StartedAt: time.Now(), TotalTargets: 1, Completed: 1},
	)

	outPath := filepath.Join(t.TempDir(), "report.html")
	rootCmd := NewRootCommand()
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"report", "the-run", "--dir", root, "--format", "html", "-o", outPath})

	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h1>Fuzzing Run the-run</h1>")
}

func TestReportCommandUnknownRun(t *testing.T) {
	root := t.TempDir()
	seedHistory(t, root,
		&history.Run{ID: "only-run", StartedAt: time.Now(), TotalTargets: 1, Completed: 1},
	)

	rootCmd := NewRootCommand()
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"report", "missing", "--dir", root})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recorded run with ID missing")
}

func TestReportCommandNoRuns(t *testing.T) {
	root := t.TempDir()

	rootCmd := NewRootCommand()
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"report", "--dir", root})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recorded runs")

	// A read-only command must not create the database as a side effect.
	_, statErr := os.Stat(filepath.Join(root, ".fuzzrun"))
	assert.True(t, os.IsNotExist(statErr), "report command created %s", filepath.Join(root, ".fuzzrun"))
}

func TestReportCommandInvalidFormat(t *testing.T) {
	rootCmd := NewRootCommand()
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"report", "--dir", t.TempDir(), "--format", "pdf"})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --format")
}
