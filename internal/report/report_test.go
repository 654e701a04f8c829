package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/fuzzrun/internal/history"
	"github.com/harrison/fuzzrun/internal/models"
)

func sampleRun() *history.Run {
	return &history.Run{
		ID:           "run-abc",
		StartedAt:    time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC),
		Duration:     95 * time.Second,
		TotalTargets: 3,
		Completed:    3,
		Failed:       1,
	}
}

func sampleRecords() []*history.TargetRecord {
	return []*history.TargetRecord{
		{
			Target:   models.FuzzTarget{Directory: "pkg/codec", Function: "FuzzDecode", FilePath: "pkg/codec/codec_test.go"},
			Duration: 12 * time.Second,
			Errors:   "panic: index out of range [3]",
		},
		{
			Target:   models.FuzzTarget{Directory: "pkg/parser", Function: "FuzzParse", FilePath: "pkg/parser/parse_test.go"},
			Success:  true,
			Duration: 10 * time.Second,
		},
		{
			Target:   models.FuzzTarget{Directory: ".", Function: "FuzzRoot", FilePath: "root_test.go"},
			Success:  true,
			Duration: 8 * time.Second,
		},
	}
}

func TestMarkdownContainsRunMetadata(t *testing.T) {
	md := NewGenerator().Markdown(sampleRun(), sampleRecords())

	assert.Contains(t, md, "# Fuzzing Run run-abc")
	assert.Contains(t, md, "- Started: 2026-08-31T09:30:00Z")
	assert.Contains(t, md, "- Duration: 1m35s")
	assert.Contains(t, md, "- Targets: 3")
	assert.Contains(t, md, "- Failed: 1")
	assert.Contains(t, md, "1 fuzz test(s) failed.")
}

func TestMarkdownFailureSection(t *testing.T) {
	md := NewGenerator().Markdown(sampleRun(), sampleRecords())

	assert.Contains(t, md, "## Failures")
	assert.Contains(t, md, "### FuzzDecode in pkg/codec/codec_test.go")
	assert.Contains(t, md, "- Package: `./pkg/codec`")
	assert.Contains(t, md, "panic: index out of range [3]")

	// Passing targets live in their own section, not under failures.
	assert.Contains(t, md, "## Passed")
	failIdx := strings.Index(md, "## Failures")
	passIdx := strings.Index(md, "## Passed")
	assert.Less(t, failIdx, passIdx)
	assert.Contains(t, md, "- FuzzParse in pkg/parser/parse_test.go (10.0s)")
}

func TestMarkdownAllPassed(t *testing.T) {
	run := sampleRun()
	run.Failed = 0
	records := sampleRecords()[1:]

	md := NewGenerator().Markdown(run, records)

	assert.Contains(t, md, "All fuzz tests passed.")
	assert.NotContains(t, md, "## Failures")
}

func TestMarkdownInterruptedRun(t *testing.T) {
	run := sampleRun()
	run.Interrupted = true

	md := NewGenerator().Markdown(run, nil)

	assert.Contains(t, md, "- Interrupted: yes")
	assert.Contains(t, md, "Run was interrupted before all targets completed.")
}

func TestMarkdownNoTargets(t *testing.T) {
	run := &history.Run{ID: "empty", StartedAt: time.Now()}

	md := NewGenerator().Markdown(run, nil)

	assert.Contains(t, md, "No fuzz targets were found.")
}

func TestHTMLRendersMarkdown(t *testing.T) {
	page, err := NewGenerator().HTML(sampleRun(), sampleRecords())
	require.NoError(t, err)

	out := string(page)
	assert.Contains(t, out, "<!DOCTYPE html>")
	assert.Contains(t, out, "<title>Fuzzing Run run-abc</title>")
	assert.Contains(t, out, "<h1>Fuzzing Run run-abc</h1>")
	assert.Contains(t, out, "<h3>FuzzDecode in pkg/codec/codec_test.go</h3>")
	assert.Contains(t, out, "panic: index out of range [3]")
	assert.True(t, strings.HasSuffix(out, "</html>\n"))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.html")

	require.NoError(t, WriteFile(path, []byte("<html></html>")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))
}
