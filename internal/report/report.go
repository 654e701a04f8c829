// Package report renders recorded fuzzing runs as markdown and HTML
// documents.
package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/harrison/fuzzrun/internal/filelock"
	"github.com/harrison/fuzzrun/internal/history"
	"github.com/harrison/fuzzrun/internal/logger"
)

const htmlHeader = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 56rem; margin: 2rem auto; padding: 0 1rem; }
code, pre { background: #f4f4f4; border-radius: 4px; }
pre { padding: 0.75rem; overflow-x: auto; }
</style>
</head>
<body>
`

const htmlFooter = "</body>\n</html>\n"

// Generator renders run reports. The zero value is not usable; call
// NewGenerator.
type Generator struct {
	markdown goldmark.Markdown
}

// NewGenerator creates a report Generator.
func NewGenerator() *Generator {
	return &Generator{
		markdown: goldmark.New(),
	}
}

// Markdown renders a recorded run as a markdown document: run metadata,
// a result summary, and a section per failed target with its captured
// error detail.
func (g *Generator) Markdown(run *history.Run, records []*history.TargetRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Fuzzing Run %s\n\n", run.ID)
	fmt.Fprintf(&b, "- Started: %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n", logger.FormatDuration(run.Duration))
	fmt.Fprintf(&b, "- Targets: %d\n", run.TotalTargets)
	fmt.Fprintf(&b, "- Completed: %d\n", run.Completed)
	fmt.Fprintf(&b, "- Failed: %d\n", run.Failed)
	if run.Interrupted {
		b.WriteString("- Interrupted: yes\n")
	}
	b.WriteString("\n")

	switch {
	case run.Interrupted:
		b.WriteString("Run was interrupted before all targets completed.\n")
	case run.Failed == 0 && run.TotalTargets > 0:
		b.WriteString("All fuzz tests passed.\n")
	case run.TotalTargets == 0:
		b.WriteString("No fuzz targets were found.\n")
	default:
		fmt.Fprintf(&b, "%d fuzz test(s) failed.\n", run.Failed)
	}

	var failures, passes []*history.TargetRecord
	for _, rec := range records {
		if rec.Success {
			passes = append(passes, rec)
		} else {
			failures = append(failures, rec)
		}
	}

	if len(failures) > 0 {
		b.WriteString("\n## Failures\n")
		for _, rec := range failures {
			fmt.Fprintf(&b, "\n### %s\n\n", rec.Target.ID())
			fmt.Fprintf(&b, "- Package: `%s`\n", rec.Target.PackagePath())
			fmt.Fprintf(&b, "- Duration: %s\n", logger.FormatDuration(rec.Duration))
			if detail := strings.TrimSpace(rec.Errors); detail != "" {
				fmt.Fprintf(&b, "\n```\n%s\n```\n", detail)
			}
		}
	}

	if len(passes) > 0 {
		b.WriteString("\n## Passed\n\n")
		for _, rec := range passes {
			fmt.Fprintf(&b, "- %s (%s)\n", rec.Target.ID(), logger.FormatDuration(rec.Duration))
		}
	}

	return b.String()
}

// HTML renders the run report as a standalone HTML page.
func (g *Generator) HTML(run *history.Run, records []*history.TargetRecord) ([]byte, error) {
	var body bytes.Buffer
	if err := g.markdown.Convert([]byte(g.Markdown(run, records)), &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, htmlHeader, html.EscapeString("Fuzzing Run "+run.ID))
	page.Write(body.Bytes())
	page.WriteString(htmlFooter)
	return page.Bytes(), nil
}

// WriteFile writes a rendered report to path atomically.
func WriteFile(path string, data []byte) error {
	if err := filelock.AtomicWrite(path, data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
