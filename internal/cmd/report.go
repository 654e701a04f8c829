package cmd

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/fuzzrun/internal/history"
	"github.com/harrison/fuzzrun/internal/report"
)

// NewReportCommand creates the report command
func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Render a report for a recorded run",
		Long: `Render a recorded run as markdown or HTML. Without a run-id the most
recent run is used.

Examples:
  # Markdown for the latest run, to stdout
  fuzzrun report

  # HTML report for a specific run
  fuzzrun report 7f1c... --format html -o report.html`,
		Args: cobra.MaximumNArgs(1),
		RunE: reportCommand,
	}

	cmd.Flags().String("format", "markdown", "Output format: markdown or html")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().String("dir", ".", "Module directory whose history to read")
	cmd.Flags().String("config-dir", "", "Directory holding config.yaml and run artifacts (default \".fuzzrun\")")

	return cmd
}

func reportCommand(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "markdown" && format != "html" {
		return fmt.Errorf("invalid --format %q: want markdown or html", format)
	}

	root, _ := cmd.Flags().GetString("dir")
	store, err := openHistoryStore(cmd, root)
	if errors.Is(err, errNoHistoryDB) {
		return errors.New("no recorded runs to report on")
	}
	if err != nil {
		return err
	}
	defer store.Close()

	var run *history.Run
	if len(args) == 1 {
		run, err = store.GetRun(cmd.Context(), args[0])
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no recorded run with ID %s", args[0])
		}
	} else {
		runs, listErr := store.ListRuns(cmd.Context(), 1)
		if listErr != nil {
			err = listErr
		} else if len(runs) == 0 {
			return errors.New("no recorded runs to report on")
		} else {
			run = runs[0]
		}
	}
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}

	records, err := store.GetOutcomes(cmd.Context(), run.ID)
	if err != nil {
		return fmt.Errorf("load run outcomes: %w", err)
	}

	gen := report.NewGenerator()
	var rendered []byte
	if format == "html" {
		rendered, err = gen.HTML(run, records)
		if err != nil {
			return err
		}
	} else {
		rendered = []byte(gen.Markdown(run, records))
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		_, err = cmd.OutOrStdout().Write(rendered)
		return err
	}
	return report.WriteFile(output, rendered)
}
