package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/fuzzrun/internal/config"
	"github.com/harrison/fuzzrun/internal/history"
	"github.com/harrison/fuzzrun/internal/logger"
)

// errNoHistoryDB means the history database has never been created; the
// read-only commands treat this as "no runs", not as a reason to create it.
var errNoHistoryDB = errors.New("no history database")

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [dir]",
		Short: "List past fuzzing runs",
		Long: `List runs recorded in the history database of the module rooted at dir
(default "."), newest first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: historyCommand,
	}

	cmd.Flags().IntP("limit", "n", 10, "Maximum number of runs to show (0 = all)")
	cmd.Flags().String("config-dir", "", "Directory holding config.yaml and run artifacts (default \".fuzzrun\")")

	return cmd
}

func historyCommand(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	store, err := openHistoryStore(cmd, root)
	if errors.Is(err, errNoHistoryDB) {
		fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs.")
		return nil
	}
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs.")
		return nil
	}

	for _, run := range runs {
		status := "passed"
		switch {
		case run.Interrupted:
			status = "interrupted"
		case run.Failed > 0:
			status = fmt.Sprintf("%d failed", run.Failed)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d target(s)  %s  %s\n",
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.TotalTargets,
			logger.FormatDuration(run.Duration),
			status,
		)
	}
	return nil
}

// openHistoryStore resolves the history database path via the usual
// configuration chain and opens it. A database that was never created
// returns errNoHistoryDB instead of being created as a side effect.
func openHistoryStore(cmd *cobra.Command, root string) (*history.Store, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("config-dir") {
		cfg.ConfigDir, _ = cmd.Flags().GetString("config-dir")
	}
	if err := cfg.LoadFile(filepath.Join(resolvePath(root, cfg.ConfigDir), "config.yaml")); err != nil {
		return nil, err
	}

	dbPath := resolvePath(root, cfg.History.DBPath)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w at %s", errNoHistoryDB, dbPath)
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	return store, nil
}
