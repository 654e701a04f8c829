package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/fuzzrun/internal/discovery"
	"github.com/harrison/fuzzrun/internal/logger"
)

// NewListCommand creates the list command
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [dir]",
		Short: "List discovered fuzz targets without running them",
		Long: `Scan the module rooted at dir (default ".") for fuzz functions and
print them, one per line, in the order they would be executed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: listCommand,
	}
	return cmd
}

func listCommand(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	log := logger.NewConsoleLogger(os.Stderr, "warn")

	targets, warnings, err := discovery.NewScanner(root).Discover(cmd.Context())
	for _, warning := range warnings {
		log.Warnf("%s", warning)
	}
	if err != nil {
		return fmt.Errorf("discover fuzz targets: %w", err)
	}

	if len(targets) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No fuzz targets found.")
		return nil
	}

	for _, target := range targets {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", target.PackagePath(), target.Function)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d fuzz target(s)\n", len(targets))
	return nil
}
