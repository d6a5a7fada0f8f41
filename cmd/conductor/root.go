package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Capability-based task dispatch",
	Long: `Conductor routes tasks to registered workers by capability,
tracks per-worker execution statistics, and publishes every lifecycle
step on an event bus.

Core capabilities:
- Registers workers declaring the task types they handle
- Selects the idle worker with the best execution history
- Bounds each dispatch with a timeout
- Journals lifecycle events to a local SQLite database`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
