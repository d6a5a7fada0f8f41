package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skovali/conductor/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Display the configuration conductor would run with.

Configuration is read from ~/.config/conductor/config.yaml with
project overrides in .conductor/config.yaml and CONDUCTOR_*
environment variables on top.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		displayConfig(cfg)
	},
}

func displayConfig(cfg *config.Config) {
	fmt.Printf("dispatch.timeout: %s\n", cfg.Dispatch.Timeout)
	fmt.Printf("dispatch.max_concurrent_tasks: %d\n", cfg.Dispatch.MaxConcurrentTasks)
	fmt.Printf("events.history_capacity: %d\n", cfg.Events.HistoryCapacity)
	fmt.Printf("monitor.enabled: %t\n", cfg.Monitor.Enabled)
	fmt.Printf("monitor.interval: %s\n", cfg.Monitor.Interval)
	fmt.Printf("monitor.publish_snapshots: %t\n", cfg.Monitor.PublishSnapshots)
	fmt.Printf("state.enabled: %t\n", cfg.State.Enabled)
	statePath := cfg.State.Path
	if statePath == "" {
		statePath = "(auto)"
	}
	fmt.Printf("state.path: %s\n", statePath)
	debugFile := cfg.Log.DebugFile
	if debugFile == "" {
		debugFile = "(off)"
	}
	fmt.Printf("log.debug_file: %s\n", debugFile)

	if projectPath := config.GetProjectConfigPath(); projectPath != "" {
		fmt.Printf("\nproject config: %s\n", projectPath)
	}
	fmt.Printf("user config: %s\n", config.GetUserConfigPath())
}
