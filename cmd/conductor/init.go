package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/skovali/conductor/internal/config"
	"github.com/skovali/conductor/internal/state"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a conductor project",
	Long: `Initialize a directory for use with conductor.

Creates the .conductor directory with a default config.yaml and the
project-local state database. Runs started inside the directory
journal to the project database instead of the global one.

Examples:
  conductor init              # Initialize current directory
  conductor init ./myproject  # Initialize specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Rewrite the config even if already set up")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	green := color.New(color.FgGreen)

	configPath := filepath.Join(state.ProjectDir(absPath), "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		if !initForce {
			fmt.Println("Directory already initialized. Use --force to rewrite the config.")
			return nil
		}
		if err := os.Remove(configPath); err != nil {
			return fmt.Errorf("removing old config: %w", err)
		}
	}

	if err := config.WriteDefault(configPath); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	green.Printf("✓")
	fmt.Printf(" wrote %s\n", configPath)

	db, err := state.Open(state.ProjectDBPath(absPath))
	if err != nil {
		return fmt.Errorf("creating state database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating state database: %w", err)
	}
	green.Printf("✓")
	fmt.Printf(" created %s\n", db.Path())

	fmt.Println("\nTry: conductor run echo:hello")
	return nil
}
