package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/skovali/conductor/internal/state"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recorded workers and recent events",
	Long: `Display the journal from the last runs.

Shows:
  - The latest snapshot of every known worker
  - Recent lifecycle events
  - Event counts by type`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 15, "Number of recent events to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	// Project database first, then global.
	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		dbPath = state.GlobalDBPath()
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No recorded runs. Run 'conductor run <type:data>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if err := displayWorkers(db); err != nil {
		return err
	}
	fmt.Println()
	if err := displayRecentEvents(db); err != nil {
		return err
	}
	fmt.Println()
	return displayEventCounts(db)
}

func displayWorkers(db *state.DB) error {
	snaps, err := db.ListWorkerSnapshots()
	if err != nil {
		return fmt.Errorf("list worker snapshots: %w", err)
	}

	fmt.Println("Workers:")
	if len(snaps) == 0 {
		fmt.Println("  none recorded")
		return nil
	}

	for _, ws := range snaps {
		gate := ""
		if !ws.Enabled {
			gate = " [disabled]"
		}
		fmt.Printf("  %s (%s)%s  %s  %s\n",
			ws.Name, ws.WorkerID, gate,
			colorState(string(ws.State)),
			strings.Join(ws.Capabilities, ","))
		fmt.Printf("    completed %d, failed %d, avg %s",
			ws.TasksCompleted, ws.TasksFailed, formatDuration(ws.AverageTime))
		if ws.LastError != "" {
			fmt.Printf(", last error: %s", ws.LastError)
		}
		fmt.Printf("  (as of %s ago)\n", formatAge(time.Since(ws.TakenAt)))
	}
	return nil
}

func displayRecentEvents(db *state.DB) error {
	events, err := db.RecentEvents(statusLimit)
	if err != nil {
		return fmt.Errorf("list recent events: %w", err)
	}

	fmt.Println("Recent Events:")
	if len(events) == 0 {
		fmt.Println("  none")
		return nil
	}

	for _, evt := range events {
		line := fmt.Sprintf("  %s  %-17s", evt.CreatedAt.Local().Format("15:04:05"), evt.Type)
		if evt.TaskID != "" {
			line += " " + evt.TaskID
		}
		if evt.WorkerID != "" {
			line += " -> " + evt.WorkerID
		}
		if evt.Duration > 0 {
			line += " " + formatDuration(evt.Duration)
		}
		fmt.Println(line)
		if evt.Error != "" {
			color.Red("      %s", evt.Error)
		}
	}
	return nil
}

func displayEventCounts(db *state.DB) error {
	counts, err := db.CountEventsByType()
	if err != nil {
		return fmt.Errorf("count events: %w", err)
	}
	if len(counts) == 0 {
		return nil
	}

	fmt.Println("Totals:")
	for _, typ := range []string{"task:created", "task:completed", "task:failed", "system:error"} {
		if n, ok := counts[typ]; ok {
			fmt.Printf("  %-15s %d\n", typ, n)
		}
	}
	return nil
}

// colorState renders a worker state with the matching color.
func colorState(s string) string {
	switch s {
	case "idle":
		return color.GreenString(s)
	case "busy":
		return color.YellowString(s)
	case "error":
		return color.RedString(s)
	default:
		return s
	}
}

// formatDuration formats a duration compactly.
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0ms"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}

// formatAge formats an elapsed duration in a human-readable way.
func formatAge(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}
