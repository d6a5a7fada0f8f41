package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/skovali/conductor/internal/bus"
	"github.com/skovali/conductor/internal/config"
	"github.com/skovali/conductor/internal/monitor"
	"github.com/skovali/conductor/internal/orchestrator"
	"github.com/skovali/conductor/internal/state"
	"github.com/skovali/conductor/internal/tui"
	"github.com/skovali/conductor/pkg/models"
)

var (
	runWatch   bool
	runTimeout time.Duration
	runFile    string
	runNoState bool
)

var runCmd = &cobra.Command{
	Use:   "run [type:data ...]",
	Short: "Dispatch tasks to the built-in workers",
	Long: `Dispatch one or more tasks and wait for the results.

Each argument is a task in type:data form. Built-in task types:
  echo     returns the data unchanged
  reverse  reverses the string
  upper    uppercases the string
  sleep    sleeps for the given duration (e.g. sleep:500ms)
  flaky    succeeds twice, fails every third call

Tasks can also be read from a JSON file with --file, one object per
element: [{"type": "echo", "data": "hi"}, ...].

Examples:
  conductor run echo:hello reverse:world
  conductor run sleep:1s sleep:2s --watch
  conductor run --file tasks.json`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Show a live dashboard while tasks run")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-dispatch timeout (overrides config)")
	runCmd.Flags().StringVar(&runFile, "file", "", "Read tasks from a JSON file")
	runCmd.Flags().BoolVar(&runNoState, "no-state", false, "Skip the SQLite journal")
}

// taskSpec is one task read from --file.
type taskSpec struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// outcome pairs a dispatched task with its result.
type outcome struct {
	task models.Task
	res  *models.Result
	err  error
}

func runRun(cmd *cobra.Command, args []string) error {
	tasks, err := collectTasks(args)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no tasks given; see 'conductor run --help'")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runTimeout > 0 {
		cfg.Dispatch.Timeout = runTimeout
	}

	logger := orchestrator.NopLogger()
	if cfg.Log.DebugFile != "" {
		logger, err = orchestrator.NewDebugLogger(cfg.Log.DebugFile)
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer logger.Close()
	}

	b := bus.New(cfg.Events.HistoryCapacity)
	o := orchestrator.New(b,
		orchestrator.WithDispatchTimeout(cfg.Dispatch.Timeout),
		orchestrator.WithMaxConcurrentTasks(cfg.Dispatch.MaxConcurrentTasks),
		orchestrator.WithLogger(logger),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.State.Enabled && !runNoState {
		db, err := openStateDB(cfg.State.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		rec := state.NewRecorder(db, b, state.WithSnapshots(func() []models.WorkerStatus {
			return o.Status().Workers
		}))
		defer rec.Close()
	}

	if err := registerBuiltins(ctx, o); err != nil {
		return err
	}
	defer o.Stop(context.Background())

	if cfg.Monitor.Enabled {
		opts := []monitor.Option{
			monitor.WithInterval(cfg.Monitor.Interval),
			monitor.WithLogger(logger),
		}
		if cfg.Monitor.PublishSnapshots {
			opts = append(opts, monitor.WithSnapshotEvents(b))
		}
		m := monitor.New(o, opts...)
		m.Start(ctx)
		defer m.Stop()
	}

	if runWatch {
		return runWithDashboard(ctx, o, b, tasks)
	}
	return runPlain(ctx, o, tasks)
}

// runPlain dispatches all tasks concurrently and prints each outcome.
func runPlain(ctx context.Context, o *orchestrator.Orchestrator, tasks []models.Task) error {
	results := dispatchAll(ctx, o, tasks)

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	failures := 0
	for _, oc := range results {
		if oc.err != nil {
			failures++
			red.Printf("✗ %s:%v", oc.task.Type, oc.task.Data)
			fmt.Printf("  %v\n", oc.err)
			continue
		}
		green.Printf("✓ %s:%v", oc.task.Type, oc.task.Data)
		fmt.Printf("  -> %v (%s, worker %s)\n", oc.res.Output, oc.res.Duration.Round(time.Millisecond), oc.res.WorkerID)
	}

	st := o.Status()
	fmt.Printf("\n%d dispatched, %d failed\n", st.Processed, st.Failed)
	if failures > 0 {
		return fmt.Errorf("%d of %d tasks failed", failures, len(tasks))
	}
	return nil
}

// runWithDashboard dispatches tasks behind the live TUI.
func runWithDashboard(ctx context.Context, o *orchestrator.Orchestrator, b *bus.Bus, tasks []models.Task) error {
	fwd := bus.NewForwarder(b, 256,
		models.EventTaskCreated, models.EventTaskAssigned,
		models.EventTaskStarted, models.EventTaskCompleted,
		models.EventTaskFailed, models.EventSystemError,
		models.EventWorkerReset,
	)
	defer fwd.Close()

	dash := tui.NewDashboard(o, fwd, 250*time.Millisecond)
	program := tea.NewProgram(dash, tea.WithAltScreen())

	go func() {
		results := dispatchAll(ctx, o, tasks)
		failures := 0
		for _, oc := range results {
			if oc.err != nil {
				failures++
			}
		}
		program.Send(tui.DoneMsg{
			Message: fmt.Sprintf("%d tasks done, %d failed", len(results), failures),
		})
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// dispatchAll runs every task through the orchestrator concurrently
// and returns outcomes in input order.
func dispatchAll(ctx context.Context, o *orchestrator.Orchestrator, tasks []models.Task) []outcome {
	results := make([]outcome, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task models.Task) {
			defer wg.Done()
			res, err := o.Dispatch(ctx, task)
			results[i] = outcome{task: task, res: res, err: err}
		}(i, task)
	}
	wg.Wait()
	return results
}

// collectTasks builds the task list from args or --file.
func collectTasks(args []string) ([]models.Task, error) {
	if runFile != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("give tasks as arguments or with --file, not both")
		}
		return readTaskFile(runFile)
	}

	tasks := make([]models.Task, 0, len(args))
	for _, arg := range args {
		taskType, data, ok := strings.Cut(arg, ":")
		if !ok || taskType == "" {
			return nil, fmt.Errorf("invalid task %q, want type:data", arg)
		}
		tasks = append(tasks, models.Task{Type: taskType, Data: data})
	}
	return tasks, nil
}

// readTaskFile parses a JSON array of task specs.
func readTaskFile(path string) ([]models.Task, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	var specs []taskSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}

	tasks := make([]models.Task, 0, len(specs))
	for i, spec := range specs {
		if spec.Type == "" {
			return nil, fmt.Errorf("task %d has no type", i)
		}
		tasks = append(tasks, models.Task{Type: spec.Type, Data: spec.Data})
	}
	return tasks, nil
}

// openStateDB opens and migrates the journal database. An explicit
// path wins; otherwise the project database is used when inside an
// initialized project, the global one when not.
func openStateDB(explicit string) (*state.DB, error) {
	path := explicit
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		path = state.ProjectDBPath(cwd)
		if _, err := os.Stat(state.ProjectDir(cwd)); os.IsNotExist(err) {
			path = state.GlobalDBPath()
		}
	}

	db, err := state.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate state database: %w", err)
	}
	return db, nil
}
