// Package worker defines the capability-bearing execution unit managed
// by the orchestrator. Base implements the full lifecycle state machine;
// concrete workers supply only their run function, either through
// NewFunc or by embedding Base.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skovali/conductor/internal/bus"
	"github.com/skovali/conductor/pkg/models"
)

// Worker is the contract the orchestrator manages. External
// collaborators implement it, usually by embedding Base.
type Worker interface {
	// ID returns the unique, process-stable worker identifier.
	ID() string
	// Capabilities returns the task types this worker claims to handle.
	Capabilities() []string
	// Status returns a point-in-time snapshot of the worker.
	Status() models.WorkerStatus
	// Bind attaches the shared event bus. Called before Initialize.
	Bind(b *bus.Bus)
	// Initialize moves the worker from initializing to idle.
	Initialize(ctx context.Context) error
	// Shutdown moves the worker to stopped. Terminal.
	Shutdown(ctx context.Context) error
	// Execute runs one task. Rejected immediately when the worker is
	// disabled or not idle; the worker never queues internally.
	Execute(ctx context.Context, task models.Task) (*models.Result, error)
	// Enable opens the admission gate. Independent of state.
	Enable(ctx context.Context)
	// Disable closes the admission gate. Independent of state.
	Disable(ctx context.Context)
	// Reset clears the error state back to idle. Operator action; the
	// only way out of error short of shutdown.
	Reset(ctx context.Context) error
}

// RunFunc is the domain logic a worker executes per task.
type RunFunc func(ctx context.Context, task models.Task) (any, error)

// HookFunc runs during Initialize or Shutdown.
type HookFunc func(ctx context.Context) error

// Config describes a worker's identity and capabilities.
type Config struct {
	// ID is the unique worker identifier. Required.
	ID string
	// Name is the human-readable worker name.
	Name string
	// Description explains what the worker does.
	Description string
	// Version is the worker's version string.
	Version string
	// Capabilities are the task types the worker handles. Required.
	Capabilities []string
}

// Base implements Worker. It owns the state machine, the admission
// gate, and the execution statistics; the embedded run function owns
// only the domain logic.
type Base struct {
	cfg  Config
	caps map[string]struct{}
	run  RunFunc

	initHook     HookFunc
	shutdownHook HookFunc

	mu          sync.Mutex
	state       models.WorkerState
	enabled     bool
	stats       models.Stats
	currentTask *models.Task
	bus         *bus.Bus
}

// Option customizes a Base worker.
type Option func(*Base)

// WithInitHook runs fn inside Initialize, before the transition to idle.
func WithInitHook(fn HookFunc) Option {
	return func(b *Base) { b.initHook = fn }
}

// WithShutdownHook runs fn inside Shutdown, before the transition to
// stopped.
func WithShutdownHook(fn HookFunc) Option {
	return func(b *Base) { b.shutdownHook = fn }
}

// New creates a worker in the initializing state. It becomes selectable
// only after Initialize succeeds.
func New(cfg Config, run RunFunc, opts ...Option) *Base {
	caps := make(map[string]struct{}, len(cfg.Capabilities))
	for _, c := range cfg.Capabilities {
		caps[c] = struct{}{}
	}

	b := &Base{
		cfg:     cfg,
		caps:    caps,
		run:     run,
		state:   models.StateInitializing,
		enabled: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewFunc wraps a plain function as a full worker. This is the adapter
// used by the built-in demo workers and most tests.
func NewFunc(id, name string, capabilities []string, run RunFunc) *Base {
	return New(Config{
		ID:           id,
		Name:         name,
		Capabilities: capabilities,
	}, run)
}

// ID returns the worker identifier.
func (b *Base) ID() string { return b.cfg.ID }

// Capabilities returns a copy of the declared capability list.
func (b *Base) Capabilities() []string {
	out := make([]string, 0, len(b.cfg.Capabilities))
	out = append(out, b.cfg.Capabilities...)
	return out
}

// Bind attaches the shared event bus. The orchestrator calls this
// during registration, before Initialize.
func (b *Base) Bind(eventBus *bus.Bus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bus = eventBus
}

// Initialize runs the optional init hook and transitions to idle.
func (b *Base) Initialize(ctx context.Context) error {
	b.mu.Lock()
	if b.state != models.StateInitializing {
		state := b.state
		b.mu.Unlock()
		return fmt.Errorf("worker %s: initialize from %s: %w", b.cfg.ID, state, ErrInvalidState)
	}
	b.mu.Unlock()

	if b.initHook != nil {
		if err := b.initHook(ctx); err != nil {
			return fmt.Errorf("worker %s: init hook: %w", b.cfg.ID, err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = models.StateIdle
	return nil
}

// Shutdown runs the optional shutdown hook and transitions to stopped.
// Stopped is terminal; there is no way back. Any current task reference
// is cleared, though an in-flight run function is not preempted.
func (b *Base) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.state == models.StateStopped {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	var hookErr error
	if b.shutdownHook != nil {
		hookErr = b.shutdownHook(ctx)
	}

	b.mu.Lock()
	b.state = models.StateStopped
	b.currentTask = nil
	b.mu.Unlock()

	if hookErr != nil {
		return fmt.Errorf("worker %s: shutdown hook: %w", b.cfg.ID, hookErr)
	}
	return nil
}

// Execute runs one task through the admission gate. A disabled worker
// rejects with ErrDisabled; a busy worker rejects with ErrBusy; any
// other non-idle state rejects with ErrInvalidState. Rejections leave
// the worker untouched.
func (b *Base) Execute(ctx context.Context, task models.Task) (*models.Result, error) {
	b.mu.Lock()
	if !b.enabled {
		b.mu.Unlock()
		return nil, fmt.Errorf("worker %s: %w", b.cfg.ID, ErrDisabled)
	}
	switch b.state {
	case models.StateIdle:
	case models.StateBusy:
		b.mu.Unlock()
		return nil, fmt.Errorf("worker %s: %w", b.cfg.ID, ErrBusy)
	case models.StateStopped:
		b.mu.Unlock()
		return nil, fmt.Errorf("worker %s: %w", b.cfg.ID, ErrStopped)
	default:
		state := b.state
		b.mu.Unlock()
		return nil, fmt.Errorf("worker %s: execute from %s: %w", b.cfg.ID, state, ErrInvalidState)
	}

	taskCopy := task
	b.state = models.StateBusy
	b.currentTask = &taskCopy
	eventBus := b.bus
	b.mu.Unlock()

	start := time.Now()
	b.emit(ctx, eventBus, models.EventTaskStarted, models.TaskEvent{
		TaskID:   task.ID,
		TaskType: task.Type,
		WorkerID: b.cfg.ID,
	})

	output, err := b.safeRun(ctx, task)
	elapsed := time.Since(start)

	if err != nil {
		b.recordFailure(err)
		b.emit(ctx, eventBus, models.EventTaskFailed, models.TaskEvent{
			TaskID:   task.ID,
			TaskType: task.Type,
			WorkerID: b.cfg.ID,
			Duration: elapsed,
			Err:      err.Error(),
		})
		return nil, fmt.Errorf("worker %s: task %s: %w", b.cfg.ID, task.ID, err)
	}

	b.recordSuccess(elapsed)
	b.emit(ctx, eventBus, models.EventTaskCompleted, models.TaskEvent{
		TaskID:   task.ID,
		TaskType: task.Type,
		WorkerID: b.cfg.ID,
		Output:   output,
		Duration: elapsed,
	})

	return &models.Result{
		TaskID:   task.ID,
		WorkerID: b.cfg.ID,
		Output:   output,
		Duration: elapsed,
	}, nil
}

// safeRun invokes the run function, converting panics into errors so a
// misbehaving worker follows the normal failure path.
func (b *Base) safeRun(ctx context.Context, task models.Task) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return b.run(ctx, task)
}

// recordSuccess folds the elapsed time into the running statistics and
// returns the worker to idle. A shutdown that raced the execution wins:
// stopped stays stopped.
func (b *Base) recordSuccess(elapsed time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.TasksCompleted++
	b.stats.TotalExecutionTime += elapsed
	b.stats.AverageExecutionTime = b.stats.TotalExecutionTime / time.Duration(b.stats.TasksCompleted)
	b.currentTask = nil
	if b.state == models.StateBusy {
		b.state = models.StateIdle
	}
}

// recordFailure records the error and parks the worker in the error
// state until an operator resets it.
func (b *Base) recordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.TasksFailed++
	b.stats.LastError = &models.ErrorRecord{
		Message: err.Error(),
		Time:    time.Now(),
	}
	b.currentTask = nil
	if b.state == models.StateBusy {
		b.state = models.StateError
	}
}

// Enable opens the admission gate and emits agent:enabled. It never
// changes the lifecycle state.
func (b *Base) Enable(ctx context.Context) {
	b.mu.Lock()
	already := b.enabled
	b.enabled = true
	eventBus := b.bus
	b.mu.Unlock()

	if !already {
		b.emit(ctx, eventBus, models.EventWorkerEnabled, models.WorkerEvent{
			WorkerID: b.cfg.ID,
			Name:     b.cfg.Name,
		})
	}
}

// Disable closes the admission gate and emits agent:disabled. A task
// already executing runs to completion.
func (b *Base) Disable(ctx context.Context) {
	b.mu.Lock()
	already := !b.enabled
	b.enabled = false
	eventBus := b.bus
	b.mu.Unlock()

	if !already {
		b.emit(ctx, eventBus, models.EventWorkerDisabled, models.WorkerEvent{
			WorkerID: b.cfg.ID,
			Name:     b.cfg.Name,
		})
	}
}

// Reset moves the worker from error back to idle and emits agent:reset.
// Counters and LastError are kept; only the state changes. Resetting a
// worker that is not in the error state fails with ErrInvalidState.
func (b *Base) Reset(ctx context.Context) error {
	b.mu.Lock()
	if b.state != models.StateError {
		state := b.state
		b.mu.Unlock()
		return fmt.Errorf("worker %s: reset from %s: %w", b.cfg.ID, state, ErrInvalidState)
	}
	b.state = models.StateIdle
	eventBus := b.bus
	b.mu.Unlock()

	b.emit(ctx, eventBus, models.EventWorkerReset, models.WorkerEvent{
		WorkerID: b.cfg.ID,
		Name:     b.cfg.Name,
	})
	return nil
}

// Status returns a snapshot copy of the worker. Safe to read while the
// worker executes; the snapshot never aliases mutable internals.
func (b *Base) Status() models.WorkerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := models.WorkerStatus{
		ID:           b.cfg.ID,
		Name:         b.cfg.Name,
		Version:      b.cfg.Version,
		State:        b.state,
		Enabled:      b.enabled,
		Capabilities: append([]string(nil), b.cfg.Capabilities...),
		Stats:        b.stats,
	}
	if b.stats.LastError != nil {
		rec := *b.stats.LastError
		status.Stats.LastError = &rec
	}
	if b.currentTask != nil {
		status.CurrentTaskID = b.currentTask.ID
	}
	return status
}

// emit publishes an event if a bus is bound. Workers constructed
// outside an orchestrator simply run silently.
func (b *Base) emit(ctx context.Context, eventBus *bus.Bus, eventType string, payload any) {
	if eventBus == nil {
		return
	}
	eventBus.Emit(ctx, eventType, payload)
}
