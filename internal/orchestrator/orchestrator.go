package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skovali/conductor/internal/bus"
	"github.com/skovali/conductor/internal/worker"
	"github.com/skovali/conductor/pkg/models"
)

// DefaultDispatchTimeout bounds how long a dispatch waits for a worker
// before failing with ErrDispatchTimeout.
const DefaultDispatchTimeout = 30 * time.Second

// registration pairs a worker with its registry insertion order. The
// order is the stable tie-break for selection.
type registration struct {
	worker worker.Worker
	order  uint64
}

// Orchestrator owns the worker registry, the pending-task list, and the
// dispatch policy. All of its state is guarded by one mutex; workers
// guard their own state, and the busy admission gate on each worker is
// what keeps two dispatches off the same worker.
type Orchestrator struct {
	bus             *bus.Bus
	logger          *DebugLogger
	dispatchTimeout time.Duration
	maxConcurrent   int

	mu         sync.RWMutex
	workers    map[string]*registration
	order      uint64
	pending    []*models.Task
	pendingIDs map[string]struct{}
	validators map[string]ValidatorFunc
	active     int
	processed  uint64
	failed     uint64
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithDispatchTimeout sets the per-dispatch wait bound.
// Non-positive values keep the default.
func WithDispatchTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.dispatchTimeout = d
		}
	}
}

// WithMaxConcurrentTasks sets the advisory concurrency limit. The core
// only logs when the limit is exceeded; the per-worker busy gate is the
// real exclusion mechanism.
func WithMaxConcurrentTasks(n int) Option {
	return func(o *Orchestrator) { o.maxConcurrent = n }
}

// WithLogger sets the debug logger used for dispatch tracing.
func WithLogger(l *DebugLogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator publishing on the given bus. The bus is
// injected, never global, so tests can build isolated pairs.
func New(eventBus *bus.Bus, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		bus:             eventBus,
		logger:          NopLogger(),
		dispatchTimeout: DefaultDispatchTimeout,
		workers:         make(map[string]*registration),
		pendingIDs:      make(map[string]struct{}),
		validators:      make(map[string]ValidatorFunc),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register binds the shared bus to the worker, runs its Initialize
// hook, and adds it to the registry. A duplicate ID is rejected before
// the hook runs.
func (o *Orchestrator) Register(ctx context.Context, w worker.Worker) error {
	id := w.ID()
	if id == "" {
		return fmt.Errorf("register: %w", ErrWorkerNotFound)
	}

	o.mu.RLock()
	_, exists := o.workers[id]
	o.mu.RUnlock()
	if exists {
		return fmt.Errorf("register %s: %w", id, ErrDuplicateWorker)
	}

	w.Bind(o.bus)
	if err := w.Initialize(ctx); err != nil {
		return fmt.Errorf("register %s: %w", id, err)
	}

	o.mu.Lock()
	if _, exists := o.workers[id]; exists {
		o.mu.Unlock()
		return fmt.Errorf("register %s: %w", id, ErrDuplicateWorker)
	}
	o.workers[id] = &registration{worker: w, order: o.order}
	o.order++
	o.mu.Unlock()

	o.logger.Log("registered worker %s caps=%v", id, w.Capabilities())
	o.bus.Emit(ctx, models.EventWorkerRegistered, models.WorkerEvent{
		WorkerID:     id,
		Name:         w.Status().Name,
		Capabilities: w.Capabilities(),
	})
	return nil
}

// Unregister removes a worker from the registry and runs its Shutdown
// hook. Unknown IDs are rejected.
func (o *Orchestrator) Unregister(ctx context.Context, id string) error {
	o.mu.Lock()
	reg, ok := o.workers[id]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("unregister %s: %w", id, ErrWorkerNotFound)
	}
	delete(o.workers, id)
	o.mu.Unlock()

	err := reg.worker.Shutdown(ctx)

	o.logger.Log("unregistered worker %s", id)
	o.bus.Emit(ctx, models.EventWorkerUnregistered, models.WorkerEvent{WorkerID: id})

	if err != nil {
		return fmt.Errorf("unregister %s: %w", id, err)
	}
	return nil
}

// Worker returns a registered worker by ID.
func (o *Orchestrator) Worker(id string) (worker.Worker, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	reg, ok := o.workers[id]
	if !ok {
		return nil, false
	}
	return reg.worker, true
}

// SetEnabled toggles a worker's admission gate through the worker's own
// Enable/Disable, never touching its lifecycle state.
func (o *Orchestrator) SetEnabled(ctx context.Context, id string, enabled bool) error {
	w, ok := o.Worker(id)
	if !ok {
		return fmt.Errorf("set enabled %s: %w", id, ErrWorkerNotFound)
	}
	if enabled {
		w.Enable(ctx)
	} else {
		w.Disable(ctx)
	}
	o.logger.Log("worker %s enabled=%v", id, enabled)
	return nil
}

// ResetWorker clears a worker's error state back to idle, making it
// selectable again. This is the only recovery path out of error.
func (o *Orchestrator) ResetWorker(ctx context.Context, id string) error {
	w, ok := o.Worker(id)
	if !ok {
		return fmt.Errorf("reset %s: %w", id, ErrWorkerNotFound)
	}
	if err := w.Reset(ctx); err != nil {
		return fmt.Errorf("reset %s: %w", id, err)
	}
	o.logger.Log("worker %s reset", id)
	return nil
}

// Dispatch validates and routes one task, waits for the selected worker
// under the dispatch timeout, and returns the worker's result. Worker
// errors are never swallowed; after bookkeeping they are returned to
// the caller as-is.
func (o *Orchestrator) Dispatch(ctx context.Context, task models.Task) (*models.Result, error) {
	if task.Type == "" {
		return nil, ErrInvalidTask
	}
	if err := o.validate(task); err != nil {
		return nil, err
	}

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	task.SubmittedAt = time.Now()

	if err := o.admit(&task); err != nil {
		return nil, err
	}
	o.bus.Emit(ctx, models.EventTaskCreated, models.TaskEvent{
		TaskID:   task.ID,
		TaskType: task.Type,
	})

	w := o.selectWorker(task.Type)
	if w == nil {
		err := fmt.Errorf("task %s type %q: %w", task.ID, task.Type, ErrNoCapableWorker)
		o.finish(ctx, &task, err)
		return nil, err
	}

	o.logger.Log("task %s assigned to worker %s", task.ID, w.ID())
	o.bus.Emit(ctx, models.EventTaskAssigned, models.TaskEvent{
		TaskID:   task.ID,
		TaskType: task.Type,
		WorkerID: w.ID(),
	})

	res, err := o.await(ctx, w, task)
	o.finish(ctx, &task, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// admit adds the task to the pending list, rejecting IDs that collide
// with a concurrently live task.
func (o *Orchestrator) admit(task *models.Task) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, live := o.pendingIDs[task.ID]; live {
		return fmt.Errorf("task %s: %w", task.ID, ErrDuplicateTask)
	}
	o.pending = append(o.pending, task)
	o.pendingIDs[task.ID] = struct{}{}
	o.active++
	if o.maxConcurrent > 0 && o.active > o.maxConcurrent {
		o.logger.Log("active dispatches %d exceed advisory limit %d", o.active, o.maxConcurrent)
	}
	return nil
}

// await runs the worker execution racing the dispatch timeout. The
// timeout cancels the execution context and stops waiting, but the
// worker is not preempted: a stuck run settles independently and the
// worker transitions on its own when it does.
func (o *Orchestrator) await(ctx context.Context, w worker.Worker, task models.Task) (*models.Result, error) {
	execCtx, cancel := context.WithTimeout(ctx, o.dispatchTimeout)
	defer cancel()

	type outcome struct {
		res *models.Result
		err error
	}
	// Buffered so the worker goroutine can settle after we stop waiting.
	done := make(chan outcome, 1)
	go func() {
		res, err := w.Execute(execCtx, task)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, fmt.Errorf("task %s: %w", task.ID, ctx.Err())
		}
		return nil, fmt.Errorf("task %s on worker %s after %s: %w",
			task.ID, w.ID(), o.dispatchTimeout, ErrDispatchTimeout)
	}
}

// finish removes the task from the pending list and settles the
// aggregate counters. Failed dispatches additionally emit system:error.
func (o *Orchestrator) finish(ctx context.Context, task *models.Task, dispatchErr error) {
	o.mu.Lock()
	delete(o.pendingIDs, task.ID)
	for i, p := range o.pending {
		if p.ID == task.ID {
			o.pending = append(o.pending[:i], o.pending[i+1:]...)
			break
		}
	}
	o.active--
	o.processed++
	if dispatchErr != nil {
		o.failed++
	}
	o.mu.Unlock()

	if dispatchErr != nil {
		o.logger.Log("task %s failed: %v", task.ID, dispatchErr)
		o.bus.Emit(ctx, models.EventSystemError, models.TaskEvent{
			TaskID:   task.ID,
			TaskType: task.Type,
			Err:      dispatchErr.Error(),
		})
	}
}

// Status is a point-in-time snapshot of the orchestrator.
type Status struct {
	// Workers lists per-worker snapshots in registration order.
	Workers []models.WorkerStatus `json:"workers"`
	// EnabledWorkers counts workers whose admission gate is open.
	EnabledWorkers int `json:"enabled_workers"`
	// PendingTasks is the current pending-list length.
	PendingTasks int `json:"pending_tasks"`
	// ActiveDispatches is the number of dispatches awaiting a worker.
	ActiveDispatches int `json:"active_dispatches"`
	// Processed is the total number of settled dispatches.
	Processed uint64 `json:"processed"`
	// Failed is the number of settled dispatches that returned an error.
	Failed uint64 `json:"failed"`
	// Bus reports event-bus counters.
	Bus bus.Stats `json:"bus"`
}

// Status returns a snapshot of counters and per-worker status. Pure
// read; safe to poll at any interval.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	regs := make([]*registration, 0, len(o.workers))
	for _, reg := range o.workers {
		regs = append(regs, reg)
	}
	st := Status{
		PendingTasks:     len(o.pending),
		ActiveDispatches: o.active,
		Processed:        o.processed,
		Failed:           o.failed,
	}
	o.mu.RUnlock()

	// Registration order keeps the listing stable across polls.
	for i := 1; i < len(regs); i++ {
		for j := i; j > 0 && regs[j-1].order > regs[j].order; j-- {
			regs[j-1], regs[j] = regs[j], regs[j-1]
		}
	}
	for _, reg := range regs {
		ws := reg.worker.Status()
		if ws.Enabled {
			st.EnabledWorkers++
		}
		st.Workers = append(st.Workers, ws)
	}
	st.Bus = o.bus.Stats()
	return st
}

// History exposes the bus's retained events for introspection.
func (o *Orchestrator) History(filter bus.HistoryFilter) []bus.Event {
	return o.bus.History(filter)
}

// Stop shuts down every registered worker and clears the registry.
// In-flight executions are not preempted; their dispatches settle on
// their own.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	regs := o.workers
	o.workers = make(map[string]*registration)
	o.mu.Unlock()

	var firstErr error
	for id, reg := range regs {
		if err := reg.worker.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop worker %s: %w", id, err)
		}
		o.bus.Emit(ctx, models.EventWorkerUnregistered, models.WorkerEvent{WorkerID: id})
	}
	o.logger.Log("orchestrator stopped, %d workers shut down", len(regs))
	return firstErr
}
