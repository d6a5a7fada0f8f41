package models

import "time"

// WorkerState represents the lifecycle state of a worker.
type WorkerState string

const (
	// StateInitializing indicates the worker is between construction and
	// its first idle. It is not selectable for dispatch.
	StateInitializing WorkerState = "initializing"
	// StateIdle indicates the worker is ready to accept a task.
	StateIdle WorkerState = "idle"
	// StateBusy indicates the worker is executing a task.
	StateBusy WorkerState = "busy"
	// StateError indicates the worker's last execution failed. The worker
	// stays here until an operator resets it.
	StateError WorkerState = "error"
	// StateStopped indicates the worker has shut down. Terminal.
	StateStopped WorkerState = "stopped"
)

// Valid returns true if the state is a known value.
func (s WorkerState) Valid() bool {
	switch s {
	case StateInitializing, StateIdle, StateBusy, StateError, StateStopped:
		return true
	default:
		return false
	}
}

// CanTransition returns true if moving from s to next is a legal
// state-machine transition. Resetting out of error back to idle is the
// only operator-driven edge; stopped has no outgoing edges.
func (s WorkerState) CanTransition(next WorkerState) bool {
	switch s {
	case StateInitializing:
		return next == StateIdle || next == StateStopped
	case StateIdle:
		return next == StateBusy || next == StateStopped
	case StateBusy:
		return next == StateIdle || next == StateError || next == StateStopped
	case StateError:
		return next == StateIdle || next == StateStopped
	case StateStopped:
		return false
	default:
		return false
	}
}

// ErrorRecord captures the most recent execution failure of a worker.
type ErrorRecord struct {
	// Message is the error text.
	Message string `json:"message"`
	// Time is when the failure occurred.
	Time time.Time `json:"time"`
}

// Stats holds cumulative execution statistics for a worker.
// Counters are monotonic; they are never reset except by explicit
// operator action.
type Stats struct {
	// TasksCompleted is the number of successfully executed tasks.
	TasksCompleted int64 `json:"tasks_completed"`
	// TasksFailed is the number of failed executions.
	TasksFailed int64 `json:"tasks_failed"`
	// TotalExecutionTime is the sum of all execution durations.
	TotalExecutionTime time.Duration `json:"total_execution_time"`
	// AverageExecutionTime is TotalExecutionTime over completed runs.
	AverageExecutionTime time.Duration `json:"average_execution_time"`
	// LastError describes the most recent failure, if any.
	LastError *ErrorRecord `json:"last_error,omitempty"`
}

// WorkerStatus is a point-in-time snapshot of a single worker.
// It is a copy; mutating it has no effect on the worker.
type WorkerStatus struct {
	// ID is the worker's unique identifier.
	ID string `json:"id"`
	// Name is the human-readable worker name.
	Name string `json:"name"`
	// Version is the worker's declared version string.
	Version string `json:"version,omitempty"`
	// State is the lifecycle state at snapshot time.
	State WorkerState `json:"state"`
	// Enabled reports the admission gate, independent of State.
	Enabled bool `json:"enabled"`
	// Capabilities lists the task types the worker claims to handle.
	Capabilities []string `json:"capabilities"`
	// CurrentTaskID is the executing task's ID, empty when not busy.
	CurrentTaskID string `json:"current_task_id,omitempty"`
	// Stats is a copy of the worker's cumulative statistics.
	Stats Stats `json:"stats"`
}
