package models

import "time"

// Event type constants shared by the orchestrator, workers, and any
// subscriber (journal, dashboard). Hierarchical by convention only; the
// bus does no wildcard matching.
const (
	// EventTaskCreated is emitted when a task is accepted for dispatch.
	EventTaskCreated = "task:created"
	// EventTaskAssigned is emitted when a worker has been selected.
	EventTaskAssigned = "task:assigned"
	// EventTaskStarted is emitted by a worker when execution begins.
	EventTaskStarted = "task:started"
	// EventTaskCompleted is emitted by a worker on successful execution.
	EventTaskCompleted = "task:completed"
	// EventTaskFailed is emitted by a worker when execution fails.
	EventTaskFailed = "task:failed"

	// EventWorkerRegistered is emitted after a worker joins the registry.
	EventWorkerRegistered = "agent:registered"
	// EventWorkerUnregistered is emitted after a worker leaves the registry.
	EventWorkerUnregistered = "agent:unregistered"
	// EventWorkerEnabled is emitted when a worker's admission gate opens.
	EventWorkerEnabled = "agent:enabled"
	// EventWorkerDisabled is emitted when a worker's admission gate closes.
	EventWorkerDisabled = "agent:disabled"
	// EventWorkerReset is emitted when an operator clears a worker's
	// error state.
	EventWorkerReset = "agent:reset"

	// EventSystemError is emitted by the orchestrator when a dispatch
	// fails after the task was accepted.
	EventSystemError = "system:error"
	// EventMonitorSnapshot is emitted by the monitor on each poll, when
	// snapshot publishing is enabled.
	EventMonitorSnapshot = "monitor:snapshot"
)

// TaskEvent is the payload carried by task lifecycle events.
type TaskEvent struct {
	// TaskID is the ID of the task the event concerns.
	TaskID string `json:"task_id"`
	// TaskType is the task's capability string.
	TaskType string `json:"task_type"`
	// WorkerID is the worker involved, if one has been selected.
	WorkerID string `json:"worker_id,omitempty"`
	// Output is the execution result, set on task:completed.
	Output any `json:"output,omitempty"`
	// Duration is the measured execution time, set on terminal events.
	Duration time.Duration `json:"duration,omitempty"`
	// Err is the failure message, set on task:failed and system:error.
	Err string `json:"error,omitempty"`
}

// WorkerEvent is the payload carried by worker lifecycle events.
type WorkerEvent struct {
	// WorkerID is the worker the event concerns.
	WorkerID string `json:"worker_id"`
	// Name is the worker's human-readable name.
	Name string `json:"name,omitempty"`
	// Capabilities lists the worker's declared capabilities.
	Capabilities []string `json:"capabilities,omitempty"`
}
