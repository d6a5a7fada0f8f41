package models

import "time"

// Task represents a unit of work submitted for dispatch.
type Task struct {
	// ID is the unique identifier for this task.
	// Assigned by the orchestrator when the caller leaves it empty.
	ID string `json:"id"`
	// Type is the capability string that selects a worker.
	Type string `json:"type"`
	// Data is the caller-supplied payload. Its shape is task-type specific
	// and validated at the dispatch boundary, not inside workers.
	Data any `json:"data,omitempty"`
	// Meta carries optional caller-supplied fields that ride along with
	// the task but are not interpreted by the core.
	Meta map[string]string `json:"meta,omitempty"`
	// SubmittedAt is when the orchestrator accepted the task.
	SubmittedAt time.Time `json:"submitted_at"`
}

// Result holds the outcome of a successful task execution.
type Result struct {
	// TaskID is the ID of the completed task.
	TaskID string `json:"task_id"`
	// WorkerID is the ID of the worker that executed the task.
	WorkerID string `json:"worker_id"`
	// Output is whatever the worker returned.
	Output any `json:"output,omitempty"`
	// Duration is the measured execution time.
	Duration time.Duration `json:"duration"`
}
