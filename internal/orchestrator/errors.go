package orchestrator

import "errors"

var (
	// ErrDuplicateWorker is returned when registering a worker whose ID
	// is already present in the registry.
	ErrDuplicateWorker = errors.New("worker already registered")
	// ErrWorkerNotFound is returned for operations naming an unknown
	// worker ID.
	ErrWorkerNotFound = errors.New("worker not found")
	// ErrNoCapableWorker is returned when no registered worker is
	// eligible for a task's type. The core performs no queueing or
	// backoff; the caller may resubmit.
	ErrNoCapableWorker = errors.New("no capable worker for task type")
	// ErrDuplicateTask is returned when a task's ID collides with a
	// concurrently live task.
	ErrDuplicateTask = errors.New("duplicate task id")
	// ErrInvalidTask is returned for tasks missing a type.
	ErrInvalidTask = errors.New("task type is required")
	// ErrInvalidPayload is returned when a task's payload fails its
	// registered per-type validator.
	ErrInvalidPayload = errors.New("invalid task payload")
	// ErrDispatchTimeout is returned when a dispatch stops waiting for a
	// worker. The worker's own execution is not preempted beyond
	// context cancellation; it settles independently.
	ErrDispatchTimeout = errors.New("dispatch timed out")
)
