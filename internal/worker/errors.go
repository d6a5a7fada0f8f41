package worker

import "errors"

var (
	// ErrBusy is returned when Execute is called while a task is already
	// in flight. The caller is rejected, never queued.
	ErrBusy = errors.New("worker is busy")
	// ErrDisabled is returned when Execute is called on a worker whose
	// admission gate is closed.
	ErrDisabled = errors.New("worker is disabled")
	// ErrStopped is returned when Execute is called after Shutdown.
	ErrStopped = errors.New("worker is stopped")
	// ErrInvalidState is returned for operations that are not legal in
	// the worker's current lifecycle state.
	ErrInvalidState = errors.New("invalid worker state")
)
