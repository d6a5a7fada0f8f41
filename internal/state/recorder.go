package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/skovali/conductor/internal/bus"
	"github.com/skovali/conductor/pkg/models"
)

// recordedTypes are the lifecycle events the recorder journals.
var recordedTypes = []string{
	models.EventTaskCreated,
	models.EventTaskAssigned,
	models.EventTaskStarted,
	models.EventTaskCompleted,
	models.EventTaskFailed,
	models.EventWorkerRegistered,
	models.EventWorkerUnregistered,
	models.EventWorkerEnabled,
	models.EventWorkerDisabled,
	models.EventWorkerReset,
	models.EventSystemError,
}

// SnapshotFunc supplies the current per-worker statuses. The recorder
// calls it after terminal task events to keep the snapshot table fresh.
type SnapshotFunc func() []models.WorkerStatus

// Recorder subscribes to the bus and journals lifecycle events into a
// Store. It is the repository's own use of the persistence boundary:
// the core emits, the recorder serializes on its own schedule.
type Recorder struct {
	store    Store
	snapshot SnapshotFunc
	cancels  []func()
}

// RecorderOption customizes a Recorder.
type RecorderOption func(*Recorder)

// WithSnapshots refreshes the worker_snapshots table after each
// terminal task event using fn.
func WithSnapshots(fn SnapshotFunc) RecorderOption {
	return func(r *Recorder) { r.snapshot = fn }
}

// NewRecorder subscribes to all lifecycle event types on b. Low
// priority keeps the journal write after any reactive listeners.
func NewRecorder(store Store, b *bus.Bus, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store}
	for _, opt := range opts {
		opt(r)
	}
	for _, et := range recordedTypes {
		r.cancels = append(r.cancels, b.Subscribe(et, r.record, bus.WithPriority(-100)))
	}
	return r
}

// record is the bus handler. Errors bubble back to the bus, which logs
// and isolates them; a journal failure never disturbs dispatch.
func (r *Recorder) record(_ context.Context, evt bus.Event) error {
	rec := EventRecord{
		Type:      evt.Type,
		CreatedAt: evt.Timestamp,
	}

	switch data := evt.Data.(type) {
	case models.TaskEvent:
		rec.TaskID = data.TaskID
		rec.TaskType = data.TaskType
		rec.WorkerID = data.WorkerID
		rec.Error = data.Err
		rec.Duration = data.Duration
	case models.WorkerEvent:
		rec.WorkerID = data.WorkerID
	}
	if evt.Data != nil {
		if payload, err := json.Marshal(evt.Data); err == nil {
			rec.Payload = string(payload)
		}
	}

	if err := r.store.AppendEvent(rec); err != nil {
		return fmt.Errorf("journal %s: %w", evt.Type, err)
	}

	if r.snapshot != nil && isTerminal(evt.Type) {
		for _, ws := range r.snapshot() {
			if err := r.store.SaveWorkerSnapshot(ws); err != nil {
				return fmt.Errorf("snapshot worker %s: %w", ws.ID, err)
			}
		}
	}
	return nil
}

// isTerminal reports whether the event ends a task's lifecycle.
func isTerminal(eventType string) bool {
	switch eventType {
	case models.EventTaskCompleted, models.EventTaskFailed, models.EventSystemError:
		return true
	default:
		return false
	}
}

// Close unsubscribes the recorder from the bus. The store is left open
// for the caller to close.
func (r *Recorder) Close() {
	for _, cancel := range r.cancels {
		cancel()
	}
	r.cancels = nil
}
