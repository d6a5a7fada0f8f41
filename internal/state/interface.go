package state

import (
	"io"

	"github.com/skovali/conductor/pkg/models"
)

// Journal handles event persistence.
type Journal interface {
	AppendEvent(rec EventRecord) error
	RecentEvents(limit int) ([]EventRecord, error)
	EventsByTask(taskID string) ([]EventRecord, error)
	CountEventsByType() (map[string]int64, error)
}

// SnapshotStore handles per-worker status persistence.
type SnapshotStore interface {
	SaveWorkerSnapshot(ws models.WorkerStatus) error
	ListWorkerSnapshots() ([]WorkerSnapshot, error)
}

// Migrator handles database schema migrations. Separated so clients
// can depend on migration functionality alone.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store is the full persistence surface. The recorder and CLI work
// against this interface rather than the concrete SQLite type.
type Store interface {
	io.Closer
	Migrator
	Journal
	SnapshotStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store         = (*DB)(nil)
	_ Journal       = (*DB)(nil)
	_ SnapshotStore = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
)
