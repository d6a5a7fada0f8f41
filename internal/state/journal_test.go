package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/skovali/conductor/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestDB_MigrateIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestDB_AppendAndRecentEvents(t *testing.T) {
	db := openTestDB(t)

	events := []EventRecord{
		{Type: models.EventTaskCreated, TaskID: "t-1", TaskType: "echo"},
		{Type: models.EventTaskAssigned, TaskID: "t-1", TaskType: "echo", WorkerID: "w-1"},
		{Type: models.EventTaskCompleted, TaskID: "t-1", TaskType: "echo", WorkerID: "w-1", Duration: 250 * time.Millisecond},
	}
	for _, rec := range events {
		if err := db.AppendEvent(rec); err != nil {
			t.Fatalf("AppendEvent(%s) error = %v", rec.Type, err)
		}
	}

	got, err := db.RecentEvents(10)
	if err != nil {
		t.Fatalf("RecentEvents() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("RecentEvents() returned %d records, want 3", len(got))
	}
	// Newest first.
	if got[0].Type != models.EventTaskCompleted {
		t.Errorf("newest event type = %q, want %q", got[0].Type, models.EventTaskCompleted)
	}
	if got[0].Duration != 250*time.Millisecond {
		t.Errorf("duration = %v, want 250ms", got[0].Duration)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("created_at not populated on read")
	}
}

func TestDB_RecentEventsLimit(t *testing.T) {
	db := openTestDB(t)

	for i := 0; i < 5; i++ {
		if err := db.AppendEvent(EventRecord{Type: models.EventTaskCreated, TaskID: "t"}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.RecentEvents(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("RecentEvents(2) returned %d records", len(got))
	}
}

func TestDB_EventsByTask(t *testing.T) {
	db := openTestDB(t)

	seed := []EventRecord{
		{Type: models.EventTaskCreated, TaskID: "t-1"},
		{Type: models.EventTaskCreated, TaskID: "t-2"},
		{Type: models.EventTaskCompleted, TaskID: "t-1"},
	}
	for _, rec := range seed {
		if err := db.AppendEvent(rec); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.EventsByTask("t-1")
	if err != nil {
		t.Fatalf("EventsByTask() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("EventsByTask(t-1) returned %d records, want 2", len(got))
	}
	// Oldest first.
	if got[0].Type != models.EventTaskCreated || got[1].Type != models.EventTaskCompleted {
		t.Errorf("event order = %q, %q", got[0].Type, got[1].Type)
	}
}

func TestDB_CountEventsByType(t *testing.T) {
	db := openTestDB(t)

	for i := 0; i < 3; i++ {
		if err := db.AppendEvent(EventRecord{Type: models.EventTaskCreated}); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.AppendEvent(EventRecord{Type: models.EventTaskFailed}); err != nil {
		t.Fatal(err)
	}

	counts, err := db.CountEventsByType()
	if err != nil {
		t.Fatalf("CountEventsByType() error = %v", err)
	}
	if counts[models.EventTaskCreated] != 3 {
		t.Errorf("created count = %d, want 3", counts[models.EventTaskCreated])
	}
	if counts[models.EventTaskFailed] != 1 {
		t.Errorf("failed count = %d, want 1", counts[models.EventTaskFailed])
	}
}

func TestDB_WorkerSnapshotUpsert(t *testing.T) {
	db := openTestDB(t)

	status := models.WorkerStatus{
		ID:           "w-1",
		Name:         "echo",
		State:        models.StateIdle,
		Enabled:      true,
		Capabilities: []string{"echo", "reverse"},
		Stats: models.Stats{
			TasksCompleted:       2,
			TotalExecutionTime:   200 * time.Millisecond,
			AverageExecutionTime: 100 * time.Millisecond,
		},
	}
	if err := db.SaveWorkerSnapshot(status); err != nil {
		t.Fatalf("SaveWorkerSnapshot() error = %v", err)
	}

	// Second save for the same worker replaces the row.
	status.Stats.TasksCompleted = 3
	status.Stats.LastError = &models.ErrorRecord{Message: "boom", Time: time.Now()}
	status.State = models.StateError
	if err := db.SaveWorkerSnapshot(status); err != nil {
		t.Fatalf("SaveWorkerSnapshot() second error = %v", err)
	}

	snaps, err := db.ListWorkerSnapshots()
	if err != nil {
		t.Fatalf("ListWorkerSnapshots() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("ListWorkerSnapshots() returned %d rows, want 1", len(snaps))
	}

	got := snaps[0]
	if got.WorkerID != "w-1" || got.Name != "echo" {
		t.Errorf("identity = %q/%q", got.WorkerID, got.Name)
	}
	if got.State != models.StateError {
		t.Errorf("state = %q, want %q", got.State, models.StateError)
	}
	if got.TasksCompleted != 3 {
		t.Errorf("tasks completed = %d, want 3", got.TasksCompleted)
	}
	if got.LastError != "boom" {
		t.Errorf("last error = %q, want %q", got.LastError, "boom")
	}
	if len(got.Capabilities) != 2 || got.Capabilities[0] != "echo" {
		t.Errorf("capabilities = %v", got.Capabilities)
	}
	if got.AverageTime != 100*time.Millisecond {
		t.Errorf("average = %v, want 100ms", got.AverageTime)
	}
	if got.TakenAt.IsZero() {
		t.Error("taken_at not populated")
	}
}

func TestDB_ListWorkerSnapshotsOrder(t *testing.T) {
	db := openTestDB(t)

	for _, id := range []string{"w-b", "w-a", "w-c"} {
		if err := db.SaveWorkerSnapshot(models.WorkerStatus{ID: id, State: models.StateIdle}); err != nil {
			t.Fatal(err)
		}
	}

	snaps, err := db.ListWorkerSnapshots()
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 3 {
		t.Fatalf("rows = %d, want 3", len(snaps))
	}
	for i, want := range []string{"w-a", "w-b", "w-c"} {
		if snaps[i].WorkerID != want {
			t.Errorf("snaps[%d] = %q, want %q", i, snaps[i].WorkerID, want)
		}
	}
}

func TestProjectDBPath(t *testing.T) {
	got := ProjectDBPath("/tmp/proj")
	want := filepath.Join("/tmp/proj", ".conductor", "state.db")
	if got != want {
		t.Errorf("ProjectDBPath() = %q, want %q", got, want)
	}
}
