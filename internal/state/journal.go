package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/skovali/conductor/pkg/models"
)

// EventRecord is one persisted lifecycle event.
type EventRecord struct {
	ID        int64         `json:"id"`
	Type      string        `json:"type"`
	TaskID    string        `json:"task_id,omitempty"`
	TaskType  string        `json:"task_type,omitempty"`
	WorkerID  string        `json:"worker_id,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Payload   string        `json:"payload,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// AppendEvent persists one event row.
func (db *DB) AppendEvent(rec EventRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := db.Exec(`
		INSERT INTO events (type, task_id, task_type, worker_id, error, duration_ms, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Type, rec.TaskID, rec.TaskType, rec.WorkerID, rec.Error,
		rec.Duration.Milliseconds(), rec.Payload, formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (db *DB) RecentEvents(limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query(`
		SELECT id, type, task_id, task_type, worker_id, error, duration_ms, payload, created_at
		FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// EventsByTask returns all events for a task, oldest first.
func (db *DB) EventsByTask(taskID string) ([]EventRecord, error) {
	rows, err := db.Query(`
		SELECT id, type, task_id, task_type, worker_id, error, duration_ms, payload, created_at
		FROM events WHERE task_id = ? ORDER BY id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query task events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountEventsByType returns a type -> count summary of the journal.
func (db *DB) CountEventsByType() (map[string]int64, error) {
	rows, err := db.Query(`SELECT type, COUNT(*) FROM events GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[typ] = n
	}
	return out, rows.Err()
}

func scanEvent(rows *sql.Rows) (EventRecord, error) {
	var rec EventRecord
	var taskID, taskType, workerID, errMsg, payload, createdAt sql.NullString
	var durationMS int64

	if err := rows.Scan(&rec.ID, &rec.Type, &taskID, &taskType, &workerID,
		&errMsg, &durationMS, &payload, &createdAt); err != nil {
		return rec, fmt.Errorf("scan event: %w", err)
	}

	rec.TaskID = taskID.String
	rec.TaskType = taskType.String
	rec.WorkerID = workerID.String
	rec.Error = errMsg.String
	rec.Payload = payload.String
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	if createdAt.Valid {
		t, err := parseTime(createdAt.String)
		if err != nil {
			return rec, fmt.Errorf("parse event time: %w", err)
		}
		rec.CreatedAt = t
	}
	return rec, nil
}

// WorkerSnapshot is one persisted per-worker status row, replaced on
// every write so the table always holds the latest view.
type WorkerSnapshot struct {
	WorkerID       string             `json:"worker_id"`
	Name           string             `json:"name,omitempty"`
	State          models.WorkerState `json:"state"`
	Enabled        bool               `json:"enabled"`
	Capabilities   []string           `json:"capabilities,omitempty"`
	TasksCompleted int64              `json:"tasks_completed"`
	TasksFailed    int64              `json:"tasks_failed"`
	TotalTime      time.Duration      `json:"total_time"`
	AverageTime    time.Duration      `json:"average_time"`
	LastError      string             `json:"last_error,omitempty"`
	TakenAt        time.Time          `json:"taken_at"`
}

// SaveWorkerSnapshot upserts the latest status of one worker.
func (db *DB) SaveWorkerSnapshot(ws models.WorkerStatus) error {
	lastError := ""
	if ws.Stats.LastError != nil {
		lastError = ws.Stats.LastError.Message
	}
	caps, err := json.Marshal(ws.Capabilities)
	if err != nil {
		return fmt.Errorf("marshal capabilities: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO worker_snapshots
			(worker_id, name, state, enabled, capabilities, tasks_completed,
			 tasks_failed, total_ms, average_ms, last_error, taken_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(worker_id) DO UPDATE SET
			name = excluded.name,
			state = excluded.state,
			enabled = excluded.enabled,
			capabilities = excluded.capabilities,
			tasks_completed = excluded.tasks_completed,
			tasks_failed = excluded.tasks_failed,
			total_ms = excluded.total_ms,
			average_ms = excluded.average_ms,
			last_error = excluded.last_error,
			taken_at = excluded.taken_at`,
		ws.ID, ws.Name, string(ws.State), boolToInt(ws.Enabled), string(caps),
		ws.Stats.TasksCompleted, ws.Stats.TasksFailed,
		ws.Stats.TotalExecutionTime.Milliseconds(),
		ws.Stats.AverageExecutionTime.Milliseconds(),
		lastError, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save worker snapshot: %w", err)
	}
	return nil
}

// ListWorkerSnapshots returns the latest snapshot of every known
// worker, ordered by worker ID.
func (db *DB) ListWorkerSnapshots() ([]WorkerSnapshot, error) {
	rows, err := db.Query(`
		SELECT worker_id, name, state, enabled, capabilities, tasks_completed,
		       tasks_failed, total_ms, average_ms, last_error, taken_at
		FROM worker_snapshots ORDER BY worker_id`)
	if err != nil {
		return nil, fmt.Errorf("query worker snapshots: %w", err)
	}
	defer rows.Close()

	var out []WorkerSnapshot
	for rows.Next() {
		var ws WorkerSnapshot
		var state, capsJSON, lastError, takenAt sql.NullString
		var name sql.NullString
		var enabled int
		var totalMS, avgMS int64

		if err := rows.Scan(&ws.WorkerID, &name, &state, &enabled, &capsJSON,
			&ws.TasksCompleted, &ws.TasksFailed, &totalMS, &avgMS,
			&lastError, &takenAt); err != nil {
			return nil, fmt.Errorf("scan worker snapshot: %w", err)
		}

		ws.Name = name.String
		ws.State = models.WorkerState(state.String)
		ws.Enabled = enabled != 0
		ws.LastError = lastError.String
		ws.TotalTime = time.Duration(totalMS) * time.Millisecond
		ws.AverageTime = time.Duration(avgMS) * time.Millisecond
		if capsJSON.Valid && strings.TrimSpace(capsJSON.String) != "" {
			if err := json.Unmarshal([]byte(capsJSON.String), &ws.Capabilities); err != nil {
				return nil, fmt.Errorf("unmarshal capabilities: %w", err)
			}
		}
		if takenAt.Valid {
			t, err := parseTime(takenAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse snapshot time: %w", err)
			}
			ws.TakenAt = t
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// Exec executes a query that doesn't return rows.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Query(query, args...)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
