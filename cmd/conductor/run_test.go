package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCollectTasks_Args(t *testing.T) {
	tasks, err := collectTasks([]string{"echo:hello", "sleep:500ms", "reverse:a:b"})
	if err != nil {
		t.Fatalf("collectTasks() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("tasks = %d, want 3", len(tasks))
	}
	if tasks[0].Type != "echo" || tasks[0].Data != "hello" {
		t.Errorf("tasks[0] = %+v", tasks[0])
	}
	// Only the first colon splits; data may contain more.
	if tasks[2].Type != "reverse" || tasks[2].Data != "a:b" {
		t.Errorf("tasks[2] = %+v", tasks[2])
	}
}

func TestCollectTasks_Invalid(t *testing.T) {
	for _, arg := range []string{"nodata", ":missing-type"} {
		if _, err := collectTasks([]string{arg}); err == nil {
			t.Errorf("collectTasks(%q) did not error", arg)
		}
	}
}

func TestReadTaskFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	content := `[{"type": "echo", "data": "hi"}, {"type": "sleep", "data": "1s"}]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	tasks, err := readTaskFile(path)
	if err != nil {
		t.Fatalf("readTaskFile() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(tasks))
	}
	if tasks[1].Type != "sleep" || tasks[1].Data != "1s" {
		t.Errorf("tasks[1] = %+v", tasks[1])
	}
}

func TestReadTaskFile_MissingType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	if err := os.WriteFile(path, []byte(`[{"data": "hi"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readTaskFile(path); err == nil {
		t.Error("expected error for task without type")
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{3 * time.Hour, "3h"},
		{49 * time.Hour, "2d"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.d); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
