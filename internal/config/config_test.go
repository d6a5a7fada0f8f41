package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Dispatch.Timeout != 30*time.Second {
		t.Errorf("dispatch timeout = %v, want 30s", cfg.Dispatch.Timeout)
	}
	if cfg.Dispatch.MaxConcurrentTasks != 0 {
		t.Errorf("max concurrent = %d, want 0", cfg.Dispatch.MaxConcurrentTasks)
	}
	if cfg.Events.HistoryCapacity != 100 {
		t.Errorf("history capacity = %d, want 100", cfg.Events.HistoryCapacity)
	}
	if cfg.Monitor.Interval != 5*time.Second {
		t.Errorf("monitor interval = %v, want 5s", cfg.Monitor.Interval)
	}
	if cfg.Monitor.Enabled {
		t.Error("monitor enabled by default")
	}
	if !cfg.State.Enabled {
		t.Error("state disabled by default")
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
dispatch:
  timeout: 45s
  max_concurrent_tasks: 8
events:
  history_capacity: 250
monitor:
  enabled: true
  interval: 2s
  publish_snapshots: true
state:
  enabled: false
log:
  debug_file: /tmp/conductor-debug.log
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.Dispatch.Timeout != 45*time.Second {
		t.Errorf("dispatch timeout = %v, want 45s", cfg.Dispatch.Timeout)
	}
	if cfg.Dispatch.MaxConcurrentTasks != 8 {
		t.Errorf("max concurrent = %d, want 8", cfg.Dispatch.MaxConcurrentTasks)
	}
	if cfg.Events.HistoryCapacity != 250 {
		t.Errorf("history capacity = %d, want 250", cfg.Events.HistoryCapacity)
	}
	if !cfg.Monitor.Enabled || cfg.Monitor.Interval != 2*time.Second {
		t.Errorf("monitor = %+v", cfg.Monitor)
	}
	if !cfg.Monitor.PublishSnapshots {
		t.Error("publish_snapshots not read")
	}
	if cfg.State.Enabled {
		t.Error("state.enabled = true, want false")
	}
	if cfg.Log.DebugFile != "/tmp/conductor-debug.log" {
		t.Errorf("debug file = %q", cfg.Log.DebugFile)
	}
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("dispatch:\n  timeout: 10s\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.Dispatch.Timeout != 10*time.Second {
		t.Errorf("dispatch timeout = %v, want 10s", cfg.Dispatch.Timeout)
	}
	// Unset keys fall back to defaults.
	if cfg.Events.HistoryCapacity != 100 {
		t.Errorf("history capacity = %d, want default 100", cfg.Events.HistoryCapacity)
	}
	if cfg.Monitor.Interval != 5*time.Second {
		t.Errorf("monitor interval = %v, want default 5s", cfg.Monitor.Interval)
	}
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".conductor", "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	// Round-trips through the loader.
	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() of written default error = %v", err)
	}
	if cfg.Dispatch.Timeout != 30*time.Second {
		t.Errorf("written timeout = %v, want 30s", cfg.Dispatch.Timeout)
	}
	if cfg.Events.HistoryCapacity != 100 {
		t.Errorf("written history capacity = %d, want 100", cfg.Events.HistoryCapacity)
	}

	// Refuses to clobber.
	if err := WriteDefault(path); err == nil {
		t.Error("WriteDefault() over existing file did not error")
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("dispatch:\n  timeout: 10s\n"), 0644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan *Config, 4)
	if _, err := Watch(path, func(cfg *Config) { changed <- cfg }, nil); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("dispatch:\n  timeout: 20s\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changed:
		if cfg.Dispatch.Timeout != 20*time.Second {
			t.Errorf("reloaded timeout = %v, want 20s", cfg.Dispatch.Timeout)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload notification after file change")
	}
}
