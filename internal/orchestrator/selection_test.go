package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/skovali/conductor/internal/worker"
	"github.com/skovali/conductor/pkg/models"
)

// sleepWorker returns a worker whose runs take roughly d, recording
// which worker executed into ran.
func sleepWorker(id string, d time.Duration, ran *[]string) *worker.Base {
	return worker.NewFunc(id, id, []string{"job"}, func(_ context.Context, _ models.Task) (any, error) {
		*ran = append(*ran, id)
		time.Sleep(d)
		return nil, nil
	})
}

func TestSelection_PrefersFasterHistory(t *testing.T) {
	o, _ := newTestOrchestrator()
	ctx := context.Background()

	var ran []string
	slow := sleepWorker("slow", 40*time.Millisecond, &ran)
	fast := sleepWorker("fast", time.Millisecond, &ran)
	if err := o.Register(ctx, slow); err != nil {
		t.Fatal(err)
	}
	if err := o.Register(ctx, fast); err != nil {
		t.Fatal(err)
	}

	// Warm up both histories directly so averages differ.
	if _, err := slow.Execute(ctx, models.Task{ID: "warm-slow", Type: "job"}); err != nil {
		t.Fatal(err)
	}
	if _, err := fast.Execute(ctx, models.Task{ID: "warm-fast", Type: "job"}); err != nil {
		t.Fatal(err)
	}

	ran = ran[:0]
	if _, err := o.Dispatch(ctx, models.Task{Type: "job"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(ran) != 1 || ran[0] != "fast" {
		t.Errorf("dispatch ran %v, want [fast]", ran)
	}
}

func TestSelection_RegistrationOrderBreaksTies(t *testing.T) {
	o, _ := newTestOrchestrator()
	ctx := context.Background()

	var ran []string
	first := sleepWorker("first", 0, &ran)
	second := sleepWorker("second", 0, &ran)
	if err := o.Register(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := o.Register(ctx, second); err != nil {
		t.Fatal(err)
	}

	// Both idle with identical (zero) averages: registration order wins.
	if _, err := o.Dispatch(ctx, models.Task{Type: "job"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(ran) != 1 || ran[0] != "first" {
		t.Errorf("dispatch ran %v, want [first]", ran)
	}
}

func TestSelection_IdleBeforeBusy(t *testing.T) {
	o, _ := newTestOrchestrator()
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	busy := worker.NewFunc("busy", "busy", []string{"job"}, func(_ context.Context, _ models.Task) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	var ran []string
	idle := sleepWorker("idle", 0, &ran)

	// Registered first and with a faster (zero) history, the busy worker
	// would otherwise win every comparison.
	if err := o.Register(ctx, busy); err != nil {
		t.Fatal(err)
	}
	if err := o.Register(ctx, idle); err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := o.Dispatch(ctx, models.Task{Type: "job"})
		errCh <- err
	}()
	<-started

	if _, err := o.Dispatch(ctx, models.Task{Type: "job"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(ran) != 1 || ran[0] != "idle" {
		t.Errorf("dispatch ran %v, want [idle]", ran)
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("first Dispatch() error = %v", err)
	}
}

func TestSelection_ErroredWorkerExcluded(t *testing.T) {
	o, _ := newTestOrchestrator()
	ctx := context.Background()

	failing := worker.NewFunc("failing", "failing", []string{"job"}, func(_ context.Context, _ models.Task) (any, error) {
		return nil, context.DeadlineExceeded
	})
	var ran []string
	healthy := sleepWorker("healthy", 0, &ran)
	if err := o.Register(ctx, failing); err != nil {
		t.Fatal(err)
	}
	if err := o.Register(ctx, healthy); err != nil {
		t.Fatal(err)
	}

	// Park the first worker in the error state.
	if _, err := o.Dispatch(ctx, models.Task{Type: "job"}); err == nil {
		t.Fatal("expected first dispatch to fail")
	}

	ran = ran[:0]
	for i := 0; i < 3; i++ {
		if _, err := o.Dispatch(ctx, models.Task{Type: "job"}); err != nil {
			t.Fatalf("Dispatch %d error = %v", i, err)
		}
	}
	for _, id := range ran {
		if id != "healthy" {
			t.Errorf("errored worker was selected: ran %v", ran)
		}
	}
}

func TestHasCapability(t *testing.T) {
	tests := []struct {
		name string
		caps []string
		typ  string
		want bool
	}{
		{"present", []string{"a", "b"}, "b", true},
		{"absent", []string{"a", "b"}, "c", false},
		{"empty set", nil, "a", false},
		{"exact match only", []string{"task:a"}, "task", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasCapability(tt.caps, tt.typ); got != tt.want {
				t.Errorf("hasCapability(%v, %q) = %v, want %v", tt.caps, tt.typ, got, tt.want)
			}
		})
	}
}
