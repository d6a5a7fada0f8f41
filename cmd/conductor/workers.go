package main

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/skovali/conductor/internal/orchestrator"
	"github.com/skovali/conductor/internal/worker"
	"github.com/skovali/conductor/pkg/models"
)

// registerBuiltins installs the built-in demo workers. They exercise
// the full dispatch surface: instant work, timed work, and failures.
func registerBuiltins(ctx context.Context, o *orchestrator.Orchestrator) error {
	workers := []*worker.Base{
		worker.NewFunc("echo-1", "echo", []string{"echo"}, runEcho),
		worker.NewFunc("text-1", "text", []string{"reverse", "upper"}, runText),
		worker.NewFunc("sleep-1", "sleep", []string{"sleep"}, runSleep),
		worker.NewFunc("flaky-1", "flaky", []string{"flaky"}, newFlaky()),
	}

	for _, w := range workers {
		if err := o.Register(ctx, w); err != nil {
			return fmt.Errorf("register %s: %w", w.ID(), err)
		}
	}

	// Sleep payloads must be parseable up front so a bad duration is
	// rejected before a worker is tied up.
	o.RegisterValidator("sleep", func(data any) error {
		s, ok := data.(string)
		if !ok {
			return fmt.Errorf("want a duration string, got %T", data)
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("parse duration %q: %v", s, err)
		}
		return nil
	})

	return nil
}

func runEcho(_ context.Context, task models.Task) (any, error) {
	return task.Data, nil
}

func runText(_ context.Context, task models.Task) (any, error) {
	s, ok := task.Data.(string)
	if !ok {
		return nil, fmt.Errorf("want string data, got %T", task.Data)
	}

	switch task.Type {
	case "reverse":
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes), nil
	case "upper":
		return strings.ToUpper(s), nil
	default:
		return nil, fmt.Errorf("unhandled task type %q", task.Type)
	}
}

func runSleep(ctx context.Context, task models.Task) (any, error) {
	d, err := time.ParseDuration(task.Data.(string))
	if err != nil {
		return nil, err
	}

	select {
	case <-time.After(d):
		return fmt.Sprintf("slept %s", d), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// newFlaky returns a run func that fails every third call.
func newFlaky() worker.RunFunc {
	var calls atomic.Int64
	return func(_ context.Context, task models.Task) (any, error) {
		if n := calls.Add(1); n%3 == 0 {
			return nil, fmt.Errorf("transient failure on call %d", n)
		}
		return task.Data, nil
	}
}
