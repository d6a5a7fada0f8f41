// Package orchestrator coordinates capability-declaring workers.
//
// The orchestrator package provides functionality for:
//   - Registry management: registering and unregistering workers
//   - Task dispatch: routing each task to the best-suited idle worker
//   - Timeout enforcement: bounding how long a dispatch waits
//   - Introspection: aggregate counters and per-worker status snapshots
//
// Dispatch selects among registered workers that are enabled, not in the
// error state, and declare the task's type as a capability. Idle workers
// rank ahead of busy ones; ties fall to the lower historical average
// execution time, then to registration order. There is no queueing: a
// dispatch with no eligible worker fails immediately, and a dispatch
// that lands on a busy worker is rejected rather than held.
//
// Example usage:
//
//	eventBus := bus.New(bus.DefaultHistoryCapacity)
//	orch := orchestrator.New(eventBus, orchestrator.WithDispatchTimeout(10*time.Second))
//	_ = orch.Register(ctx, worker.NewFunc("echo-1", "echo", []string{"echo"}, run))
//	res, err := orch.Dispatch(ctx, models.Task{Type: "echo", Data: "x"})
package orchestrator
