package orchestrator

import (
	"github.com/skovali/conductor/internal/worker"
	"github.com/skovali/conductor/pkg/models"
)

// candidate is one worker considered for a task, captured as a snapshot
// so ranking reads a consistent view.
type candidate struct {
	worker worker.Worker
	status models.WorkerStatus
	order  uint64
}

// selectWorker picks the best-suited worker for a task type, or nil
// when none qualifies.
//
// Eligibility: enabled, not in the error state, and the task type is in
// the declared capability set. Ranking: idle before any other state,
// then lower historical average execution time, then registration
// order. A busy worker can win when nothing idle qualifies; its
// admission gate then rejects the dispatch with a busy error instead of
// queueing it.
func (o *Orchestrator) selectWorker(taskType string) worker.Worker {
	o.mu.RLock()
	candidates := make([]candidate, 0, len(o.workers))
	for _, reg := range o.workers {
		st := reg.worker.Status()
		if !st.Enabled || st.State == models.StateError {
			continue
		}
		if !hasCapability(st.Capabilities, taskType) {
			continue
		}
		candidates = append(candidates, candidate{
			worker: reg.worker,
			status: st,
			order:  reg.order,
		})
	}
	o.mu.RUnlock()

	var best *candidate
	for i := range candidates {
		c := &candidates[i]
		if best == nil || ranksBefore(c, best) {
			best = c
		}
	}
	if best == nil {
		return nil
	}
	return best.worker
}

// ranksBefore reports whether a should be chosen over b.
func ranksBefore(a, b *candidate) bool {
	aIdle := a.status.State == models.StateIdle
	bIdle := b.status.State == models.StateIdle
	if aIdle != bIdle {
		return aIdle
	}
	if a.status.Stats.AverageExecutionTime != b.status.Stats.AverageExecutionTime {
		return a.status.Stats.AverageExecutionTime < b.status.Stats.AverageExecutionTime
	}
	return a.order < b.order
}

func hasCapability(capabilities []string, taskType string) bool {
	for _, c := range capabilities {
		if c == taskType {
			return true
		}
	}
	return false
}
