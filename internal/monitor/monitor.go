// Package monitor provides a read-only periodic poller over the
// orchestrator's status and the event-bus history. It observes and
// reports; it never influences dispatch.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/skovali/conductor/internal/bus"
	"github.com/skovali/conductor/internal/orchestrator"
	"github.com/skovali/conductor/pkg/models"
)

// DefaultInterval is the poll period when none is configured.
const DefaultInterval = 5 * time.Second

// StatusSource is the read side of an orchestrator.
type StatusSource interface {
	Status() orchestrator.Status
	History(filter bus.HistoryFilter) []bus.Event
}

// Snapshot is one observed poll of the system.
type Snapshot struct {
	// Time is when the poll ran.
	Time time.Time `json:"time"`
	// Status is the orchestrator snapshot.
	Status orchestrator.Status `json:"status"`
	// RecentEvents counts bus events observed since the previous poll.
	RecentEvents int `json:"recent_events"`
}

// Monitor polls a StatusSource on a fixed interval.
type Monitor struct {
	source   StatusSource
	interval time.Duration
	logger   *orchestrator.DebugLogger

	// publishBus, when set, receives a monitor:snapshot event per poll.
	publishBus *bus.Bus

	mu       sync.Mutex
	latest   *Snapshot
	lastPoll time.Time
	polls    uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithInterval sets the poll period. Non-positive values keep the
// default.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger writes one line per poll to the debug logger.
func WithLogger(l *orchestrator.DebugLogger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithSnapshotEvents publishes a monitor:snapshot event on b per poll.
// Off by default so the monitor leaves no trace on the bus.
func WithSnapshotEvents(b *bus.Bus) Option {
	return func(m *Monitor) { m.publishBus = b }
}

// New creates a Monitor over the given source.
func New(source StatusSource, opts ...Option) *Monitor {
	m := &Monitor{
		source:   source,
		interval: DefaultInterval,
		logger:   orchestrator.NopLogger(),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins polling in a background goroutine until Stop is called
// or ctx is cancelled. The first poll runs immediately.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.poll(ctx)
		for {
			select {
			case <-ticker.C:
				m.poll(ctx)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts polling and waits for the poll goroutine to exit.
// Idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.done
}

// poll takes one snapshot.
func (m *Monitor) poll(ctx context.Context) {
	now := time.Now()

	m.mu.Lock()
	since := m.lastPoll
	m.mu.Unlock()

	st := m.source.Status()
	recent := len(m.source.History(bus.HistoryFilter{Since: since}))

	snap := &Snapshot{
		Time:         now,
		Status:       st,
		RecentEvents: recent,
	}

	m.mu.Lock()
	m.latest = snap
	m.lastPoll = now
	m.polls++
	m.mu.Unlock()

	m.logger.Log("monitor: workers=%d pending=%d active=%d processed=%d failed=%d recent=%d",
		len(st.Workers), st.PendingTasks, st.ActiveDispatches, st.Processed, st.Failed, recent)

	if m.publishBus != nil {
		m.publishBus.Emit(ctx, models.EventMonitorSnapshot, *snap)
	}
}

// Latest returns the most recent snapshot, or false before the first
// poll completes.
func (m *Monitor) Latest() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return Snapshot{}, false
	}
	return *m.latest, true
}

// Polls returns the number of completed polls.
func (m *Monitor) Polls() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}
