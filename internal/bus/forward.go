package bus

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Forwarder bridges bus subscriptions onto a buffered channel so that
// channel consumers (e.g. a dashboard) can observe events without
// registering blocking handlers. When the channel is full the forwarder
// waits briefly for the consumer to drain, then drops the event and
// counts the drop.
type Forwarder struct {
	events       chan Event
	droppedCount atomic.Uint64

	mu      sync.RWMutex
	closed  bool
	cancels []func()
}

// NewForwarder subscribes to the given event types on b and forwards
// matching events into a channel with the given buffer size.
func NewForwarder(b *Bus, bufferSize int, eventTypes ...string) *Forwarder {
	f := &Forwarder{
		events: make(chan Event, bufferSize),
	}
	for _, et := range eventTypes {
		f.cancels = append(f.cancels, b.Subscribe(et, f.forward))
	}
	return f
}

// forward is the bus handler. It never returns an error; a full channel
// is handled by dropping the event.
func (f *Forwarder) forward(_ context.Context, evt Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil
	}

	// Try immediate send first.
	select {
	case f.events <- evt:
		return nil
	default:
	}

	// Channel full; give the consumer a short window to drain.
	select {
	case f.events <- evt:
	case <-time.After(100 * time.Millisecond):
		count := f.droppedCount.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam
			log.Printf("[bus] forwarder channel full, dropped event (total dropped: %d): type=%s", count, evt.Type)
		}
	}
	return nil
}

// Events returns the read-only channel of forwarded events.
func (f *Forwarder) Events() <-chan Event {
	return f.events
}

// DroppedCount returns the total number of events dropped so far.
func (f *Forwarder) DroppedCount() uint64 {
	return f.droppedCount.Load()
}

// Close unsubscribes from the bus and closes the channel. Safe to call
// once; events emitted after Close are not forwarded.
func (f *Forwarder) Close() {
	for _, cancel := range f.cancels {
		cancel()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.events)
}
