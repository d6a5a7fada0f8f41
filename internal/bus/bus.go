// Package bus provides the process-wide publish/subscribe hub used for
// cross-component signaling. Listeners fire sequentially in priority
// order, and a bounded history of recent events is retained for
// introspection.
package bus

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryCapacity is the number of events retained when no
// explicit capacity is configured.
const DefaultHistoryCapacity = 100

// Event is an immutable record published on the bus. Once emitted it is
// retained only in the bounded history buffer.
type Event struct {
	// Type is the event type string. Hierarchical naming (e.g.
	// "task:created") is convention only; no wildcard matching exists.
	Type string `json:"type"`
	// Data is the event payload.
	Data any `json:"data,omitempty"`
	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
}

// Handler consumes events. A returned error is logged and isolated; it
// never aborts delivery to later listeners and never reaches the emitter.
type Handler func(ctx context.Context, evt Event) error

// listener is one registration for an event type.
type listener struct {
	id       string
	handler  Handler
	once     bool
	priority int
	// seq breaks priority ties by registration order, so repeated emits
	// see the same ordering.
	seq uint64
}

// SubscribeOption customizes a single subscription.
type SubscribeOption func(*listener)

// WithOnce removes the listener automatically after it fires once.
func WithOnce() SubscribeOption {
	return func(l *listener) { l.once = true }
}

// WithPriority sets the listener priority. Higher priorities fire first
// within the same event type; the default is 0.
func WithPriority(p int) SubscribeOption {
	return func(l *listener) { l.priority = p }
}

// WithListenerID overrides the generated listener ID so the caller can
// unsubscribe by ID later.
func WithListenerID(id string) SubscribeOption {
	return func(l *listener) { l.id = id }
}

// Bus is the publish/subscribe hub. The zero value is not usable; use New.
type Bus struct {
	mu        sync.Mutex
	listeners map[string][]*listener
	history   *ring
	seq       uint64
	emitted   uint64
}

// New creates a Bus retaining up to historyCapacity events.
// A capacity <= 0 falls back to DefaultHistoryCapacity.
func New(historyCapacity int) *Bus {
	if historyCapacity <= 0 {
		historyCapacity = DefaultHistoryCapacity
	}
	return &Bus{
		listeners: make(map[string][]*listener),
		history:   newRing(historyCapacity),
	}
}

// Subscribe registers a handler for an event type and returns an
// unsubscribe function. The returned function is idempotent.
func (b *Bus) Subscribe(eventType string, h Handler, opts ...SubscribeOption) func() {
	l := &listener{
		id:      uuid.New().String()[:8],
		handler: h,
	}
	for _, opt := range opts {
		opt(l)
	}

	b.mu.Lock()
	l.seq = b.seq
	b.seq++
	b.listeners[eventType] = insertSorted(b.listeners[eventType], l)
	b.mu.Unlock()

	id := l.id
	return func() { b.Unsubscribe(eventType, id) }
}

// Unsubscribe removes a listener by ID. Removing an unknown ID is a
// no-op. When a type's listener list becomes empty, the type entry is
// dropped to keep the map tidy.
func (b *Bus) Unsubscribe(eventType, listenerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(eventType, listenerID)
}

// removeLocked removes one listener. Callers must hold b.mu.
func (b *Bus) removeLocked(eventType, listenerID string) {
	ls := b.listeners[eventType]
	for i, l := range ls {
		if l.id == listenerID {
			ls = append(ls[:i], ls[i+1:]...)
			if len(ls) == 0 {
				delete(b.listeners, eventType)
			} else {
				b.listeners[eventType] = ls
			}
			return
		}
	}
}

// insertSorted keeps listeners ordered by descending priority, then by
// registration sequence for a stable tie-break.
func insertSorted(ls []*listener, l *listener) []*listener {
	i := sort.Search(len(ls), func(i int) bool {
		if ls[i].priority != l.priority {
			return ls[i].priority < l.priority
		}
		return ls[i].seq > l.seq
	})
	ls = append(ls, nil)
	copy(ls[i+1:], ls[i:])
	ls[i] = l
	return ls
}

// Emit publishes an event. Listeners registered for the type at the time
// of the call are invoked one at a time in priority order; each handler
// runs to completion before the next starts. A failing or panicking
// handler is logged and skipped, never aborting delivery. The event is
// appended to history regardless of listener count.
func (b *Bus) Emit(ctx context.Context, eventType string, data any) {
	evt := Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	b.mu.Lock()
	b.history.push(evt)
	b.emitted++
	current := make([]*listener, len(b.listeners[eventType]))
	copy(current, b.listeners[eventType])
	b.mu.Unlock()

	for _, l := range current {
		b.invoke(ctx, l, evt)
	}

	// Drop one-shot listeners that fired.
	b.mu.Lock()
	for _, l := range current {
		if l.once {
			b.removeLocked(eventType, l.id)
		}
	}
	b.mu.Unlock()
}

// invoke runs a single handler, isolating errors and panics.
func (b *Bus) invoke(ctx context.Context, l *listener, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[bus] listener %s panicked on %s: %v", l.id, evt.Type, r)
		}
	}()
	if err := l.handler(ctx, evt); err != nil {
		log.Printf("[bus] listener %s failed on %s: %v", l.id, evt.Type, err)
	}
}

// HistoryFilter narrows the events returned by History.
// Zero-value fields match everything.
type HistoryFilter struct {
	// Type keeps only events of this type.
	Type string
	// Since keeps only events emitted at or after this time.
	Since time.Time
	// Limit caps the number of events returned, keeping the most recent.
	Limit int
}

// History returns retained events, oldest first, matching the filter.
// The returned slice is a copy; History never mutates bus state.
func (b *Bus) History(filter HistoryFilter) []Event {
	b.mu.Lock()
	all := b.history.snapshot()
	b.mu.Unlock()

	out := make([]Event, 0, len(all))
	for _, evt := range all {
		if filter.Type != "" && evt.Type != filter.Type {
			continue
		}
		if !filter.Since.IsZero() && evt.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, evt)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

// Stats reports bus-wide counters for introspection.
type Stats struct {
	// Listeners is the total number of registered listeners.
	Listeners int `json:"listeners"`
	// EventTypes is the number of distinct types with listeners.
	EventTypes int `json:"event_types"`
	// HistorySize is the number of events currently retained.
	HistorySize int `json:"history_size"`
	// HistoryCapacity is the configured retention bound.
	HistoryCapacity int `json:"history_capacity"`
	// Emitted is the total number of events emitted since creation.
	Emitted uint64 `json:"emitted"`
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, ls := range b.listeners {
		total += len(ls)
	}
	return Stats{
		Listeners:       total,
		EventTypes:      len(b.listeners),
		HistorySize:     b.history.len(),
		HistoryCapacity: b.history.cap(),
		Emitted:         b.emitted,
	}
}
