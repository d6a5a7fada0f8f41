package bus

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestBus_ListenerOrdering(t *testing.T) {
	b := New(10)
	ctx := context.Background()

	var order []string
	record := func(name string) Handler {
		return func(_ context.Context, _ Event) error {
			order = append(order, name)
			return nil
		}
	}

	// A and C share a priority; B is lower. Ties must keep registration
	// order, consistently across emits.
	b.Subscribe("tick", record("A"), WithPriority(5))
	b.Subscribe("tick", record("B"), WithPriority(1))
	b.Subscribe("tick", record("C"), WithPriority(5))

	for i := 0; i < 3; i++ {
		order = order[:0]
		b.Emit(ctx, "tick", nil)

		want := []string{"A", "C", "B"}
		if len(order) != len(want) {
			t.Fatalf("emit %d: got %d invocations, want %d", i, len(order), len(want))
		}
		for j := range want {
			if order[j] != want[j] {
				t.Errorf("emit %d: order[%d] = %q, want %q", i, j, order[j], want[j])
			}
		}
	}
}

func TestBus_SequentialDelivery(t *testing.T) {
	b := New(10)
	ctx := context.Background()

	var active, maxActive int
	slow := func(_ context.Context, _ Event) error {
		active++
		if active > maxActive {
			maxActive = active
		}
		time.Sleep(5 * time.Millisecond)
		active--
		return nil
	}

	for i := 0; i < 4; i++ {
		b.Subscribe("work", slow)
	}
	b.Emit(ctx, "work", nil)

	if maxActive != 1 {
		t.Errorf("max concurrent handlers = %d, want 1 (sequential delivery)", maxActive)
	}
}

func TestBus_OnceListenerRemovedAfterFiring(t *testing.T) {
	b := New(10)
	ctx := context.Background()

	count := 0
	b.Subscribe("ping", func(_ context.Context, _ Event) error {
		count++
		return nil
	}, WithOnce())

	b.Emit(ctx, "ping", nil)
	b.Emit(ctx, "ping", nil)

	if count != 1 {
		t.Errorf("once listener fired %d times, want 1", count)
	}
	if got := b.Stats().Listeners; got != 0 {
		t.Errorf("listeners after once fired = %d, want 0", got)
	}
}

func TestBus_ErrorIsolation(t *testing.T) {
	b := New(10)
	ctx := context.Background()

	fired := false
	b.Subscribe("boom", func(_ context.Context, _ Event) error {
		return errors.New("listener failure")
	}, WithPriority(10))
	b.Subscribe("boom", func(_ context.Context, _ Event) error {
		panic("listener panic")
	}, WithPriority(5))
	b.Subscribe("boom", func(_ context.Context, _ Event) error {
		fired = true
		return nil
	})

	b.Emit(ctx, "boom", nil)

	if !fired {
		t.Error("later listener did not fire after earlier listener error and panic")
	}
}

func TestBus_UnsubscribeIdempotent(t *testing.T) {
	b := New(10)
	ctx := context.Background()

	count := 0
	cancel := b.Subscribe("evt", func(_ context.Context, _ Event) error {
		count++
		return nil
	})

	cancel()
	cancel() // second call is a no-op
	b.Unsubscribe("evt", "no-such-id")

	b.Emit(ctx, "evt", nil)
	if count != 0 {
		t.Errorf("listener fired %d times after unsubscribe, want 0", count)
	}

	// Empty type entries are removed entirely.
	if got := b.Stats().EventTypes; got != 0 {
		t.Errorf("event types after unsubscribe = %d, want 0", got)
	}
}

func TestBus_UnsubscribeByExplicitID(t *testing.T) {
	b := New(10)
	ctx := context.Background()

	count := 0
	b.Subscribe("evt", func(_ context.Context, _ Event) error {
		count++
		return nil
	}, WithListenerID("observer-1"))

	b.Unsubscribe("evt", "observer-1")
	b.Emit(ctx, "evt", nil)

	if count != 0 {
		t.Errorf("listener fired %d times after Unsubscribe by ID, want 0", count)
	}
}

func TestBus_HistoryBound(t *testing.T) {
	const capacity = 5
	b := New(capacity)
	ctx := context.Background()

	// No listeners at all; events still land in history.
	for i := 0; i < capacity*2; i++ {
		b.Emit(ctx, "seq", i)
	}

	got := b.History(HistoryFilter{})
	if len(got) != capacity {
		t.Fatalf("history size = %d, want %d", len(got), capacity)
	}
	// Oldest evicted first: the survivors are the most recent N, in order.
	for i, evt := range got {
		want := capacity + i
		if evt.Data.(int) != want {
			t.Errorf("history[%d].Data = %v, want %d", i, evt.Data, want)
		}
	}
}

func TestBus_HistoryFilter(t *testing.T) {
	b := New(20)
	ctx := context.Background()

	b.Emit(ctx, "alpha", 1)
	b.Emit(ctx, "beta", 2)
	b.Emit(ctx, "alpha", 3)
	cut := time.Now()
	b.Emit(ctx, "alpha", 4)

	tests := []struct {
		name   string
		filter HistoryFilter
		want   int
	}{
		{"no filter returns all", HistoryFilter{}, 4},
		{"type filter", HistoryFilter{Type: "alpha"}, 3},
		{"unknown type", HistoryFilter{Type: "gamma"}, 0},
		{"since filter", HistoryFilter{Since: cut}, 1},
		{"limit keeps most recent", HistoryFilter{Limit: 2}, 2},
		{"type plus limit", HistoryFilter{Type: "alpha", Limit: 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.History(tt.filter); len(got) != tt.want {
				t.Errorf("History(%+v) returned %d events, want %d", tt.filter, len(got), tt.want)
			}
		})
	}
}

func TestBus_Stats(t *testing.T) {
	b := New(10)
	ctx := context.Background()

	nop := func(_ context.Context, _ Event) error { return nil }
	b.Subscribe("a", nop)
	b.Subscribe("a", nop)
	b.Subscribe("b", nop)
	b.Emit(ctx, "a", nil)
	b.Emit(ctx, "c", nil)

	s := b.Stats()
	if s.Listeners != 3 {
		t.Errorf("Stats.Listeners = %d, want 3", s.Listeners)
	}
	if s.EventTypes != 2 {
		t.Errorf("Stats.EventTypes = %d, want 2", s.EventTypes)
	}
	if s.HistorySize != 2 {
		t.Errorf("Stats.HistorySize = %d, want 2", s.HistorySize)
	}
	if s.HistoryCapacity != 10 {
		t.Errorf("Stats.HistoryCapacity = %d, want 10", s.HistoryCapacity)
	}
	if s.Emitted != 2 {
		t.Errorf("Stats.Emitted = %d, want 2", s.Emitted)
	}
}

func TestBus_SubscribeDuringEmit(t *testing.T) {
	b := New(10)
	ctx := context.Background()

	lateFired := false
	b.Subscribe("evt", func(_ context.Context, _ Event) error {
		// Registering mid-emit must not affect the current delivery.
		b.Subscribe("evt", func(_ context.Context, _ Event) error {
			lateFired = true
			return nil
		})
		return nil
	})

	b.Emit(ctx, "evt", nil)
	if lateFired {
		t.Error("listener registered during emit fired in the same emit")
	}

	b.Emit(ctx, "evt", nil)
	if !lateFired {
		t.Error("listener registered during emit did not fire on the next emit")
	}
}

func TestForwarder_DeliversAndDrops(t *testing.T) {
	b := New(10)
	ctx := context.Background()

	f := NewForwarder(b, 2, "tick")
	defer f.Close()

	// Fill the buffer plus one; with no consumer the third emit drops.
	for i := 0; i < 3; i++ {
		b.Emit(ctx, "tick", i)
	}

	if got := f.DroppedCount(); got != 1 {
		t.Errorf("DroppedCount = %d, want 1", got)
	}

	for want := 0; want < 2; want++ {
		select {
		case evt := <-f.Events():
			if evt.Data.(int) != want {
				t.Errorf("forwarded event data = %v, want %d", evt.Data, want)
			}
		default:
			t.Fatalf("expected buffered event %d", want)
		}
	}
}

func TestForwarder_CloseStopsForwarding(t *testing.T) {
	b := New(10)
	ctx := context.Background()

	f := NewForwarder(b, 4, "tick")
	f.Close()

	// Must not panic on send-after-close, and channel drains cleanly.
	b.Emit(ctx, "tick", nil)

	if _, ok := <-f.Events(); ok {
		t.Error("expected closed, drained events channel")
	}
}

func TestRing_WrapAround(t *testing.T) {
	r := newRing(3)

	for i := 0; i < 7; i++ {
		r.push(Event{Type: fmt.Sprintf("e%d", i)})
	}

	got := r.snapshot()
	want := []string{"e4", "e5", "e6"}
	if len(got) != len(want) {
		t.Fatalf("snapshot length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Type != want[i] {
			t.Errorf("snapshot[%d].Type = %q, want %q", i, got[i].Type, want[i])
		}
	}
}
