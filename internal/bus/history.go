package bus

// ring is a fixed-capacity buffer of events. When full, pushing a new
// event evicts the oldest. Not safe for concurrent use; the Bus guards
// it with its own mutex.
type ring struct {
	buf   []Event
	start int
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Event, capacity)}
}

// push appends an event, evicting the oldest when at capacity.
func (r *ring) push(evt Event) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = evt
		r.count++
		return
	}
	r.buf[r.start] = evt
	r.start = (r.start + 1) % len(r.buf)
}

// snapshot returns retained events oldest first.
func (r *ring) snapshot() []Event {
	out := make([]Event, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func (r *ring) len() int { return r.count }

func (r *ring) cap() int { return len(r.buf) }
