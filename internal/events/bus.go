package events

import (
	"log/slog"
	"sync"
	"time"
)

// Sink receives events fired by the repository.
type Sink interface {
	Fire(e Event) Event
}

// Handler is a subscriber callback. Handlers run synchronously on the
// firing goroutine and must not call back into the repository.
type Handler func(Event)

// Bus stamps events and dispatches them to subscribers.
type Bus struct {
	mu    sync.RWMutex
	subs  map[Kind][]Handler
	clock *Clock
	ids   IDGenerator
	now   func() time.Time
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithClock sets the sequence clock.
func WithClock(c *Clock) BusOption {
	return func(b *Bus) {
		b.clock = c
	}
}

// WithIDGenerator sets the event id generator.
func WithIDGenerator(g IDGenerator) BusOption {
	return func(b *Bus) {
		b.ids = g
	}
}

// WithNow sets the wall clock used when an event carries no time.
func WithNow(now func() time.Time) BusOption {
	return func(b *Bus) {
		b.now = now
	}
}

// NewBus creates a bus with UUIDv7 ids and a fresh clock.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs:  make(map[Kind][]Handler),
		clock: NewClock(),
		ids:   UUIDv7Generator{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for kind, or for every kind when kind is All.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[kind] = append(b.subs[kind], h)
}

// Fire stamps e with id, seq and time (when unset) and dispatches it to the
// kind's subscribers, then to All subscribers. A panicking handler is logged
// and does not stop delivery to the rest.
func (b *Bus) Fire(e Event) Event {
	if e.ID == "" {
		e.ID = b.ids.Generate()
	}
	e.Seq = b.clock.Next()
	if e.Time.IsZero() {
		e.Time = b.now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[e.Kind])+len(b.subs[All]))
	handlers = append(handlers, b.subs[e.Kind]...)
	handlers = append(handlers, b.subs[All]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		deliver(h, e)
	}
	return e
}

func deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "kind", e.Kind, "entry", e.EntryURI, "panic", r)
		}
	}()
	h(e)
}

// Discard is a Sink that drops events.
type Discard struct{}

func (Discard) Fire(e Event) Event { return e }

// Recorder is a Handler that keeps every event it sees.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle records e.
func (r *Recorder) Handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events in firing order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the recorded kinds in firing order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
