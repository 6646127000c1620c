package core

import (
	"context"
	"sync"
	"time"

	"pkt.systems/foldscreen/schema"
	"pkt.systems/pslog"
)

// Event is a notification passed to listeners. Its context belongs to the
// dispatching event loop, so Emulator.Batch called with it runs inline.
type Event struct {
	ctx              context.Context
	typ              schema.EventType
	defaultPrevented bool
}

// NewEvent constructs an event of the given type.
func NewEvent(ctx context.Context, typ schema.EventType) *Event {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Event{ctx: ctx, typ: typ}
}

// Type returns the event type.
func (e *Event) Type() schema.EventType { return e.typ }

// Context returns the context the event was dispatched with.
func (e *Event) Context() context.Context { return e.ctx }

// PreventDefault marks the event as cancelled.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether a handler called PreventDefault.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// Listener is a registered event handler. Listeners are identified by
// pointer, so the same *Listener must be passed to RemoveEventListener.
type Listener struct {
	fn func(*Event)
}

// NewListener wraps fn.
func NewListener(fn func(*Event)) *Listener {
	return &Listener{fn: fn}
}

// Notification is what Watch subscribers receive for every dispatched change.
type Notification struct {
	Seq  uint64
	Type schema.EventType
	Time time.Time
}

// Hub is the observer surface of one browsing context. Only change events
// are dispatched.
type Hub struct {
	log pslog.Logger

	mu        sync.Mutex
	onChange  func(*Event)
	listeners []*Listener
	watchers  map[chan Notification]struct{}
	seq       uint64
}

// NewHub constructs an empty hub.
func NewHub(logger pslog.Logger) *Hub {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Hub{
		log:      logger,
		watchers: make(map[chan Notification]struct{}),
	}
}

// SetOnChange assigns the designated change handler, invoked before the
// registered listeners. Passing nil clears it.
func (h *Hub) SetOnChange(fn func(*Event)) {
	h.mu.Lock()
	h.onChange = fn
	h.mu.Unlock()
}

// AddEventListener registers l for typ. Unknown types and duplicate
// registrations are ignored.
func (h *Hub) AddEventListener(typ schema.EventType, l *Listener) {
	if typ != schema.EventChange || l == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, existing := range h.listeners {
		if existing == l {
			return
		}
	}
	h.listeners = append(h.listeners, l)
}

// RemoveEventListener unregisters l for typ.
func (h *Hub) RemoveEventListener(typ schema.EventType, l *Listener) {
	if typ != schema.EventChange || l == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, existing := range h.listeners {
		if existing == l {
			h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
			return
		}
	}
}

// Subscribe registers fn for change events and returns a cancel func.
func (h *Hub) Subscribe(fn func(*Event)) func() {
	l := NewListener(fn)
	h.AddEventListener(schema.EventChange, l)
	return func() { h.RemoveEventListener(schema.EventChange, l) }
}

// Watch returns a channel receiving a Notification per dispatched change.
// Notifications are dropped when the channel is full.
func (h *Hub) Watch(depth int) (<-chan Notification, func()) {
	if depth <= 0 {
		depth = schema.DefaultWatchDepth
	}
	ch := make(chan Notification, depth)
	h.mu.Lock()
	h.watchers[ch] = struct{}{}
	count := len(h.watchers)
	h.mu.Unlock()
	h.log.Debug("hub watch", "watchers", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers, ch)
			h.mu.Unlock()
			close(ch)
			h.log.Debug("hub unwatch")
		})
	}
}

// Listeners returns the number of registered listeners.
func (h *Hub) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// DispatchEvent delivers a change event to the on-change handler and then to
// every listener in registration order. Other event types are ignored and
// report false. It returns false when a handler prevented the default.
func (h *Hub) DispatchEvent(event *Event) bool {
	if event == nil || event.typ != schema.EventChange {
		return false
	}
	h.mu.Lock()
	onChange := h.onChange
	listeners := append([]*Listener(nil), h.listeners...)
	h.seq++
	note := Notification{Seq: h.seq, Type: event.typ, Time: time.Now()}
	watchers := make([]chan Notification, 0, len(h.watchers))
	for ch := range h.watchers {
		watchers = append(watchers, ch)
	}
	h.mu.Unlock()

	if onChange != nil {
		onChange(event)
	}
	for _, l := range listeners {
		if l.fn != nil {
			l.fn(event)
		}
	}
	h.fanout(note, watchers)
	h.log.Trace("hub dispatch", "seq", note.Seq, "listeners", len(listeners), "watchers", len(watchers))
	return !event.DefaultPrevented()
}

func (h *Hub) fanout(note Notification, watchers []chan Notification) {
	if len(watchers) == 0 {
		return
	}
	// Watchers may unsubscribe concurrently; hold the lock while sending so a
	// channel is never sent on after close.
	h.mu.Lock()
	defer h.mu.Unlock()
	dropped := 0
	for _, ch := range watchers {
		if _, ok := h.watchers[ch]; !ok {
			continue
		}
		select {
		case ch <- note:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.log.Warn("hub notification dropped", "seq", note.Seq, "dropped", dropped)
	}
}
