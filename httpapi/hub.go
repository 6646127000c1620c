package httpapi

import (
	"context"
	"sync"

	"pkt.systems/foldscreen/internal/logx"
	"pkt.systems/foldscreen/schema"
)

// Hub keeps a numbered history of change events per context and broadcasts
// them to stream subscribers.
type Hub struct {
	mu          sync.Mutex
	contexts    map[schema.ContextID]*contextHub
	historySize int
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 256
	}
	return &Hub{
		contexts:    make(map[schema.ContextID]*contextHub),
		historySize: historySize,
	}
}

// Publish numbers event and delivers it to the subscribers of its context.
// Sends happen under the lock and never block, so an unsubscribe cannot close
// a channel mid-send.
func (h *Hub) Publish(event schema.ChangeEvent) schema.ChangeEvent {
	h.mu.Lock()
	ch := h.getOrCreateLocked(event.ContextID)
	ch.seq++
	event.Seq = ch.seq
	ch.history = append(ch.history, event)
	if len(ch.history) > h.historySize {
		ch.history = ch.history[len(ch.history)-h.historySize:]
	}
	subs := len(ch.subs)
	dropped := 0
	for sub := range ch.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	log := logx.WithContextID(context.Background(), event.ContextID)
	log.Trace("stream publish", "seq", event.Seq, "subs", subs)
	if dropped > 0 {
		log.Warn("stream event dropped", "seq", event.Seq, "dropped", dropped)
	}
	return event
}

// Subscribe registers a subscriber for a context. It returns the channel, an
// unsubscribe func and the last sequence number published before the
// subscription. The channel is closed on unsubscribe or Drop.
func (h *Hub) Subscribe(id schema.ContextID) (<-chan schema.ChangeEvent, func(), uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := h.getOrCreateLocked(id)
	sub := make(chan schema.ChangeEvent, 64)
	ch.subs[sub] = struct{}{}
	seq := ch.seq
	log := logx.WithContextID(context.Background(), id)
	log.Info("stream subscribe", "subs", len(ch.subs), "seq", seq)
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := ch.subs[sub]; ok {
				delete(ch.subs, sub)
				close(sub)
			}
			remaining := len(ch.subs)
			h.mu.Unlock()
			log.Info("stream unsubscribe", "subs", remaining)
		})
	}
	return sub, unsub, seq
}

// Replay returns the retained events of a context after the provided seq.
func (h *Hub) Replay(id schema.ContextID, after uint64) []schema.ChangeEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := h.contexts[id]
	if ch == nil {
		return nil
	}
	events := make([]schema.ChangeEvent, 0, len(ch.history))
	for _, event := range ch.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	logx.WithContextID(context.Background(), id).Debug("stream replay", "after", after, "count", len(events))
	return events
}

// Drop forgets the history of a context and closes its subscriber channels.
func (h *Hub) Drop(id schema.ContextID) {
	h.mu.Lock()
	ch := h.contexts[id]
	if ch == nil {
		h.mu.Unlock()
		return
	}
	delete(h.contexts, id)
	for sub := range ch.subs {
		delete(ch.subs, sub)
		close(sub)
	}
	h.mu.Unlock()
	logx.WithContextID(context.Background(), id).Debug("stream history dropped")
}

// Len reports how many contexts the hub currently tracks.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.contexts)
}

func (h *Hub) getOrCreateLocked(id schema.ContextID) *contextHub {
	ch := h.contexts[id]
	if ch == nil {
		ch = &contextHub{
			subs: make(map[chan schema.ChangeEvent]struct{}),
		}
		h.contexts[id] = ch
	}
	return ch
}

type contextHub struct {
	seq     uint64
	history []schema.ChangeEvent
	subs    map[chan schema.ChangeEvent]struct{}
}
