// Package events implements the cloneable, concurrency-safe event emitter
// that carries alerts:// and device:// notifications from the core to the
// command surface's SSE stream.
package events

import "sync"

// Event is one UI-bound notification: a name (e.g. "alerts://added") and an
// arbitrary JSON-encodable payload.
type Event struct {
	Name    string
	Payload any
}

// Bus fans out events to any number of subscribers. It is safe for
// concurrent use by many emitters and many subscribers; emission never
// blocks on a slow or absent subscriber.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new listener with a small buffer and returns it
// plus an unsubscribe function. Callers must call unsubscribe exactly once.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, 32)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Emit publishes ev to every current subscriber. A subscriber whose buffer
// is full misses the event rather than stalling the publisher — the SSE
// handler is expected to keep up, and a dropped event here means a slow UI
// client, not a correctness gap in the core (the store remains the source
// of truth and get_active_alerts/get_mute_status can always resync it).
func (b *Bus) Emit(name string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev := Event{Name: name, Payload: payload}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
