package events

import (
	"log/slog"
	"sync"
)

// Bus fans committed transition events out to named subscribers. Each
// subscriber gets its own buffered inbox so a slow consumer cannot stall the
// lifecycle commit path. Publish never blocks: when an inbox is full the event
// is dropped for that subscriber and logged, which downstream components must
// tolerate (the dispatcher re-derives missed work from its retry queue).
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[string]chan Event
	closed bool
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		logger: logger,
		subs:   make(map[string]chan Event),
	}
}

// Subscribe registers a named subscriber and returns its inbox. Subscribing
// twice under one name replaces the previous inbox, which is only expected in
// tests.
func (b *Bus) Subscribe(name string, buffer int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	b.subs[name] = ch
	return ch
}

// Publish delivers the event to every subscriber inbox without blocking.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for name, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("event dropped, subscriber inbox full",
				"subscriber", name,
				"event_id", event.ID.String(),
				"kind", string(event.Kind),
			)
		}
	}
}

// Close closes all subscriber inboxes. Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
}
