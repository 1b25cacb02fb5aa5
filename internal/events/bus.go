package events

import (
	"log"
	"sync"
	"time"
)

// Handler is a callback invoked when a matching event is published.
type Handler func(Event)

type subscription struct {
	types   map[EventType]struct{} // nil matches every type
	handler Handler
}

// Bus is an in-process publish/subscribe bus. Subscribers are normally
// registered at startup; Publish is safe to call from request handlers.
type Bus struct {
	mu          sync.RWMutex
	subscribers []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for the given event types, or for every
// event when no types are given.
func (b *Bus) Subscribe(handler Handler, types ...EventType) {
	sub := subscription{handler: handler}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish delivers e synchronously to every matching subscriber and
// returns how many handlers completed. A nil bus drops the event.
func (b *Bus) Publish(e Event) int {
	if b == nil {
		return 0
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	subs := b.subscribers[:len(b.subscribers):len(b.subscribers)]
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if !sub.matches(e.Type) {
			continue
		}
		if deliver(sub.handler, e) {
			delivered++
		}
	}
	return delivered
}

func (s subscription) matches(t EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// deliver isolates subscriber panics from the publisher.
func deliver(h Handler, e Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️  events: subscriber panic on %s for %s: %v", e.Type, e.DeviceID, r)
			ok = false
		}
	}()
	h(e)
	return true
}
