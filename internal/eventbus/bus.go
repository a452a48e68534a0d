// Package eventbus is an in-process publish/subscribe registry keyed by event
// name.
//
// DELIVERY RULES:
//   - Publish calls every handler that was registered when Publish was called,
//     synchronously, in registration order, with the same payload value.
//   - The handler list is copied under the lock and dispatched without it, so
//     a handler may subscribe, unsubscribe or publish without deadlocking.
//     Those changes apply to the next Publish, not the one in progress.
//   - There is no fault isolation. If a handler panics, the remaining handlers
//     of that dispatch are skipped and the panic reaches the publisher.
//   - Registrations are never pruned; callers must unsubscribe.
//
// One Bus is created by the composition root and shared for the lifetime of
// the process.
package eventbus

import "sync"

// Handler receives a published payload.
type Handler func(payload any)

type subscription struct {
	id uint64
	fn Handler
}

// Bus is safe for concurrent use.
type Bus struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[string][]subscription
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]subscription)}
}

// Subscribe registers h for event and returns a func that removes exactly
// this registration. Calling the returned func more than once is a no-op.
func (b *Bus) Subscribe(event string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[event] = append(b.handlers[event], subscription{id: id, fn: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(event, id) })
	}
}

func (b *Bus) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[event]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		// Build a new slice: a dispatch in progress may still hold the old one.
		next := make([]subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(b.handlers, event)
		} else {
			b.handlers[event] = next
		}
		return
	}
}

// Publish delivers payload to the handlers currently registered for event.
func (b *Bus) Publish(event string, payload any) {
	b.mu.Lock()
	subs := b.handlers[event]
	b.mu.Unlock()

	// subs is never mutated in place (Subscribe appends into spare capacity
	// only past len, remove always copies), so iterating it unlocked is safe.
	for _, s := range subs {
		s.fn(payload)
	}
}

// Len reports how many handlers are registered for event.
func (b *Bus) Len(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[event])
}
