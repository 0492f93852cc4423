// Package eventbus is a synchronous, ordered, type-keyed pub/sub bus.
//
// It borrows its subscriber bookkeeping (mutex-guarded map, atomic id
// sequencing, sync.Once-guarded unsubscribe) from the async fanout bus
// the rest of this codebase's ancestor uses for decoupling services, but
// the dispatch semantics are deliberately different: Emit calls every
// matching listener synchronously, in registration order, on the
// caller's goroutine, and never drops an event for a slow or absent
// subscriber. A run's events must arrive in order and in full for the
// dashboard's history ring and SSE stream to be trustworthy.
package eventbus

import (
	"sync"
	"sync/atomic"

	"cronrunner/internal/registry"
)

// Wildcard is the special event type that matches every Emit call.
const Wildcard registry.EventType = "*"

// Listener receives one emitted event. It must not panic; Emit recovers
// from a panicking listener and continues with the next one, but relying
// on that is a bug in the listener, not a feature.
type Listener func(registry.ExecutionEvent)

// Unsubscribe detaches a previously registered listener. Safe to call
// more than once and from multiple goroutines.
type Unsubscribe func()

type subscription struct {
	id       uint64
	listener Listener
}

// Bus dispatches ExecutionEvents to listeners registered by event type
// or by the Wildcard type.
type Bus struct {
	mu   sync.Mutex
	subs map[registry.EventType][]subscription
	seq  atomic.Uint64
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[registry.EventType][]subscription)}
}

// On registers listener under typ ("*" matches every event) and returns
// a function that detaches it.
func (b *Bus) On(typ registry.EventType, listener Listener) Unsubscribe {
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[typ] = append(b.subs[typ], subscription{id: id, listener: listener})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[typ]
			for i, s := range list {
				if s.id == id {
					b.subs[typ] = append(list[:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Emit invokes every listener registered for event.Type, then every
// wildcard listener, synchronously and in registration order. A
// listener's panic is recovered and swallowed; it never reaches the
// caller and never stops the remaining listeners from running.
func (b *Bus) Emit(event registry.ExecutionEvent) {
	b.mu.Lock()
	specific := append([]subscription(nil), b.subs[event.Type]...)
	wildcard := append([]subscription(nil), b.subs[Wildcard]...)
	b.mu.Unlock()

	for _, s := range specific {
		invoke(s.listener, event)
	}
	for _, s := range wildcard {
		invoke(s.listener, event)
	}
}

func invoke(l Listener, event registry.ExecutionEvent) {
	defer func() { _ = recover() }()
	l(event)
}

// RemoveAllListeners clears every subscription for every type.
func (b *Bus) RemoveAllListeners() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[registry.EventType][]subscription)
}
