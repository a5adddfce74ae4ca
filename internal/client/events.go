package client

import (
	"slices"
	"sync"
)

// Subscription is the handle returned by Subscribe. Cancel is idempotent.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Cancel removes the handler. Calls after the first do nothing.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Emitter fans values out to registered handlers.
type Emitter[T any] struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func(T)
}

// Subscribe registers fn until the returned subscription is cancelled.
func (e *Emitter[T]) Subscribe(fn func(T)) *Subscription {
	e.mu.Lock()
	if e.handlers == nil {
		e.handlers = make(map[int]func(T))
	}
	id := e.next
	e.next++
	e.handlers[id] = fn
	e.mu.Unlock()

	return &Subscription{cancel: func() {
		e.mu.Lock()
		delete(e.handlers, id)
		e.mu.Unlock()
	}}
}

// Emit calls every handler with v, in subscription order, outside the lock.
func (e *Emitter[T]) Emit(v T) {
	e.mu.Lock()
	ids := make([]int, 0, len(e.handlers))
	for id := range e.handlers {
		ids = append(ids, id)
	}
	handlers := make([]func(T), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, e.handlers[id])
	}
	e.mu.Unlock()

	for _, fn := range handlers {
		fn(v)
	}
}

// Len reports the number of live subscriptions.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}
