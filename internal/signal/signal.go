// Package signal provides a typed observer registration point.
//
// Each change category (layers, sources, tree, options, presence) gets its
// own Signal carrying its own delta type. Handlers run synchronously on the
// emitting goroutine, in registration order.
package signal

import (
	"slices"
	"sync"
)

// Signal fans one value out to every connected handler.
//
// The zero value is ready to use.
//
// Thread-safety: Connect, Emit and disconnect are safe from any goroutine.
// Emit snapshots the handler list, so a handler may connect or disconnect
// handlers (including itself) without deadlocking.
type Signal[T any] struct {
	mu       sync.Mutex
	next     uint64
	handlers []slot[T]
}

type slot[T any] struct {
	id uint64
	fn func(T)
}

// Connect registers fn and returns a function that removes it again.
// Calling the returned function more than once is harmless.
func (s *Signal[T]) Connect(fn func(T)) (disconnect func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	id := s.next
	s.handlers = append(s.handlers, slot[T]{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.handlers = slices.DeleteFunc(s.handlers, func(h slot[T]) bool { return h.id == id })
	}
}

// Emit calls every handler with v.
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	handlers := slices.Clone(s.handlers)
	s.mu.Unlock()

	for _, h := range handlers {
		h.fn(v)
	}
}

// Len returns the number of connected handlers.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}
